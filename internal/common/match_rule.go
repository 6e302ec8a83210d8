package common

// matchRules lists which pairs of order kinds may trade with each other. Pairs
// are stored once; lookups try both orders so the rule stays symmetric.
var matchRules = map[[2]OrderKind]bool{
	{LimitOrder, LimitOrder}: true,
}

func matchRule(a, b OrderKind) bool {
	return matchRules[[2]OrderKind{a, b}] || matchRules[[2]OrderKind{b, a}]
}
