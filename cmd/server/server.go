package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gungnir/internal/config"
	"gungnir/internal/engine"
	"gungnir/internal/net"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	envPath := flag.String("env", "", "Path to a .env file (default: ./.env if present)")
	address := flag.String("address", "", "Address to listen on (overrides GUNGNIR_ADDRESS)")
	port := flag.Int("port", -1, "Port to listen on (overrides GUNGNIR_PORT)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *address != "" {
		cfg.Address = *address
	}
	if *port >= 0 {
		cfg.Port = *port
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the TCP server and the matching engine.
	eng := engine.New(
		engine.WithPriceRule(cfg.PriceRule),
		engine.WithSymbols(cfg.Symbols...),
	)
	srv := net.New(cfg.Address, cfg.Port, eng, cfg.Workers)
	eng.SetReporter(srv)

	log.Info().
		Stringer("price rule", cfg.PriceRule).
		Strs("symbols", eng.Symbols()).
		Msg("matching engine ready")

	// Block on running the server.
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// setupLogging writes human readable logs to terminals and JSON otherwise.
func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
