package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gungnir/internal/common"
	wire "gungnir/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'book']")

	// Order Parameters
	symbol := flag.String("symbol", "XYZ", "Symbol to trade or display")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Float64("price", 100.0, "Limit price")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	wait := flag.Duration("wait", 2*time.Second, "How long to listen for reports after sending")

	flag.Parse()

	// Connect to Server
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Start Listening for Reports (Async)
	go readReports(conn)

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		side, err := parseSide(*sideStr)
		if err != nil {
			log.Fatal().Err(err).Msg("bad side")
		}
		for _, q := range parseQuantities(*qtyStr) {
			msg := wire.NewOrderMessage{
				Side:       side,
				Quantity:   q,
				LimitPrice: *price,
				Symbol:     *symbol,
			}
			if err := send(conn, msg.Serialize); err != nil {
				log.Error().Err(err).Uint64("qty", q).Msg("failed to place order")
				continue
			}
			fmt.Printf("-> Sent %s Order: %s %d @ %.2f\n", side, *symbol, q, *price)
		}

	case "book":
		msg := wire.BookRequestMessage{Symbol: *symbol}
		if err := send(conn, msg.Serialize); err != nil {
			log.Error().Err(err).Msg("failed to send book request")
		}

	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}

	// Keep the client alive to receive reports.
	time.Sleep(*wait)
}

func parseSide(s string) (common.Side, error) {
	switch strings.ToLower(s) {
	case "buy", "b":
		return common.Buy, nil
	case "sell", "s":
		return common.Sell, nil
	}
	return common.Buy, fmt.Errorf("%q: %w", s, common.ErrInvalidSide)
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Warn().Str("qty", p).Msg("invalid quantity, skipping")
		}
	}
	return result
}

func send(conn net.Conn, serialize func() ([]byte, error)) error {
	payload, err := serialize()
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, payload)
}

// readReports continuously reads and prints reports from the server.
func readReports(conn net.Conn) {
	for {
		frame, err := wire.ReadFrame(conn, 0)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("connection lost")
			}
			return
		}

		kind, err := wire.ReportKind(frame)
		if err != nil {
			log.Error().Err(err).Msg("bad report")
			continue
		}
		if kind == wire.BookReport {
			book, err := wire.ParseBookReport(frame)
			if err != nil {
				log.Error().Err(err).Msg("bad book report")
				continue
			}
			printBook(book)
			continue
		}

		report, err := wire.ParseReport(frame)
		if err != nil {
			log.Error().Err(err).Msg("bad report")
			continue
		}
		switch report.MessageType {
		case wire.ErrorReport:
			fmt.Printf("\n[SERVER ERROR] %s\n", report.Err)
		case wire.AckReport:
			fmt.Printf("\n[ACK] Order #%d: %s %s %d @ %.2f\n",
				report.OrderID, report.Side, report.Symbol, report.Quantity, report.Price)
		case wire.ExecutionReport:
			fmt.Printf("\n[EXECUTION] Trade Executed: %d shares of %s at %.2f | %s #%d vs #%d\n",
				report.Quantity, report.Symbol, report.Price, report.Side, report.OrderID, report.CounterID)
		}
	}
}

func printBook(book wire.BookReportMessage) {
	fmt.Printf("\nOrder Book (Symbol: %s)\n-------------------\nBuy Orders:\n", book.Symbol)
	for _, e := range book.Bids {
		printEntry(e)
	}
	fmt.Println("\nSell Orders:")
	for _, e := range book.Asks {
		printEntry(e)
	}
	fmt.Println("-------------------")
}

func printEntry(e wire.BookEntry) {
	fmt.Printf("[%-4s] ID: %d | Qty: %d | Price: %.2f | Time: %s\n",
		e.Side, e.OrderID, e.Quantity, e.Price, time.Unix(0, e.Timestamp).Format(time.RFC3339))
}
