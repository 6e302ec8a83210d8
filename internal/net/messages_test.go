package net

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	. "gungnir/internal/common"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_NewOrder(t *testing.T) {
	sent := NewOrderMessage{Side: Sell, Quantity: 80, LimitPrice: 9.5, Symbol: "XYZ"}
	buf, err := sent.Serialize()
	require.NoError(t, err)

	msg, err := parseMessage(buf)
	require.NoError(t, err)
	got, ok := msg.(NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, PlaceOrder, got.GetType())
	assert.Equal(t, Sell, got.Side)
	assert.Equal(t, uint64(80), got.Quantity)
	assert.Equal(t, 9.5, got.LimitPrice)
	assert.Equal(t, "XYZ", got.Symbol)

	// Truncated symbol.
	_, err = parseMessage(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrMessageTooShort)
	// Truncated header.
	_, err = parseMessage(buf[:10])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessage_BookRequest(t *testing.T) {
	buf, err := BookRequestMessage{Symbol: "AAPL"}.Serialize()
	require.NoError(t, err)

	msg, err := parseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, BookRequestMessage{
		BaseMessage: BaseMessage{TypeOf: BookRequest},
		SymbolLen:   4,
		Symbol:      "AAPL",
	}, msg)
}

func TestParseMessage_Invalid(t *testing.T) {
	_, err := parseMessage([]byte{0})
	assert.Error(t, err)
	_, err = parseMessage([]byte{0, 99})
	assert.ErrorIs(t, err, ErrInvalidMessageType)

	msg, err := parseMessage(HeartbeatMessage())
	require.NoError(t, err)
	assert.Equal(t, Heartbeat, msg.GetType())
}

func TestSymbolTooLong(t *testing.T) {
	long := string(bytes.Repeat([]byte("A"), MaxSymbolLen+1))
	_, err := NewOrderMessage{Symbol: long}.Serialize()
	assert.ErrorIs(t, err, ErrSymbolTooLong)
	_, err = BookRequestMessage{Symbol: long}.Serialize()
	assert.ErrorIs(t, err, ErrSymbolTooLong)
}

func TestFraming(t *testing.T) {
	var wire bytes.Buffer
	require.NoError(t, WriteFrame(&wire, []byte("first")))
	require.NoError(t, WriteFrame(&wire, []byte("second")))
	stream := wire.Bytes()

	reader := bytes.NewReader(stream)
	got, err := ReadFrame(reader, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	got, err = ReadFrame(reader, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// A partial frame is an unexpected end of stream.
	_, err = ReadFrame(bytes.NewReader(stream[:7]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bytes.NewReader(stream), 3)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestTradeReports(t *testing.T) {
	ts := time.Unix(1_700_000_000, 123)
	trade := Trade{
		Symbol:      "X",
		Quantity:    30,
		Price:       decimal.RequireFromString("9.5"),
		BuyOrderID:  1,
		SellOrderID: 3,
		Timestamp:   ts,
	}
	buyBuf, sellBuf, err := generateWireTradeReports(trade)
	require.NoError(t, err)

	buy, err := ParseReport(buyBuf)
	require.NoError(t, err)
	assert.Equal(t, Report{
		MessageType: ExecutionReport,
		Side:        Buy,
		OrderID:     1,
		CounterID:   3,
		Timestamp:   ts.UnixNano(),
		Quantity:    30,
		Price:       9.5,
		SymbolLen:   1,
		Symbol:      "X",
	}, buy)

	sell, err := ParseReport(sellBuf)
	require.NoError(t, err)
	assert.Equal(t, Sell, sell.Side)
	assert.Equal(t, uint64(3), sell.OrderID)
	assert.Equal(t, uint64(1), sell.CounterID)
}

func TestErrorReport(t *testing.T) {
	buf, err := generateWireErrorReport(errors.New("invalid quantity: quantity must be positive"))
	require.NoError(t, err)

	report, err := ParseReport(buf)
	require.NoError(t, err)
	assert.Equal(t, ErrorReport, report.MessageType)
	assert.Equal(t, "invalid quantity: quantity must be positive", report.Err)

	_, err = ParseReport(buf[:len(buf)-2])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestBookReport(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	view := BookView{
		Symbol: "X",
		Bids: []OrderView{
			{ID: 2, Side: Buy, Quantity: 20, Price: decimal.RequireFromString("10"), Timestamp: ts},
			{ID: 1, Side: Buy, Quantity: 5, Price: decimal.RequireFromString("9.75"), Timestamp: ts},
		},
		Asks: []OrderView{
			{ID: 4, Side: Sell, Quantity: 7, Price: decimal.RequireFromString("10.5"), Timestamp: ts},
		},
	}
	sent := NewBookReport(view)
	buf, err := sent.Serialize()
	require.NoError(t, err)

	kind, err := ReportKind(buf)
	require.NoError(t, err)
	assert.Equal(t, BookReport, kind)

	got, err := ParseBookReport(buf)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
	assert.Equal(t, 9.75, got.Bids[1].Price)

	_, err = ParseBookReport(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrMessageTooShort)
	_, err = ParseReport(buf)
	assert.Error(t, err)
}
