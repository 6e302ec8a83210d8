package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	. "gungnir/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFrameTooLarge      = errors.New("frame exceeds maximum size")
	ErrSymbolTooLong      = errors.New("symbol too long")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	PlaceOrder
	BookRequest
)

type ReportMessageType int

const (
	AckReport ReportMessageType = iota
	ExecutionReport
	ErrorReport
	BookReport
)

func (t ReportMessageType) String() string {
	switch t {
	case AckReport:
		return "ack"
	case ExecutionReport:
		return "execution"
	case ErrorReport:
		return "error"
	case BookReport:
		return "book"
	}
	return "unknown"
}

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	FrameHeaderLen           = 4
	BaseMessageHeaderLen     = 2
	NewOrderMessageHeaderLen = 1 + 8 + 8 + 1
	BookRequestHeaderLen     = 1
	MaxSymbolLen             = math.MaxUint8
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ---- Framing ----

// WriteFrame writes payload prefixed by its 4 byte length.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, FrameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[FrameHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads a single length prefixed frame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	header := make([]byte, FrameHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(header))
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ---- Client messages ----

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case PlaceOrder:
		return parseNewOrder(msg)
	case BookRequest:
		return parseBookRequest(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	Side       Side    // 1 byte
	Quantity   uint64  // 8 bytes
	LimitPrice float64 // 8 bytes
	SymbolLen  uint8   // 1 byte
	Symbol     string  // n bytes
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: PlaceOrder}}

	m.Side = Side(msg[0])
	m.Quantity = binary.BigEndian.Uint64(msg[1:9])
	m.LimitPrice = math.Float64frombits(binary.BigEndian.Uint64(msg[9:17]))
	m.SymbolLen = msg[17]

	// Calculate expected total length.
	expectedTotalLen := NewOrderMessageHeaderLen + int(m.SymbolLen)
	if len(msg) < expectedTotalLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[NewOrderMessageHeaderLen:expectedTotalLen])

	return m, nil
}

// Serialize encodes the message, type header included.
func (m NewOrderMessage) Serialize() ([]byte, error) {
	if len(m.Symbol) > MaxSymbolLen {
		return nil, ErrSymbolTooLong
	}
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(PlaceOrder))
	body := buf[BaseMessageHeaderLen:]
	body[0] = byte(m.Side)
	binary.BigEndian.PutUint64(body[1:9], m.Quantity)
	binary.BigEndian.PutUint64(body[9:17], math.Float64bits(m.LimitPrice))
	body[17] = uint8(len(m.Symbol))
	copy(body[NewOrderMessageHeaderLen:], m.Symbol)
	return buf, nil
}

type BookRequestMessage struct {
	BaseMessage
	SymbolLen uint8  // 1 byte
	Symbol    string // n bytes
}

func parseBookRequest(msg []byte) (BookRequestMessage, error) {
	if len(msg) < BookRequestHeaderLen {
		return BookRequestMessage{}, ErrMessageTooShort
	}
	m := BookRequestMessage{BaseMessage: BaseMessage{TypeOf: BookRequest}}
	m.SymbolLen = msg[0]
	if len(msg) < BookRequestHeaderLen+int(m.SymbolLen) {
		return BookRequestMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[BookRequestHeaderLen : BookRequestHeaderLen+int(m.SymbolLen)])
	return m, nil
}

func (m BookRequestMessage) Serialize() ([]byte, error) {
	if len(m.Symbol) > MaxSymbolLen {
		return nil, ErrSymbolTooLong
	}
	buf := make([]byte, BaseMessageHeaderLen+BookRequestHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(BookRequest))
	buf[2] = uint8(len(m.Symbol))
	copy(buf[3:], m.Symbol)
	return buf, nil
}

// HeartbeatMessage is a bare type header.
func HeartbeatMessage() []byte {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf, uint16(Heartbeat))
	return buf
}

// ---- Server reports ----

type Report struct {
	MessageType ReportMessageType // 1 byte
	Side        Side              // 1 byte
	OrderID     uint64            // 8 bytes
	CounterID   uint64            // 8 bytes
	Timestamp   int64             // 8 bytes, unix nanos
	Quantity    uint64            // 8 bytes
	Price       float64           // 8 bytes
	SymbolLen   uint8             // 1 byte
	ErrStrLen   uint16            // 2 bytes
	Symbol      string            // n bytes
	Err         string            // n bytes
}

const ReportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 8 + 8 + 1 + 2

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	if len(r.Symbol) > MaxSymbolLen {
		return nil, ErrSymbolTooLong
	}
	if len(r.Err) > math.MaxUint16 {
		r.Err = r.Err[:math.MaxUint16]
	}
	r.SymbolLen = uint8(len(r.Symbol))
	r.ErrStrLen = uint16(len(r.Err))

	buf := make([]byte, ReportFixedHeaderLen+len(r.Symbol)+len(r.Err))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.OrderID)
	binary.BigEndian.PutUint64(buf[10:18], r.CounterID)
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.Timestamp))
	binary.BigEndian.PutUint64(buf[26:34], r.Quantity)
	binary.BigEndian.PutUint64(buf[34:42], math.Float64bits(r.Price))
	buf[42] = r.SymbolLen
	binary.BigEndian.PutUint16(buf[43:45], r.ErrStrLen)

	offset := ReportFixedHeaderLen
	copy(buf[offset:], r.Symbol)
	offset += len(r.Symbol)
	copy(buf[offset:], r.Err)
	return buf, nil
}

// ParseReport decodes anything but a book report.
func ParseReport(buf []byte) (Report, error) {
	if len(buf) < ReportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	r := Report{
		MessageType: ReportMessageType(buf[0]),
		Side:        Side(buf[1]),
		OrderID:     binary.BigEndian.Uint64(buf[2:10]),
		CounterID:   binary.BigEndian.Uint64(buf[10:18]),
		Timestamp:   int64(binary.BigEndian.Uint64(buf[18:26])),
		Quantity:    binary.BigEndian.Uint64(buf[26:34]),
		Price:       math.Float64frombits(binary.BigEndian.Uint64(buf[34:42])),
		SymbolLen:   buf[42],
		ErrStrLen:   binary.BigEndian.Uint16(buf[43:45]),
	}
	if r.MessageType == BookReport {
		return Report{}, ErrInvalidMessageType
	}
	end := ReportFixedHeaderLen + int(r.SymbolLen) + int(r.ErrStrLen)
	if len(buf) < end {
		return Report{}, ErrMessageTooShort
	}
	offset := ReportFixedHeaderLen
	r.Symbol = string(buf[offset : offset+int(r.SymbolLen)])
	offset += int(r.SymbolLen)
	r.Err = string(buf[offset:end])
	return r, nil
}

// generateWireTradeReports generates both trade reports, each addressed to
// one side of the trade.
func generateWireTradeReports(trade Trade) (buy []byte, sell []byte, err error) {
	createReport := func(side Side, id, counter OrderID) Report {
		return Report{
			MessageType: ExecutionReport,
			Side:        side,
			OrderID:     uint64(id),
			CounterID:   uint64(counter),
			Timestamp:   trade.Timestamp.UnixNano(),
			Quantity:    trade.Quantity,
			Price:       trade.Price.InexactFloat64(),
			Symbol:      trade.Symbol,
		}
	}

	r1 := createReport(Buy, trade.BuyOrderID, trade.SellOrderID)
	r2 := createReport(Sell, trade.SellOrderID, trade.BuyOrderID)

	if buy, err = r1.Serialize(); err != nil {
		return nil, nil, err
	}
	if sell, err = r2.Serialize(); err != nil {
		return nil, nil, err
	}
	return buy, sell, nil
}

func generateWireAckReport(m NewOrderMessage, id OrderID) ([]byte, error) {
	report := Report{
		MessageType: AckReport,
		Side:        m.Side,
		OrderID:     uint64(id),
		Timestamp:   time.Now().UnixNano(),
		Quantity:    m.Quantity,
		Price:       m.LimitPrice,
		Symbol:      m.Symbol,
	}
	return report.Serialize()
}

func generateWireErrorReport(err error) ([]byte, error) {
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   time.Now().UnixNano(),
		Err:         err.Error(),
	}
	return report.Serialize()
}

// ---- Book reports ----

// BookEntry is one resting order in a book report.
type BookEntry struct {
	Side      Side    // 1 byte
	OrderID   uint64  // 8 bytes
	Quantity  uint64  // 8 bytes
	Price     float64 // 8 bytes
	Timestamp int64   // 8 bytes, unix nanos
}

const bookEntryLen = 1 + 8 + 8 + 8 + 8

// Book report layout: type (1), symbol length (1), number of bids (4), number
// of asks (4), symbol, then the bid entries followed by the ask entries.
const bookReportHeaderLen = 1 + 1 + 4 + 4

type BookReportMessage struct {
	Symbol string
	Bids   []BookEntry
	Asks   []BookEntry
}

func NewBookReport(view BookView) BookReportMessage {
	convert := func(views []OrderView) []BookEntry {
		entries := make([]BookEntry, len(views))
		for i, v := range views {
			entries[i] = BookEntry{
				Side:      v.Side,
				OrderID:   uint64(v.ID),
				Quantity:  v.Quantity,
				Price:     v.Price.InexactFloat64(),
				Timestamp: v.Timestamp.UnixNano(),
			}
		}
		return entries
	}
	return BookReportMessage{
		Symbol: view.Symbol,
		Bids:   convert(view.Bids),
		Asks:   convert(view.Asks),
	}
}

func (b BookReportMessage) Serialize() ([]byte, error) {
	if len(b.Symbol) > MaxSymbolLen {
		return nil, ErrSymbolTooLong
	}
	buf := make([]byte, bookReportHeaderLen+len(b.Symbol)+bookEntryLen*(len(b.Bids)+len(b.Asks)))
	buf[0] = byte(BookReport)
	buf[1] = uint8(len(b.Symbol))
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(b.Bids)))
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(b.Asks)))
	offset := bookReportHeaderLen
	offset += copy(buf[offset:], b.Symbol)
	for _, e := range append(append([]BookEntry{}, b.Bids...), b.Asks...) {
		buf[offset] = byte(e.Side)
		binary.BigEndian.PutUint64(buf[offset+1:offset+9], e.OrderID)
		binary.BigEndian.PutUint64(buf[offset+9:offset+17], e.Quantity)
		binary.BigEndian.PutUint64(buf[offset+17:offset+25], math.Float64bits(e.Price))
		binary.BigEndian.PutUint64(buf[offset+25:offset+33], uint64(e.Timestamp))
		offset += bookEntryLen
	}
	return buf, nil
}

func ParseBookReport(buf []byte) (BookReportMessage, error) {
	if len(buf) < bookReportHeaderLen {
		return BookReportMessage{}, ErrMessageTooShort
	}
	if ReportMessageType(buf[0]) != BookReport {
		return BookReportMessage{}, ErrInvalidMessageType
	}
	symbolLen := int(buf[1])
	nBids := int(binary.BigEndian.Uint32(buf[2:6]))
	nAsks := int(binary.BigEndian.Uint32(buf[6:10]))
	if len(buf) < bookReportHeaderLen+symbolLen+bookEntryLen*(nBids+nAsks) {
		return BookReportMessage{}, ErrMessageTooShort
	}

	offset := bookReportHeaderLen
	b := BookReportMessage{Symbol: string(buf[offset : offset+symbolLen])}
	offset += symbolLen
	readEntries := func(n int) []BookEntry {
		entries := make([]BookEntry, n)
		for i := range entries {
			entries[i] = BookEntry{
				Side:      Side(buf[offset]),
				OrderID:   binary.BigEndian.Uint64(buf[offset+1 : offset+9]),
				Quantity:  binary.BigEndian.Uint64(buf[offset+9 : offset+17]),
				Price:     math.Float64frombits(binary.BigEndian.Uint64(buf[offset+17 : offset+25])),
				Timestamp: int64(binary.BigEndian.Uint64(buf[offset+25 : offset+33])),
			}
			offset += bookEntryLen
		}
		return entries
	}
	b.Bids = readEntries(nBids)
	b.Asks = readEntries(nAsks)
	return b, nil
}

// ReportKind peeks at the type of an incoming report.
func ReportKind(buf []byte) (ReportMessageType, error) {
	if len(buf) == 0 {
		return 0, ErrMessageTooShort
	}
	return ReportMessageType(buf[0]), nil
}
