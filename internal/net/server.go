package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	. "gungnir/internal/common"
	"gungnir/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"
)

const (
	MAX_RECV_SIZE       = 4 * 1024
	defaultNWorkers     = 10
	defaultWriteTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// Exchange is the part of the matching engine the server drives.
type Exchange interface {
	SubmitOrder(symbol string, side Side, quantity uint64, price decimal.Decimal, owner string) (OrderID, []Trade, error)
	BookView(symbol string) BookView
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	id   string
	conn net.Conn

	writeLock sync.Mutex
}

// send writes one framed payload to the client.
func (c *ClientSession) send(payload []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return WriteFrame(c.conn, payload)
}

// ClientFrame is a raw frame read off a session, waiting to be parsed. done is
// closed once the frame has been handed on, keeping a session's messages in
// the order they were sent.
type ClientFrame struct {
	session *ClientSession
	frame   []byte
	done    chan struct{}
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientID string
	message  Message
}

type Server struct {
	address            string
	port               int
	exchange           Exchange
	pool               *utils.WorkerPool
	cancel             context.CancelFunc
	listener           net.Listener
	listenErr          error
	ready              chan struct{}
	clientSessions     map[string]*ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan (ClientMessage)
}

func New(address string, port int, exchange Exchange, workers uint) *Server {
	if workers == 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		exchange:       exchange,
		pool:           utils.NewWorkerPool(workers),
		ready:          make(chan struct{}),
		clientSessions: make(map[string]*ClientSession),
		clientMessages: make(chan ClientMessage, utils.TASK_CHAN_SIZE),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Addr blocks until Run has tried to listen and returns the bound address, or
// the reason listening failed.
func (s *Server) Addr() (net.Addr, error) {
	<-s.ready
	if s.listenErr != nil {
		return nil, s.listenErr
	}
	return s.listener.Addr(), nil
}

// Run accepts clients until ctx is cancelled or a worker fails.
//
// Every session gets its own reader goroutine which only frames bytes off the
// wire. Parsing is handed to the worker pool, and the parsed messages to the
// single session handler. Nothing downstream ever feeds back into the pool, so
// a full pool only slows readers down.
func (s *Server) Run(ctx context.Context) error {
	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.Shutdown()
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		s.listenErr = err
		close(s.ready)
		return err
	}
	s.listener = listener
	close(s.ready)

	// Start the worker pool.
	s.pool.Setup(t, s.handleFrame)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	// Unblock Accept and drop every client once we are dying.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeAllSessions()
		return nil
	})

	// Start accepting connections. Running under the tomb keeps it alive for
	// as long as the accept loop may still start session readers.
	t.Go(func() error {
		return s.acceptClients(t, listener)
	})

	log.Info().
		Str("address", listener.Addr().String()).
		Int("workers", s.pool.Size()).
		Msg("server running")

	return ignoreCancel(t.Wait())
}

func (s *Server) acceptClients(t *tomb.Tomb, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		// Add the client to client sessions we are tracking.
		// We expect to potentially maintain a long TCP session.
		session := s.addClientSession(conn)
		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Str("session", session.id).
			Msg("new client added")

		t.Go(func() error {
			s.readSession(t, session)
			return nil
		})
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ReportTrade sends an execution report to each side of the trade that was
// placed through this server.
func (s *Server) ReportTrade(trade Trade) error {
	buyReport, sellReport, err := generateWireTradeReports(trade)
	if err != nil {
		return err
	}

	var errs []error
	if trade.BuyOwner != "" {
		errs = append(errs, s.sendTo(trade.BuyOwner, buyReport))
	}
	if trade.SellOwner != "" {
		errs = append(errs, s.sendTo(trade.SellOwner, sellReport))
	}
	return errors.Join(errs...)
}

func (s *Server) sendTo(clientID string, payload []byte) error {
	s.clientSessionsLock.Lock()
	client, ok := s.clientSessions[clientID]
	s.clientSessionsLock.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", clientID, ErrClientDoesNotExist)
	}

	if err := client.send(payload); err != nil {
		s.deleteClientSession(clientID)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// sessionHandler reads off incoming messages from clients and handles high-level
// session logic. Messages are received from the pool of workers. Being the only
// caller into the exchange, it processes submissions one at a time in arrival
// order.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			s.handleMessage(message)
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) {
	logger := log.With().Str("session", message.clientID).Logger()

	var (
		reply []byte
		err   error
	)
	switch m := message.message.(type) {
	case NewOrderMessage:
		reply, err = s.handleNewOrder(m, message.clientID)
	case BookRequestMessage:
		reply, err = NewBookReport(s.exchange.BookView(m.Symbol)).Serialize()
	default:
		// Heartbeats need no answer.
		return
	}

	if err != nil {
		logger.Warn().Err(err).Int("message type", int(message.message.GetType())).Msg("request rejected")
		if reply, err = generateWireErrorReport(err); err != nil {
			logger.Error().Err(err).Msg("unable to build error report")
			return
		}
	}
	if err := s.sendTo(message.clientID, reply); err != nil {
		logger.Error().Err(err).Msg("unable to reply")
	}
}

func (s *Server) handleNewOrder(m NewOrderMessage, clientID string) ([]byte, error) {
	price, err := PriceFromFloat(m.LimitPrice)
	if err != nil {
		return nil, err
	}

	id, trades, err := s.exchange.SubmitOrder(m.Symbol, m.Side, m.Quantity, price, clientID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("session", clientID).
		Str("symbol", m.Symbol).
		Stringer("side", m.Side).
		Uint64("order", uint64(id)).
		Int("trades", len(trades)).
		Msg("order accepted")
	return generateWireAckReport(m, id)
}

// readSession frames messages off one client until it goes away. Frames are
// handed to the worker pool for parsing; a busy pool only holds this reader
// back, never another client.
func (s *Server) readSession(t *tomb.Tomb, session *ClientSession) {
	logger := log.With().Str("session", session.id).Logger()
	defer s.deleteClientSession(session.id)

	for {
		frame, err := ReadFrame(session.conn, MAX_RECV_SIZE)
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				logger.Error().Err(err).Msg("error framing message")
				if report, rerr := generateWireErrorReport(err); rerr == nil {
					_ = session.send(report)
				}
				return
			}
			// A failed read means the client went away.
			logger.Info().Err(err).Msg("client disconnected")
			return
		}

		done := make(chan struct{})
		if err := s.pool.AddTask(ClientFrame{session: session, frame: frame, done: done}); err != nil {
			return
		}
		select {
		case <-t.Dying():
			return
		case <-done:
		}
	}
}

// handleFrame is the worker method: it parses one frame and passes the message
// forward to sessionHandler. Malformed frames are answered with an error report.
// Note, any error returned from here is fatal.
func (s *Server) handleFrame(t *tomb.Tomb, task any) error {
	incoming, ok := task.(ClientFrame)
	if !ok {
		return ErrImproperConversion
	}
	session := incoming.session
	defer close(incoming.done)

	message, err := parseMessage(incoming.frame)
	if err != nil {
		log.Warn().Err(err).Str("session", session.id).Msg("error parsing message")
		if report, rerr := generateWireErrorReport(err); rerr == nil {
			_ = session.send(report)
		}
		return nil
	}

	select {
	case <-t.Dying():
	case s.clientMessages <- ClientMessage{message: message, clientID: session.id}:
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := &ClientSession{
		id:   uuid.New().String(),
		conn: conn,
	}
	s.clientSessions[session.id] = session
	return session
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(id string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if session, ok := s.clientSessions[id]; ok {
		if err := session.conn.Close(); err != nil {
			log.Debug().Err(err).Str("session", id).Msg("closing connection")
		}
		delete(s.clientSessions, id)
	}
}

func (s *Server) closeAllSessions() {
	s.clientSessionsLock.Lock()
	ids := make([]string, 0, len(s.clientSessions))
	for id := range s.clientSessions {
		ids = append(ids, id)
	}
	s.clientSessionsLock.Unlock()

	for _, id := range ids {
		s.deleteClientSession(id)
	}
}
