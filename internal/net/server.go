package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/common"
	"gungnir/internal/ring"
	"gungnir/internal/utils"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// BookLogger exposes the engine's diagnostic dump to the wire protocol.
type BookLogger interface {
	LogBook()
}

// Server is the TCP gateway: it parses command frames off client
// connections, stamps them with the gateway clock and pushes them onto the
// ingress ring. Engine events come back through the Reporter methods and
// are fanned out to the owning sessions.
type Server struct {
	address string
	port    int

	ingress *ring.SPSC[*common.OrderCommand]
	books   BookLogger

	pool   utils.WorkerPool
	cancel context.CancelFunc

	clientSessions     map[string]ClientSession
	sessionsByUID      map[uint64]string
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

func NewServer(address string, port int, ingress *ring.SPSC[*common.OrderCommand], books BookLogger) *Server {
	return &Server{
		address:        address,
		port:           port,
		ingress:        ingress,
		books:          books,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		sessionsByUID:  make(map[uint64]string),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("gateway shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("gateway running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Track the session; we expect a long-lived TCP connection.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrade delivers an execution report to both parties of a trade.
func (s *Server) ReportTrade(trade common.Trade) {
	ev := common.Event{
		Type:         common.EventTrade,
		MakerUID:     trade.MakerUID,
		MakerOrderID: trade.MakerOrderID,
		TakerUID:     trade.TakerUID,
		TakerOrderID: trade.TakerOrderID,
		Price:        trade.Price,
		Size:         trade.MatchQty,
		Timestamp:    trade.Timestamp,
	}
	frame := SerializeReport(trade.Symbol, ev)
	s.sendToUID(trade.MakerUID, frame)
	if trade.TakerUID != trade.MakerUID {
		s.sendToUID(trade.TakerUID, frame)
	}
}

// ReportEvent delivers a non-trade event to the order's owner. Trades are
// handled by ReportTrade, which addresses both parties.
func (s *Server) ReportEvent(symbol uint32, ev common.Event) {
	if ev.Type == common.EventTrade {
		return
	}
	s.sendToUID(ev.UID, SerializeReport(symbol, ev))
}

func (s *Server) sendToUID(uid uint64, frame []byte) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	address, ok := s.sessionsByUID[uid]
	if !ok {
		return
	}
	client, ok := s.clientSessions[address]
	if !ok {
		return
	}
	if _, err := client.conn.Write(frame); err != nil {
		log.Error().Err(err).Str("address", address).Msg("unable to send report")
		delete(s.clientSessions, address)
		delete(s.sessionsByUID, uid)
	}
}

// sessionHandler reads off incoming messages from clients and handles
// high-level session logic. Messages are received from the pool of
// workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("error handling message")
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	stamp := uint64(time.Now().UnixNano())

	switch message.message.GetType() {
	case Heartbeat:
		return nil
	case NewOrder:
		order, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		s.bindUID(order.UID, message.clientAddress)
		cmd := order.Command(stamp)
		s.ingress.Push(&cmd)
	case CancelOrder:
		cancel, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		s.bindUID(cancel.UID, message.clientAddress)
		cmd := cancel.Command(stamp)
		s.ingress.Push(&cmd)
	case MoveOrder:
		move, ok := message.message.(MoveOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		s.bindUID(move.UID, message.clientAddress)
		cmd := move.Command(stamp)
		s.ingress.Push(&cmd)
	case ReduceOrder:
		reduce, ok := message.message.(ReduceOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		s.bindUID(reduce.UID, message.clientAddress)
		cmd := reduce.Command(stamp)
		s.ingress.Push(&cmd)
	case LogBook:
		s.books.LogBook()
	default:
		log.Error().
			Int("messageType", int(message.message.GetType())).
			Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses and passes it forward to
// sessionHandler. If the connection dies, the client session is cleaned
// up. An error returned from here is logged by the worker pool; the
// connection is not requeued.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	// Set max read timeout so a dead tomb is noticed.
	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return conn.Close()
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// Nothing arrived in this window; requeue the session.
				s.pool.AddTask(conn)
				return nil
			}
			// The client has likely exited. Clean up the session.
			s.deleteClientSession(conn.RemoteAddr().String())
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.pool.AddTask(conn)
			return nil
		}

		// Pass over to the message handling buffer and exit this worker.
		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add.
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// bindUID associates a uid with the session it last spoke from, so reports
// can be routed back.
func (s *Server) bindUID(uid uint64, address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.sessionsByUID[uid] = address
}

// deleteClientSession is an atomic map remove.
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
	for uid, addr := range s.sessionsByUID {
		if addr == address {
			delete(s.sessionsByUID, uid)
		}
	}
}
