package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sessentry/sessentry/internal/logger"
)

// requestTimeout bounds how long a single control request may take,
// covering both the read and the command execution.
const requestTimeout = 30 * time.Second

// Dispatch executes a command and returns its reply text. A false ok means
// the command was not recognized.
type Dispatch func(ctx context.Context, command, sender string) (reply string, ok bool)

// Server accepts control connections and dispatches the commands they carry.
type Server struct {
	ln       net.Listener
	dispatch Dispatch
	log      *slog.Logger

	wg      sync.WaitGroup
	closing chan struct{}

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer opens the control listener at socketPath and starts accepting
// connections.
func NewServer(socketPath string, dispatch Dispatch, log *slog.Logger) (*Server, error) {
	ln, err := listen(socketPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:       ln,
		dispatch: dispatch,
		log:      log,
		closing:  make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	log.Info("control server listening", "addr", ln.Addr().String())
	return s, nil
}

// Close stops accepting connections, disconnects any clients, and waits for
// the connection goroutines to drain. Without the disconnect an idle client
// would hold shutdown until its read deadline expired.
func (s *Server) Close() error {
	close(s.closing)
	err := s.ln.Close()
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	return err
}

// track registers a live connection and returns its unregister func. A
// connection that registers after shutdown began is closed on the spot.
func (s *Server) track(conn net.Conn) func() {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
	select {
	case <-s.closing:
		conn.Close()
	default:
	}
	return func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("control accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn handles requests on one connection until the client hangs up.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	defer s.track(conn)()

	for {
		conn.SetDeadline(time.Now().Add(requestTimeout))

		opcode, payload, err := DecodeFrame(conn)
		if err != nil {
			// EOF here is the normal end of a client session.
			return
		}
		if opcode != OpRequest {
			s.log.Warn("unexpected control opcode", "opcode", uint32(opcode))
			return
		}

		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.respond(conn, Response{Error: fmt.Sprintf("malformed request: %v", err)})
			return
		}
		logger.Trace(s.log, "control request", "id", req.ID, "command", req.Command)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		reply, ok := s.dispatch(ctx, req.Command, req.Sender)
		cancel()

		resp := Response{ID: req.ID, Reply: reply}
		if !ok {
			resp = Response{ID: req.ID, Error: fmt.Sprintf("unknown command: %s", req.Command)}
		}
		if err := s.respond(conn, resp); err != nil {
			s.log.Warn("control response failed", "id", req.ID, "error", err)
			return
		}
	}
}

func (s *Server) respond(conn net.Conn, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	frame, err := EncodeFrame(OpResponse, payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}
