package link

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/bnema/lockpad/internal/application"
	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/infra/tracer"
)

const (
	GATTPath   = "/gatt"
	StatusPath = "/status"

	// DefaultMTU is the ATT MTU in effect until a client exchanges a larger one.
	DefaultMTU = 23
	MaxMTU     = 517

	maxFrameBytes   = 4096
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Peripheral is the GATT side the link exposes to controllers.
type Peripheral interface {
	Write(offset int, chunk []byte)
	WritePending() bool
	Read(offset, mtu int) []byte
	Characteristics() []domain.Describer
}

type StatusFunc func() application.Status

// Server carries GATT operations over websocket connections, one connection
// per controller, and serves a JSON status snapshot.
//
// The peripheral assembles a single challenge at a time. While one
// connection's chunked write is pending, writes from other connections are
// answered with StatusBusy.
type Server struct {
	peripheral      Peripheral
	status          StatusFunc
	logger          *slog.Logger
	characteristics map[uuid.UUID]domain.CharacteristicProperties
	connections     atomic.Int64

	writeMu sync.Mutex
	writer  *session
}

func NewServer(peripheral Peripheral, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	characteristics := make(map[uuid.UUID]domain.CharacteristicProperties)
	for _, c := range peripheral.Characteristics() {
		props := c.Describe()
		characteristics[props.UUID] = props
	}

	return &Server{
		peripheral:      peripheral,
		status:          status,
		logger:          logger,
		characteristics: characteristics,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+GATTPath, s.handleGATT)
	mux.HandleFunc("GET "+StatusPath, s.handleStatus)
	return mux
}

// Connections returns the number of open controller connections.
func (s *Server) Connections() int {
	return int(s.connections.Load())
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("radio link listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toStatusPayload(s.status())); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

func (s *Server) handleGATT(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("accept controller connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	s.connections.Add(1)
	defer s.connections.Add(-1)

	session := &session{conn: conn, mtu: DefaultMTU}
	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Info("controller connected")

	err = s.serveSession(r.Context(), session, logger)
	s.releaseWriter(session)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		logger.Info("controller disconnected")
	default:
		if r.Context().Err() == nil {
			logger.Warn("controller connection closed", "error", err)
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	mtu  int
}

func (c *session) send(ctx context.Context, f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return c.conn.Write(ctx, websocket.MessageBinary, data)
}

func (s *Server) serveSession(ctx context.Context, c *session, logger *slog.Logger) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageBinary {
			if err := c.send(ctx, errorFrame(0, StatusInvalidFrame, "binary frames only")); err != nil {
				return err
			}
			continue
		}

		reply := s.handleFrame(ctx, c, data, logger)
		if err := c.send(ctx, reply); err != nil {
			return err
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, c *session, data []byte, logger *slog.Logger) Frame {
	req, err := DecodeFrame(data)
	if err != nil {
		logger.Debug("invalid frame", "error", err)
		return errorFrame(req.ID, StatusInvalidFrame, err.Error())
	}

	switch req.Op {
	case OpExchangeMTU:
		c.mtu = min(max(req.MTU, DefaultMTU), MaxMTU)
		logger.Debug("mtu exchanged", "requested", req.MTU, "mtu", c.mtu)
		return Frame{ID: req.ID, Op: OpExchangeMTU, MTU: c.mtu}
	case OpWrite:
		return s.handleWrite(ctx, c, req, logger)
	case OpRead:
		return s.handleRead(ctx, c, req)
	default:
		return errorFrame(req.ID, StatusInvalidFrame, "unexpected "+req.Op.String()+" frame")
	}
}

func (s *Server) handleWrite(ctx context.Context, c *session, req Frame, logger *slog.Logger) Frame {
	props, status, msg := s.lookup(req.Characteristic)
	if status != StatusOK {
		return errorFrame(req.ID, status, msg)
	}
	if !props.Flags.Write() {
		return errorFrame(req.ID, StatusNotPermitted, "characteristic is not writable")
	}

	_, span := tracer.StartSpan(ctx, "gatt.write")
	defer span.End()
	span.SetAttributes(tracer.IntAttr("offset", req.Offset), tracer.IntAttr("size", len(req.Value)))

	s.writeMu.Lock()
	if s.writer != nil && s.writer != c && s.peripheral.WritePending() {
		s.writeMu.Unlock()
		logger.Debug("write rejected, another controller is mid-write", "offset", req.Offset)
		return errorFrame(req.ID, StatusBusy, "another controller is writing a challenge")
	}
	s.writer = c
	s.peripheral.Write(req.Offset, req.Value)
	s.writeMu.Unlock()
	logger.Debug("characteristic written", "characteristic", props.UUID, "offset", req.Offset, "size", len(req.Value))

	return Frame{ID: req.ID, Op: OpWrite, Characteristic: req.Characteristic}
}

func (s *Server) handleRead(ctx context.Context, c *session, req Frame) Frame {
	props, status, msg := s.lookup(req.Characteristic)
	if status != StatusOK {
		return errorFrame(req.ID, status, msg)
	}
	if !props.Flags.Read() {
		return errorFrame(req.ID, StatusNotPermitted, "characteristic is not readable")
	}

	_, span := tracer.StartSpan(ctx, "gatt.read")
	defer span.End()
	span.SetAttributes(tracer.IntAttr("offset", req.Offset), tracer.IntAttr("mtu", c.mtu))

	return Frame{ID: req.ID, Op: OpRead, Characteristic: req.Characteristic, Value: s.peripheral.Read(req.Offset, c.mtu)}
}

func (s *Server) releaseWriter(c *session) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writer == c {
		s.writer = nil
	}
}

func (s *Server) lookup(characteristic string) (domain.CharacteristicProperties, Status, string) {
	id, err := uuid.Parse(characteristic)
	if err != nil {
		return domain.CharacteristicProperties{}, StatusInvalidFrame, "malformed characteristic uuid"
	}

	props, ok := s.characteristics[id]
	if !ok {
		return domain.CharacteristicProperties{}, StatusUnknownCharacteristic, id.String()
	}

	return props, StatusOK, ""
}

func errorFrame(id uint32, status Status, message string) Frame {
	return Frame{ID: id, Op: OpError, Status: status, Message: message}
}
