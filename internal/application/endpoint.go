package application

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

// ChallengeCharacteristic is the write-only characteristic controllers send
// their challenge to.
type ChallengeCharacteristic struct{}

func (ChallengeCharacteristic) Describe() domain.CharacteristicProperties {
	return domain.CharacteristicProperties{
		UUID:    domain.ChallengeCharacteristicID,
		Service: domain.ServiceUUID,
		Flags:   domain.FlagWrite,
	}
}

// ResponseCharacteristic is the read-only characteristic serving the digest
// of the last challenge.
type ResponseCharacteristic struct{}

func (ResponseCharacteristic) Describe() domain.CharacteristicProperties {
	return domain.CharacteristicProperties{
		UUID:    domain.ResponseCharacteristicID,
		Service: domain.ServiceUUID,
		Flags:   domain.FlagRead,
	}
}

type EndpointOption func(*Endpoint)

// WithAssemblyTimeout drops a partially written challenge when its next chunk
// arrives later than d.
func WithAssemblyTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		e.assemblyTimeout = d
	}
}

// Endpoint binds the challenge and response characteristics to the
// authentication core. Write and Read never fail towards the radio stack:
// internal errors are logged and degrade to a well-formed reply.
type Endpoint struct {
	registry *SessionRegistry
	clock    ports.Clock
	logger   *slog.Logger

	assemblyTimeout time.Duration

	mu          sync.Mutex
	reassembler *domain.Reassembler
	key         []byte
	response    []byte
}

func NewEndpoint(key []byte, registry *SessionRegistry, clock ports.Clock, logger *slog.Logger, opts ...EndpointOption) *Endpoint {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Endpoint{
		registry: registry,
		clock:    clock,
		logger:   logger,
		key:      append([]byte(nil), key...),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reassembler = domain.NewReassembler(domain.WithStaleAfter(e.assemblyTimeout, clock.Now))

	if len(e.key) == 0 {
		e.logger.Warn("no hmac key configured, challenges will be answered with the sentinel response")
	}

	return e
}

func (e *Endpoint) Characteristics() []domain.Describer {
	return []domain.Describer{ChallengeCharacteristic{}, ResponseCharacteristic{}}
}

// SetKey replaces the HMAC key used for subsequent challenges.
func (e *Endpoint) SetKey(key []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = append([]byte(nil), key...)
}

func (e *Endpoint) KeyConfigured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.key) > 0
}

// WritePending reports whether a chunked challenge write is partially
// assembled.
func (e *Endpoint) WritePending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reassembler.InProgress()
}

// Write handles one chunk of a challenge write.
func (e *Endpoint) Write(offset int, chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("challenge write failed", "offset", offset, "panic", r)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	message, complete := e.reassembler.Write(offset, chunk)
	if !complete {
		e.logger.Debug("challenge chunk buffered", "offset", offset, "size", len(chunk), "pending", e.reassembler.Pending())
		return
	}

	msg, err := domain.SplitMessage(message)
	if err != nil {
		e.logger.Error("split challenge message", "error", err)
		return
	}

	response, keyed := domain.ComputeResponse(msg.Challenge, e.key)
	if !keyed {
		e.logger.Warn("serving sentinel response", "controller", msg.ControllerID)
	}
	e.response = response

	if msg.ControllerID == "" {
		e.logger.Warn("challenge without controller id")
		return
	}

	if e.registry.RecordFirstSeen(msg.ControllerID, e.clock.Now()) {
		e.logger.Info("controller session started", "controller", msg.ControllerID)
	}
}

// Read serves the current response for a read at offset with the given mtu.
// Before any challenge completed it returns a single zero byte.
func (e *Endpoint) Read(offset, mtu int) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("response read failed", "offset", offset, "mtu", mtu, "panic", r)
			out = append([]byte(nil), domain.ZeroValue...)
		}
	}()

	e.mu.Lock()
	response := e.response
	e.mu.Unlock()

	if len(response) == 0 {
		return append([]byte(nil), domain.ZeroValue...)
	}

	return domain.NegotiateRead(response, offset, mtu)
}
