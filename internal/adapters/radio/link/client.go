package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/bnema/lockpad/internal/application"
)

const (
	maxStatusBytes        = 1 << 20
	defaultRequestTimeout = 10 * time.Second
)

// Client is the controller side of the radio link. Calls are serialised; each
// request waits for its reply.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	nextID uint32
	mtu    int
}

// Dial connects to the GATT endpoint of the link at baseURL (http or ws).
func Dial(ctx context.Context, baseURL string) (*Client, error) {
	endpoint, err := endpointURL(baseURL, GATTPath, true)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial radio link: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)

	return &Client{conn: conn, mtu: DefaultMTU}, nil
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// MTU returns the MTU agreed with the peripheral.
func (c *Client) MTU() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtu
}

func (c *Client) ExchangeMTU(ctx context.Context, mtu int) (int, error) {
	reply, err := c.roundTrip(ctx, Frame{Op: OpExchangeMTU, MTU: mtu})
	if err != nil {
		return 0, fmt.Errorf("exchange mtu: %w", err)
	}

	c.mu.Lock()
	c.mtu = reply.MTU
	c.mu.Unlock()

	return reply.MTU, nil
}

func (c *Client) Write(ctx context.Context, characteristic uuid.UUID, offset int, value []byte) error {
	if _, err := c.roundTrip(ctx, Frame{Op: OpWrite, Characteristic: characteristic.String(), Offset: offset, Value: value}); err != nil {
		return fmt.Errorf("write characteristic: %w", err)
	}
	return nil
}

// WriteChunked writes value in chunks of at most chunkSize bytes, each at its
// own offset.
func (c *Client) WriteChunked(ctx context.Context, characteristic uuid.UUID, value []byte, chunkSize int) error {
	if chunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	for offset := 0; offset < len(value); offset += chunkSize {
		end := min(offset+chunkSize, len(value))
		if err := c.Write(ctx, characteristic, offset, value[offset:end]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) Read(ctx context.Context, characteristic uuid.UUID, offset int) ([]byte, error) {
	reply, err := c.roundTrip(ctx, Frame{Op: OpRead, Characteristic: characteristic.String(), Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("read characteristic: %w", err)
	}
	if reply.Value == nil {
		return []byte{}, nil
	}
	return reply.Value, nil
}

func (c *Client) roundTrip(ctx context.Context, req Frame) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = c.nextID

	data, err := EncodeFrame(req)
	if err != nil {
		return Frame{}, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	if err := c.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return Frame{}, err
	}

	_, raw, err := c.conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}

	reply, err := DecodeFrame(raw)
	if err != nil {
		return Frame{}, err
	}
	if reply.Op == OpError {
		return Frame{}, &FrameError{Status: reply.Status, Message: reply.Message}
	}
	if reply.ID != req.ID {
		return Frame{}, fmt.Errorf("reply id %d does not match request %d", reply.ID, req.ID)
	}

	return reply, nil
}

// FetchStatus reads the status snapshot served by the link at baseURL.
func FetchStatus(ctx context.Context, httpClient *http.Client, baseURL string) (application.Status, error) {
	endpoint, err := endpointURL(baseURL, StatusPath, false)
	if err != nil {
		return application.Status{}, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return application.Status{}, fmt.Errorf("create status request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return application.Status{}, fmt.Errorf("request status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return application.Status{}, fmt.Errorf("request status: status %d", resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBytes)).Decode(&payload); err != nil {
		return application.Status{}, fmt.Errorf("decode status response: %w", err)
	}

	return fromStatusPayload(payload), nil
}

// endpointURL accepts host:port, http(s):// or ws(s):// base URLs.
func endpointURL(baseURL string, path string, websocketScheme bool) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", errors.New("link address is required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse link address: %w", err)
	}
	if parsed.Host == "" {
		return "", errors.New("link address host is required")
	}

	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "http"
		if websocketScheme {
			parsed.Scheme = "ws"
		}
	case "https", "wss":
		parsed.Scheme = "https"
		if websocketScheme {
			parsed.Scheme = "wss"
		}
	default:
		return "", fmt.Errorf("unsupported link scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + path
	return parsed.String(), nil
}
