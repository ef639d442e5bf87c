package link

import (
	"context"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/lockpad/internal/application"
	"github.com/bnema/lockpad/internal/domain"
)

type chunk struct {
	offset int
	value  []byte
}

type fakePeripheral struct {
	mu      sync.Mutex
	writes  []chunk
	value   []byte
	readMTU []int
	pending bool
}

func (p *fakePeripheral) Write(offset int, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, chunk{offset: offset, value: append([]byte(nil), value...)})
}

func (p *fakePeripheral) WritePending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *fakePeripheral) setPending(pending bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = pending
}

func (p *fakePeripheral) Read(offset, mtu int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readMTU = append(p.readMTU, mtu)
	return domain.NegotiateRead(p.value, offset, mtu)
}

func (p *fakePeripheral) Characteristics() []domain.Describer {
	return []domain.Describer{application.ChallengeCharacteristic{}, application.ResponseCharacteristic{}}
}

func (p *fakePeripheral) Writes() []chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chunk(nil), p.writes...)
}

func newTestLink(t *testing.T, peripheral *fakePeripheral, status StatusFunc) (*Client, string) {
	t.Helper()

	server := httptest.NewServer(NewServer(peripheral, status, nil).Handler())
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	client, err := Dial(ctx, server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, server.URL
}

func testValue() []byte {
	value := make([]byte, domain.ResponseLength)
	for i := range value {
		value[i] = byte(i)
	}
	return value
}

func TestLinkWriteReachesPeripheral(t *testing.T) {
	peripheral := &fakePeripheral{}
	client, _ := newTestLink(t, peripheral, nil)

	message := make([]byte, domain.MessageLength)
	require.NoError(t, client.WriteChunked(context.Background(), domain.ChallengeCharacteristicID, message, 20))

	writes := peripheral.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, 0, writes[0].offset)
	assert.Len(t, writes[0].value, 20)
	assert.Equal(t, 20, writes[1].offset)
	assert.Len(t, writes[1].value, 3)
}

func TestLinkReadUsesDefaultMTUUntilExchanged(t *testing.T) {
	peripheral := &fakePeripheral{value: testValue()}
	client, _ := newTestLink(t, peripheral, nil)

	value, err := client.Read(context.Background(), domain.ResponseCharacteristicID, 0)
	require.NoError(t, err)
	assert.Equal(t, testValue()[:DefaultMTU-1], value)

	mtu, err := client.ExchangeMTU(context.Background(), 247)
	require.NoError(t, err)
	assert.Equal(t, 247, mtu)
	assert.Equal(t, 247, client.MTU())

	value, err = client.Read(context.Background(), domain.ResponseCharacteristicID, 0)
	require.NoError(t, err)
	assert.Equal(t, testValue(), value)
}

func TestLinkExchangeMTUClamps(t *testing.T) {
	client, _ := newTestLink(t, &fakePeripheral{}, nil)

	mtu, err := client.ExchangeMTU(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, DefaultMTU, mtu)

	mtu, err = client.ExchangeMTU(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxMTU, mtu)
}

func TestLinkRejectsSecondWriterWhileChallengePending(t *testing.T) {
	ctx := context.Background()
	peripheral := &fakePeripheral{}
	first, baseURL := newTestLink(t, peripheral, nil)

	second, err := Dial(ctx, baseURL)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, first.Write(ctx, domain.ChallengeCharacteristicID, 0, []byte("0123456789")))
	peripheral.setPending(true)

	err = second.Write(ctx, domain.ChallengeCharacteristicID, 0, []byte("abcdefghij"))
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, StatusBusy, frameErr.Status)

	require.NoError(t, first.Write(ctx, domain.ChallengeCharacteristicID, 10, []byte("0123456789abc")))
	peripheral.setPending(false)

	require.NoError(t, second.Write(ctx, domain.ChallengeCharacteristicID, 0, []byte("abcdefghij")))

	writes := peripheral.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, []byte("0123456789"), writes[0].value)
	assert.Equal(t, 10, writes[1].offset)
	assert.Equal(t, []byte("abcdefghij"), writes[2].value)
}

func TestLinkReleasesWriterOnDisconnect(t *testing.T) {
	ctx := context.Background()
	peripheral := &fakePeripheral{}
	first, baseURL := newTestLink(t, peripheral, nil)

	second, err := Dial(ctx, baseURL)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, first.Write(ctx, domain.ChallengeCharacteristicID, 0, []byte("0123456789")))
	peripheral.setPending(true)
	require.NoError(t, first.Close())

	assert.Eventually(t, func() bool {
		return second.Write(ctx, domain.ChallengeCharacteristicID, 0, []byte("abcdefghij")) == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLinkReadPastEndReturnsEmpty(t *testing.T) {
	client, _ := newTestLink(t, &fakePeripheral{value: testValue()}, nil)

	_, err := client.ExchangeMTU(context.Background(), 247)
	require.NoError(t, err)

	value, err := client.Read(context.Background(), domain.ResponseCharacteristicID, 40)
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.NotNil(t, value)
}

func TestLinkRejectsWrongProperty(t *testing.T) {
	peripheral := &fakePeripheral{value: testValue()}
	client, _ := newTestLink(t, peripheral, nil)

	err := client.Write(context.Background(), domain.ResponseCharacteristicID, 0, []byte{1})
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, StatusNotPermitted, frameErr.Status)

	_, err = client.Read(context.Background(), domain.ChallengeCharacteristicID, 0)
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, StatusNotPermitted, frameErr.Status)

	assert.Empty(t, peripheral.Writes())
}

func TestLinkRejectsUnknownCharacteristic(t *testing.T) {
	client, _ := newTestLink(t, &fakePeripheral{}, nil)

	_, err := client.Read(context.Background(), uuid.MustParse("0000ffff-0000-1000-8000-00805f9b34fb"), 0)
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, StatusUnknownCharacteristic, frameErr.Status)
}

func TestLinkRejectsTextFrames(t *testing.T) {
	server := httptest.NewServer(NewServer(&fakePeripheral{}, nil, nil).Handler())
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint, err := endpointURL(server.URL, GATTPath, true)
	require.NoError(t, err)
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("hello")))

	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	reply, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, OpError, reply.Op)
	assert.Equal(t, StatusInvalidFrame, reply.Status)
}

func TestFetchStatus(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	status := application.Status{
		DeviceID:      "dev-1",
		DeviceLabel:   "desk",
		Unlocked:      true,
		Monitor:       application.MonitorActive,
		Threshold:     20 * time.Second,
		KeyConfigured: true,
		Sessions: []application.SessionStatus{
			{ControllerID: "CTRL001", FirstSeen: t0, Remaining: 12 * time.Second},
		},
		CapturedAt: t0.Add(8 * time.Second),
	}
	_, baseURL := newTestLink(t, &fakePeripheral{}, func() application.Status { return status })

	got, err := FetchStatus(context.Background(), nil, baseURL)
	require.NoError(t, err)
	assert.Equal(t, status.DeviceID, got.DeviceID)
	assert.Equal(t, status.DeviceLabel, got.DeviceLabel)
	assert.True(t, got.Unlocked)
	assert.Equal(t, application.MonitorActive, got.Monitor)
	assert.Equal(t, 20*time.Second, got.Threshold)
	assert.True(t, got.KeyConfigured)
	assert.True(t, got.CapturedAt.Equal(status.CapturedAt))
	require.Len(t, got.Sessions, 1)
	assert.Equal(t, domain.ControllerID("CTRL001"), got.Sessions[0].ControllerID)
	assert.True(t, got.Sessions[0].FirstSeen.Equal(t0))
	assert.Equal(t, 12*time.Second, got.Sessions[0].Remaining)
}

func TestFetchStatusUnavailable(t *testing.T) {
	_, baseURL := newTestLink(t, &fakePeripheral{}, nil)

	_, err := FetchStatus(context.Background(), nil, baseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(&fakePeripheral{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	client, err := Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = client.ExchangeMTU(context.Background(), 64)
	require.NoError(t, err)
	assert.Equal(t, 1, server.Connections())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base      string
		websocket bool
		want      string
		wantErr   bool
	}{
		{base: "127.0.0.1:7420", websocket: true, want: "ws://127.0.0.1:7420/gatt"},
		{base: "http://127.0.0.1:7420/", websocket: true, want: "ws://127.0.0.1:7420/gatt"},
		{base: "wss://pad.example.com", websocket: false, want: "https://pad.example.com/gatt"},
		{base: "", wantErr: true},
		{base: "ftp://host", wantErr: true},
	}

	for _, tt := range tests {
		got, err := endpointURL(tt.base, GATTPath, tt.websocket)
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}
}
