package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports/mocks"
)

func testLockRequest() domain.LockRequest {
	return domain.LockRequest{
		RequestID:    "01JQ3ZP2Y6N1V7W4KX5T8R9B0C",
		ControllerID: "CTRL001",
		DeviceLabel:  "desk",
		DeviceID:     "dev-1",
	}
}

func TestLockClientPostsToControllerPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rcu/lock/CTRL001", r.URL.Path)
		assert.Equal(t, "01JQ3ZP2Y6N1V7W4KX5T8R9B0C", r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"rcuId": "CTRL001", "deviceName": "desk", "deviceId": "dev-1"}, body)

		_, _ = w.Write([]byte(`{"status":"locked"}`))
	}))
	t.Cleanup(server.Close)

	client := LockClient{
		API:        API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"},
		HTTPClient: server.Client(),
	}

	require.NoError(t, client.Lock(context.Background(), testLockRequest()))
}

func TestLockClientRejectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := LockClient{API: API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"}, HTTPClient: server.Client()}

	err := client.Lock(context.Background(), testLockRequest())
	require.ErrorIs(t, err, domain.ErrLockRejected)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLockClientRejectsNonJSONResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`OK`))
	}))
	t.Cleanup(server.Close)

	client := LockClient{API: API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"}, HTTPClient: server.Client()}

	err := client.Lock(context.Background(), testLockRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLockRejected)
}

func TestLockClientAcceptsMissingStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := LockClient{API: API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"}, HTTPClient: server.Client()}

	require.NoError(t, client.Lock(context.Background(), testLockRequest()))
}

func TestLockClientTimesOut(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status":"locked"}`))
	}))
	t.Cleanup(server.Close)

	client := LockClient{
		API:            API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"},
		HTTPClient:     server.Client(),
		RequestTimeout: 20 * time.Millisecond,
	}

	require.Error(t, client.Lock(context.Background(), testLockRequest()))
}

func TestLockClientEscapesControllerID(t *testing.T) {
	t.Parallel()

	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"status":"locked"}`))
	}))
	t.Cleanup(server.Close)

	client := LockClient{API: API{BaseURL: server.URL, LockPath: "/api/rcu/lock/"}, HTTPClient: server.Client()}

	req := testLockRequest()
	req.ControllerID = "a/b"
	require.NoError(t, client.Lock(context.Background(), req))
	assert.Equal(t, "/api/rcu/lock/a%2Fb", path.Load())
}

func TestBreakerLockNotifierOpensAfterConsecutiveFailures(t *testing.T) {
	inner := mocks.NewMockLockNotifier(t)
	inner.EXPECT().Lock(mockAnyContext(), testLockRequest()).Return(errors.New("connection refused")).Times(2)

	notifier := NewBreakerLockNotifier(inner, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	require.Error(t, notifier.Lock(context.Background(), testLockRequest()))
	require.Error(t, notifier.Lock(context.Background(), testLockRequest()))
	assert.Equal(t, gobreaker.StateOpen, notifier.State())

	err := notifier.Lock(context.Background(), testLockRequest())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerLockNotifierPassesThroughSuccess(t *testing.T) {
	inner := mocks.NewMockLockNotifier(t)
	inner.EXPECT().Lock(mockAnyContext(), testLockRequest()).Return(nil).Once()

	notifier := NewBreakerLockNotifier(inner, BreakerConfig{}, nil)

	require.NoError(t, notifier.Lock(context.Background(), testLockRequest()))
	assert.Equal(t, gobreaker.StateClosed, notifier.State())
}

func mockAnyContext() interface{} {
	return mock.Anything
}
