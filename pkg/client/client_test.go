package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

type testLogger struct {
	mu      sync.Mutex
	lastMsg string
	count   int32
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }

func (l *testLogger) log(format string, args ...interface{}) {
	atomic.AddInt32(&l.count, 1)
	l.mu.Lock()
	l.lastMsg = fmt.Sprintf(format, args...)
	l.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, "keyqto-go-sdk/"+Version, c.userAgent)
	assert.Equal(t, 3, c.retryMax)
	assert.Empty(t, c.apiKey)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		_, err := NewClient(base)
		assert.True(t, stderrors.Is(err, ErrInvalidConfig), base)
	}
}

func TestClient_SubClients_ConcurrentAccess(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	takeoffs := make([]*TakeoffsClient, 16)
	prices := make([]*PricesClient, 16)
	for i := range takeoffs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			takeoffs[i] = c.Takeoffs()
			prices[i] = c.Prices()
		}(i)
	}
	wg.Wait()
	for i := range takeoffs {
		assert.Same(t, takeoffs[0], takeoffs[i])
		assert.Same(t, prices[0], prices[i])
	}
}

func TestClient_RequestHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, PriceTable{Version: 1})
	}, WithAPIKey("secret"), WithUserAgent("ua/1"))

	_, err := c.Prices().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "ua/1", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Empty(t, got.Get("Content-Type"))
}

func TestClient_NoAPIKey(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, PriceTable{})
	})
	_, err := c.Prices().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_4xxNoRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "QTO_001", "message": "takeoff not found"})
	})

	_, err := c.Takeoffs().Get(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "QTO_001", apiErr.Code)
	assert.Equal(t, "takeoff not found", apiErr.Message)
	assert.NotEmpty(t, apiErr.RequestID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_5xxRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, PriceTable{Version: 7})
	})

	table, err := c.Prices().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), table.Version)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_5xxRetryExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "COMMON_001", "message": "internal error"})
	}, WithRetryMax(2))

	_, err := c.Prices().List(context.Background())
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_503NotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "COMMON_008", "message": "no queue"})
	})

	_, err := c.Takeoffs().Submit(context.Background(), &TakeoffRequest{Annotations: []Annotation{{Content: "C30柱"}}})
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_429RetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, http.StatusOK, PriceTable{})
	})

	_, err := c.Prices().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_NonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad request")
	})
	_, err := c.Prices().List(context.Background())
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, "bad request", apiErr.Message)
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	logger := &testLogger{}
	c, err := NewClient(base, WithRetryMax(1), WithRetryWait(time.Millisecond, time.Millisecond), WithLogger(logger))
	require.NoError(t, err)

	_, err = c.Prices().List(context.Background())
	assert.Error(t, err)
	assert.Positive(t, atomic.LoadInt32(&logger.count))
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, PriceTable{})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Prices().List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ContextTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Prices().List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readyz", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, Health{
			Status:     "not_ready",
			Components: map[string]ComponentCheck{"redis": {Status: "down", Error: "refused"}},
		})
	})

	h, err := c.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "not_ready", h.Status)
	assert.Equal(t, "down", h.Components["redis"].Status)
}

func TestAPIError_Methods(t *testing.T) {
	e := &APIError{StatusCode: http.StatusTooManyRequests, Code: "COMMON_007", Message: "slow down", RequestID: "r1"}
	assert.True(t, e.IsRateLimited())
	assert.False(t, e.IsNotFound())
	assert.False(t, e.IsServerError())
	assert.Equal(t, "keyqto: COMMON_007 (HTTP 429): slow down [request_id=r1]", e.Error())
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}
	b1 := c.calculateBackoff(1)
	assert.GreaterOrEqual(t, b1, 100*time.Millisecond)
	assert.Less(t, b1, 125*time.Millisecond)

	b5 := c.calculateBackoff(5)
	assert.GreaterOrEqual(t, b5, 300*time.Millisecond)
	assert.Less(t, b5, 375*time.Millisecond)
}

func TestValidateRequest(t *testing.T) {
	assert.True(t, errors.IsCode(validateRequest(nil), errors.CodeInvalidParam))
	assert.True(t, errors.IsCode(validateRequest(&TakeoffRequest{Name: "x"}), errors.CodeInvalidParam))
	assert.NoError(t, validateRequest(&TakeoffRequest{Annotations: []Annotation{{Content: "a"}}}))
}

//Personal.AI order the ending
