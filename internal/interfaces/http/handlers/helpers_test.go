package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockTakeoffService struct {
	mock.Mock
}

func (m *mockTakeoffService) Run(ctx context.Context, req *takeoff.RunRequest) (*takeoff.Takeoff, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*takeoff.Takeoff), args.Error(1)
}

func (m *mockTakeoffService) Get(ctx context.Context, id string) (*takeoff.Takeoff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*takeoff.Takeoff), args.Error(1)
}

func (m *mockTakeoffService) List(ctx context.Context, limit, offset int) ([]*takeoff.Takeoff, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*takeoff.Takeoff), args.Error(1)
}

type mockRequestPublisher struct {
	mock.Mock
}

func (m *mockRequestPublisher) PublishRequested(ctx context.Context, req *takeoff.RunRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func sampleTakeoff() *takeoff.Takeoff {
	return &takeoff.Takeoff{
		ID:      "2f7d0f0c-9d76-4bd6-8a57-0a3dfb1f3d11",
		Name:    "level 1",
		Summary: takeoff.Summarize(nil),
	}
}

//Personal.AI order the ending
