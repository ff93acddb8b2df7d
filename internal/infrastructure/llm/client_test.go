package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

func chatReply(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(data)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL:      srv.URL + "/v1/",
		APIKey:       "sk-test",
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, nil, WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)
	return c, srv
}

var sampleRequest = recognizer.VerificationRequest{
	Text: "KL1 300×600", Category: "concrete beam", Confidence: 0.78, Length: 0.3, Width: 0.6,
}

func TestVerify_Accept(t *testing.T) {
	var got chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(chatReply(`{"outcome":"accept","reason":"beam section"}`)))
	})

	v, err := c.Verify(context.Background(), sampleRequest)

	require.NoError(t, err)
	assert.Equal(t, recognizer.OutcomeAccept, v.Outcome)
	assert.Equal(t, "beam section", v.Reason)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, `"category":"concrete beam"`)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestVerify_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chatReply(`{"outcome":"adjust","delta":0.05}`)))
	})

	v, err := c.Verify(context.Background(), sampleRequest)

	require.NoError(t, err)
	assert.Equal(t, recognizer.OutcomeAdjust, v.Outcome)
	assert.InDelta(t, 0.05, v.Delta, 1e-12)
	assert.Equal(t, int32(3), calls.Load())
}

func TestVerify_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Verify(context.Background(), sampleRequest)

	assert.True(t, errors.IsCode(err, errors.ErrCodeVerifierUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestVerify_RateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Verify(context.Background(), sampleRequest)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVerifierRateLimited))
}

func TestVerify_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	})

	_, err := c.Verify(context.Background(), sampleRequest)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVerifierBadResponse))
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerify_BadAnswers(t *testing.T) {
	cases := map[string]string{
		"no choices": `{"choices":[]}`,
		"not json":   chatReply("I think it is a beam."),
		"bad body":   "<html>",
		"unknown":    chatReply(`{"outcome":"maybe"}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Verify(context.Background(), sampleRequest)
			assert.True(t, errors.IsCode(err, errors.ErrCodeVerifierBadResponse))
		})
	}
}

func TestVerify_Cancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Verify(ctx, sampleRequest)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = NewClient(Config{BaseURL: "ftp://models"}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		in      string
		outcome recognizer.Outcome
	}{
		{`{"outcome":"reject","reason":"title block"}`, recognizer.OutcomeReject},
		{"```json\n{\"outcome\":\"Accept\"}\n```", recognizer.OutcomeAccept},
		{`Verdict: {"outcome":"adjust","delta":-0.1}`, recognizer.OutcomeAdjust},
	}
	for _, tc := range cases {
		v, err := ParseVerdict(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.outcome, v.Outcome, tc.in)
	}
}

func TestBackoff_Bounded(t *testing.T) {
	c := &Client{waitMin: 10 * time.Millisecond, waitMax: 40 * time.Millisecond}
	for attempt := 1; attempt <= 6; attempt++ {
		assert.LessOrEqual(t, c.backoff(attempt), 50*time.Millisecond)
	}
	assert.Equal(t, 2*time.Second, retryAfter(" 2 "))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}

//Personal.AI order the ending
