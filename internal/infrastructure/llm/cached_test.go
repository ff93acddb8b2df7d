package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
)

func cachedVerifier(t *testing.T, next recognizer.Verifier) (*CachedVerifier, redismock.ClientMock, string) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	cache := redis.NewRedisCache(redis.NewClientFromUniversal(db, nil, nil), nil, redis.WithJitter(0))
	key, err := verdictKey(sampleRequest)
	require.NoError(t, err)
	return NewCachedVerifier(next, cache, time.Hour, nil), mock, "keyqto:" + key
}

func TestCachedVerifier_Hit(t *testing.T) {
	calls := 0
	next := recognizer.VerifierFunc(func(context.Context, recognizer.VerificationRequest) (*recognizer.Verdict, error) {
		calls++
		return nil, nil
	})
	v, mock, key := cachedVerifier(t, next)
	data, _ := json.Marshal(recognizer.Verdict{Outcome: recognizer.OutcomeReject})
	mock.ExpectGet(key).SetVal(string(data))

	got, err := v.Verify(context.Background(), sampleRequest)

	require.NoError(t, err)
	assert.Equal(t, recognizer.OutcomeReject, got.Outcome)
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedVerifier_MissStores(t *testing.T) {
	verdict := &recognizer.Verdict{Outcome: recognizer.OutcomeAccept}
	next := recognizer.VerifierFunc(func(context.Context, recognizer.VerificationRequest) (*recognizer.Verdict, error) {
		return verdict, nil
	})
	v, mock, key := cachedVerifier(t, next)
	data, _ := json.Marshal(verdict)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, time.Hour).SetVal("OK")

	got, err := v.Verify(context.Background(), sampleRequest)

	require.NoError(t, err)
	assert.Same(t, verdict, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedVerifier_ErrorsAreNotCached(t *testing.T) {
	next := recognizer.VerifierFunc(func(context.Context, recognizer.VerificationRequest) (*recognizer.Verdict, error) {
		return nil, stderrors.New("model overloaded")
	})
	v, mock, key := cachedVerifier(t, next)
	mock.ExpectGet(key).SetErr(stderrors.New("connection refused"))

	_, err := v.Verify(context.Background(), sampleRequest)

	assert.EqualError(t, err, "model overloaded")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictKey_Stable(t *testing.T) {
	a, err := verdictKey(sampleRequest)
	require.NoError(t, err)
	b, _ := verdictKey(sampleRequest)
	assert.Equal(t, a, b)

	other := sampleRequest
	other.Width = 0.5
	c, _ := verdictKey(other)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len(verdictKeyPrefix)+32)
}

//Personal.AI order the ending
