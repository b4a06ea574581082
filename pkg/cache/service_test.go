package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

func setup(t *testing.T) (*miniredis.Miniredis, Service) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewService(client)
}

func TestGet_Miss(t *testing.T) {
	_, svc := setup(t)

	var dest booking
	err := svc.Get(context.Background(), "ferrylink:booking:missing", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetOrSet_ReadThrough(t *testing.T) {
	mr, svc := setup(t)
	ctx := context.Background()
	key := "ferrylink:booking:FB-1"

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return booking{Code: "FB-1", Status: "CONFIRMED"}, nil
	}

	var first, second booking
	require.NoError(t, svc.GetOrSet(ctx, key, time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, key, time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "CONFIRMED", second.Status)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestGetOrSet_FetcherErrorNotCached(t *testing.T) {
	mr, svc := setup(t)
	boom := errors.New("db down")

	var dest booking
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) { return nil, boom }, &dest)
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestDeletePattern(t *testing.T) {
	mr, svc := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "ferrylink:booking:FB-1", booking{Code: "FB-1"}, time.Minute))
	require.NoError(t, svc.Set(ctx, "ferrylink:booking:FB-2", booking{Code: "FB-2"}, time.Minute))
	require.NoError(t, svc.Set(ctx, "ferrylink:tickets:FB-1", booking{Code: "FB-1"}, time.Minute))

	require.NoError(t, svc.DeletePattern(ctx, "ferrylink:booking:*"))

	assert.False(t, mr.Exists("ferrylink:booking:FB-1"))
	assert.False(t, mr.Exists("ferrylink:booking:FB-2"))
	assert.True(t, mr.Exists("ferrylink:tickets:FB-1"))
	assert.NoError(t, svc.DeletePattern(ctx, "nothing:*"))
}
