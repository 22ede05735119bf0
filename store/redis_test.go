package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/etnz/backtest"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, id string, p backtest.Payload, at time.Time) string {
	t.Helper()
	data, err := json.Marshal(backtest.Record{Payload: p, RunID: id, SavedAt: at})
	require.NoError(t, err)
	return string(data)
}

func TestRedisSave(t *testing.T) {
	db, mock := redismock.NewClientMock()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewRedis(db, "bt:")
	s.Now = clock(now)

	p := payload(0.1, 1)
	mock.ExpectSet("bt:run:run_a", encoded(t, "run_a", p, now), 0).SetVal("OK")
	mock.ExpectZAdd("bt:runs", &redis.Z{Score: float64(now.UnixMilli()), Member: "run_a"}).SetVal(1)

	id, err := s.Save(context.Background(), "run_a", p)
	require.NoError(t, err)
	assert.Equal(t, "run_a", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedis(db, "bt:")
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectGet("bt:run:run_a").SetVal(encoded(t, "run_a", payload(0.1, 1), now))
		got, err := s.Load(context.Background(), "run_a")
		require.NoError(t, err)
		assert.Equal(t, "run_a", got.RunID)
		assert.True(t, now.Equal(got.SavedAt))
		assert.Equal(t, 0.1, got.Summary.CumReturn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectGet("bt:run:nope").RedisNil()
		_, err := s.Load(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisList(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedis(db, "bt:")
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectZRevRange("bt:runs", 0, -1).SetVal([]string{"run_b", "run_gone", "run_a"})
	mock.ExpectMGet("bt:run:run_b", "bt:run:run_gone", "bt:run:run_a").SetVal([]interface{}{
		encoded(t, "run_b", payload(0.2, 2), now.Add(time.Minute)),
		nil,
		encoded(t, "run_a", payload(0.1, 1), now),
	})

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run_b", list[0].RunID)
	assert.Equal(t, "run_a", list[1].RunID)
	require.NotNil(t, list[0].Sharpe)
	assert.Equal(t, 2.0, *list[0].Sharpe)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedis(db, "bt:")

	mock.ExpectDel("bt:run:run_a").SetVal(1)
	mock.ExpectZRem("bt:runs", "run_a").SetVal(1)
	ok, err := s.Delete(context.Background(), "run_a")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectDel("bt:run:run_a").SetVal(0)
	mock.ExpectZRem("bt:runs", "run_a").SetVal(0)
	ok, err = s.Delete(context.Background(), "run_a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
