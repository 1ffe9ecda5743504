package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Mark(t *testing.T) {
	db, mock := redismock.NewClientMock()
	f := NewWithClient(db, "")
	ctx := context.TODO()

	mock.ExpectSAdd(DefaultKey, "alice").SetVal(1)
	require.NoError(t, f.Mark(ctx, "alice"))

	mock.ExpectSAdd(DefaultKey, "alice").SetErr(errors.New("redis error"))
	err := f.Mark(ctx, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis sadd failure")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilter_Seen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	f := NewWithClient(db, "crawl:seen")
	ctx := context.TODO()

	mock.ExpectSIsMember("crawl:seen", "alice").SetVal(true)
	seen, err := f.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen)

	mock.ExpectSIsMember("crawl:seen", "bob").SetVal(false)
	seen, err = f.Seen(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, seen)

	mock.ExpectSIsMember("crawl:seen", "carol").SetErr(errors.New("redis error"))
	_, err = f.Seen(ctx, "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis sismember failure")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilter_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	f := NewWithClient(db, "")

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, f.Ping(context.TODO()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewOwnsClient(t *testing.T) {
	f, err := New(Config{Addr: "127.0.0.1:0", Key: "k"})
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, NewWithClient(nil, "").Close())
}
