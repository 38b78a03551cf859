package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCache is a mock implementation of Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Stats() Stats {
	return Stats{}
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTiered_PromotesRemoteHit(t *testing.T) {
	ctx := context.Background()
	local := NewMemory(10, time.Hour)
	remote := new(MockCache)
	remote.On("Get", ctx, "k").Return([]byte("remote"), true, nil).Once()

	tiered := NewTiered(local, remote, quietLogger())

	got, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("remote"), got)

	// Second read is served locally.
	got, ok, err = tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("remote"), got)

	remote.AssertExpectations(t)
}

func TestTiered_RemoteFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	remote := new(MockCache)
	remote.On("Get", ctx, "k").Return(nil, false, errors.New("connection refused"))

	tiered := NewTiered(NewMemory(10, time.Hour), remote, quietLogger())

	_, ok, err := tiered.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTiered_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	local := NewMemory(10, time.Hour)
	remote := new(MockCache)
	remote.On("Set", ctx, "k", []byte("v")).Return(errors.New("read-only replica"))

	tiered := NewTiered(local, remote, quietLogger())

	require.NoError(t, tiered.Set(ctx, "k", []byte("v")))

	got, ok, _ := local.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	remote.AssertExpectations(t)
}

func TestTiered_NilRemote(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemory(10, time.Hour), nil, quietLogger())

	require.NoError(t, tiered.Set(ctx, "k", []byte("v")))
	_, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tiered.Delete(ctx, "k"))
	_, ok, _ = tiered.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, tiered.Close())
}
