package identity

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisOTPStore(t *testing.T) (*RedisOTPStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewRedisOTPStore(cache), mr
}

func TestGenerateOTPRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestRedisOTPStoreConsumesOnce(t *testing.T) {
	store, _ := newRedisOTPStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", OTPRegister, "123456", time.Minute))
	assert.ErrorIs(t, store.Consume(ctx, "a@example.com", OTPDelete, "123456"), ErrOTPNotFound, "types are isolated")
	assert.ErrorIs(t, store.Consume(ctx, "a@example.com", OTPRegister, "654321"), ErrInvalidOTP)
	require.NoError(t, store.Consume(ctx, "A@example.com", OTPRegister, "123456"))
	assert.ErrorIs(t, store.Consume(ctx, "a@example.com", OTPRegister, "123456"), ErrOTPNotFound)
}

func TestRedisOTPStoreExpires(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", OTPRegister, "123456", 10*time.Minute))
	mr.FastForward(10*time.Minute + time.Second)
	assert.ErrorIs(t, store.Consume(ctx, "a@example.com", OTPRegister, "123456"), ErrOTPNotFound)
}

func TestRedisOTPStoreConcurrentConsume(t *testing.T) {
	store, _ := newRedisOTPStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a@example.com", OTPRegister, "123456", time.Minute))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Consume(ctx, "a@example.com", OTPRegister, "123456") == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestMemoryOTPStoreExpires(t *testing.T) {
	store := NewMemoryOTPStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", OTPDelete, "222222", 10*time.Minute))
	now = now.Add(10 * time.Minute)
	assert.ErrorIs(t, store.Consume(ctx, "a@example.com", OTPDelete, "222222"), ErrOTPNotFound)
}
