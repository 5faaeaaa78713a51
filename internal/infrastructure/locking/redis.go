package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisRetryInterval = 25 * time.Millisecond

// Redis is a Locker shared by every API instance through redislock. Readers take the same
// exclusive lock, so a read never overlaps a write on another instance.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis builds a Redis locker. ttl caps how long a crashed holder can block a Sol; live holders
// extend it every third of ttl until they release.
func NewRedis(rdb *redis.Client, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

func lockKey(solID uuid.UUID) string {
	return fmt.Sprintf("lock:sol:%s", solID)
}

func (r *Redis) Lock(ctx context.Context, solID uuid.UUID) (Lease, error) {
	retries := int(r.wait / redisRetryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(redisRetryInterval), retries),
	}
	lock, err := r.client.Obtain(ctx, lockKey(solID), r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain sol lock: %w", err)
	}
	lease := &redisLease{
		lock:  lock,
		solID: solID,
		ttl:   r.ttl,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

func (r *Redis) RLock(ctx context.Context, solID uuid.UUID) (Lease, error) {
	return r.Lock(ctx, solID)
}

type redisLease struct {
	lock  *redislock.Lock
	solID uuid.UUID
	ttl   time.Duration
	lost  atomic.Bool

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (rl *redisLease) keepAlive() {
	defer close(rl.done)
	every := rl.ttl / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			err := rl.lock.Refresh(ctx, rl.ttl, nil)
			cancel()
			if err != nil {
				rl.lost.Store(true)
				log.Error().Err(err).Str("sol_id", rl.solID.String()).Msg("refresh sol lock")
				return
			}
		}
	}
}

func (rl *redisLease) Check(ctx context.Context) error {
	if rl.lost.Load() {
		return ErrLockLost
	}
	ttl, err := rl.lock.TTL(ctx)
	if err != nil {
		return fmt.Errorf("check sol lock: %w", err)
	}
	if ttl <= 0 {
		rl.lost.Store(true)
		return ErrLockLost
	}
	return nil
}

func (rl *redisLease) Release() {
	rl.once.Do(func() {
		close(rl.stop)
		<-rl.done
		if err := rl.lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("sol_id", rl.solID.String()).Msg("release sol lock")
		}
	})
}
