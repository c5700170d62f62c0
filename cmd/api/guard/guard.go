package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const orderKeyPrefix = "order-submission:"

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

/*
Redis holds one submission lock per user across every instance of the API.
Locks expire after ttl so a crashed instance cannot block a user for good.
Only the instance that took a lock releases it.
*/
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, owner: uuid.NewString()}
}

func (r *Redis) Acquire(ctx context.Context, userID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, orderKeyPrefix+userID, r.owner, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, userID string) error {
	return releaseScript.Run(ctx, r.client, []string{orderKeyPrefix + userID}, r.owner).Err()
}

// Local is the single process variant used when no Redis address is configured.
type Local struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocal(ttl time.Duration) *Local {
	return &Local{ttl: ttl, held: map[string]time.Time{}, clock: time.Now}
}

func (l *Local) Acquire(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[userID]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[userID] = now.Add(l.ttl)
	return true, nil
}

func (l *Local) Release(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID)
	return nil
}
