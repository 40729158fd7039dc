package redis

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	goredis "github.com/redis/go-redis/v9"
)

const runLockPrefix = "adstats:lock:"

var releaseScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RunLocker garante uma execução por tipo entre réplicas usando SET NX com TTL
type RunLocker struct {
	client *goredis.Client
}

func NewRunLocker(conn *Connection) *RunLocker {
	return &RunLocker{client: conn.Client}
}

// TryLock tenta adquirir o lock do tipo de execução. Quando adquirido, devolve
// a função que o libera; a liberação só remove o lock se ainda for o dono.
func (l *RunLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	owner, err := gonanoid.New()
	if err != nil {
		return nil, false, fmt.Errorf("erro ao gerar dono do lock: %w", err)
	}

	key := runLockPrefix + name
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("erro ao adquirir lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, owner).Err()
	}

	return release, true, nil
}
