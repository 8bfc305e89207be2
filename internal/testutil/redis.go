package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are probed in order when TEST_REDIS_ADDR is unset.
var redisCandidates = []string{"localhost:56379", "redis:6379", "localhost:6379"}

const (
	redisMetaDB      = 0
	redisMaxDB       = 15
	redisReserveTTL  = 30 * time.Minute
	redisReservation = "theagnt:testutil:db_lock:%d"
)

// SetupTestRedis returns a client on an empty, reserved logical DB. The caller closes it.
// TEST_REDIS_ADDR pins the address and TEST_REDIS_DB pins the DB index.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr, ok := findRedis(t)
	if !ok {
		skipOrFail(t, requireRedis(), "redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeQuietly(t, "redis client", client)
		skipOrFail(t, requireRedis(), fmt.Sprintf("redis at %s unusable:", addr), err)
	}
	return client
}

func findRedis(t testing.TB) (string, bool) {
	t.Helper()
	candidates := redisCandidates
	if pinned := os.Getenv("TEST_REDIS_ADDR"); pinned != "" {
		candidates = []string{pinned}
	}
	for _, addr := range candidates {
		if pingRedis(t, addr) {
			return addr, true
		}
	}
	return "", false
}

func pingRedis(t testing.TB, addr string) bool {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer closeQuietly(t, "redis probe", client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("redis not available at %s: %v", addr, err)
		return false
	}
	return true
}

// reserveRedisDB claims a DB index in 1..15 through a SetNX key in DB 0 so that
// parallel test packages do not flush each other's data.
func reserveRedisDB(t testing.TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: redisMetaDB})
	defer closeQuietly(t, "redis meta client", meta)

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= redisMaxDB; i++ {
		key := fmt.Sprintf(redisReservation, i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, owner, redisReserveTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() { releaseRedisDB(t, addr, key) })
		return i
	}
	t.Logf("no free redis DB at %s; sharing DB 1", addr)
	return 1
}

func releaseRedisDB(t testing.TB, addr, key string) {
	meta := redis.NewClient(&redis.Options{Addr: addr, DB: redisMetaDB})
	defer closeQuietly(t, "redis meta client", meta)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := meta.Del(ctx, key).Err(); err != nil {
		t.Logf("release redis reservation %s: %v", key, err)
	}
}
