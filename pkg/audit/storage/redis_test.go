package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Redis tests need a live server; set BDL_TEST_REDIS_ADDR to run them.
func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("BDL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BDL_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStorage(ctx, &RedisConfig{
		Addr:      addr,
		KeyPrefix: "bdl:test:" + uuid.NewString() + ":",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	defer s.Delete(ctx, nil)

	testStore(t, s)
}
