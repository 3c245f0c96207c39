package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/redis"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newClient(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	var got map[string]any
	hit, err := cache.Get(ctx, "cian:order-report", &got)
	if err != nil || hit {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}

	report := map[string]any{"operationId": "op-1", "demo": false}
	if err := cache.Set(ctx, "cian:order-report", report, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("crm:cache:cian:order-report"); ttl != time.Minute {
		t.Fatalf("ttl: %v", ttl)
	}
	hit, err = cache.Get(ctx, "cian:order-report", &got)
	if err != nil || !hit || got["operationId"] != "op-1" {
		t.Fatalf("get: hit=%v err=%v got=%v", hit, err, got)
	}

	mr.FastForward(2 * time.Minute)
	if hit, _ := cache.Get(ctx, "cian:order-report", &got); hit {
		t.Fatal("entry should have expired")
	}

	_ = cache.Set(ctx, "k", 1, 60)
	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("crm:cache:k") {
		t.Fatal("key still present after Del")
	}
}

func TestStateStore_TakeIsAtomicReset(t *testing.T) {
	mr, c := newClient(t)
	store := redisad.NewStateStore(c, 10*time.Minute)
	ctx := context.Background()
	const user = int64(1001)

	st, err := store.Get(ctx, user)
	if err != nil || !st.Idle() {
		t.Fatalf("fresh user should be idle: %+v %v", st, err)
	}

	want := domain.ConversationState{Step: domain.StepAwaitingEditInput, ObjectID: "42"}
	if err := store.Set(ctx, user, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("crm:state:1001"); ttl != 10*time.Minute {
		t.Fatalf("ttl: %v", ttl)
	}
	if got, _ := store.Get(ctx, user); got != want {
		t.Fatalf("get: %+v", got)
	}

	got, err := store.Take(ctx, user)
	if err != nil || got != want {
		t.Fatalf("take: %+v %v", got, err)
	}
	if again, _ := store.Take(ctx, user); !again.Idle() {
		t.Fatalf("second take must see idle, got %+v", again)
	}
}

func TestStateStore_SetIdleClears(t *testing.T) {
	mr, c := newClient(t)
	store := redisad.NewStateStore(c, time.Minute)
	ctx := context.Background()

	_ = store.Set(ctx, 7, domain.ConversationState{Step: domain.StepAwaitingObjectID})
	if !mr.Exists("crm:state:7") {
		t.Fatal("state not stored")
	}
	_ = store.Set(ctx, 7, domain.ConversationState{})
	if mr.Exists("crm:state:7") {
		t.Fatal("idle state should delete the key")
	}
}
