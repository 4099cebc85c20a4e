package session

import (
	"context"
	"errors"
	"testing"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newFactsTest(t *testing.T, sliding bool) (*RedisFacts, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisFacts(rdb, "vf", time.Minute, sliding), mr
}

func testMark() goVerify.VerifiedMark {
	return goVerify.VerifiedMark{
		Identity:   "user@example.com",
		Channel:    goVerify.ChannelEmail,
		VerifiedAt: time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC),
	}
}

func TestRedisFactsIdentity(t *testing.T) {
	facts, _ := newFactsTest(t, false)
	ctx := context.Background()

	if _, ok, err := facts.Identity(ctx, "sid"); err != nil || ok {
		t.Fatalf("expected absent identity, got ok=%v err=%v", ok, err)
	}
	if err := facts.SetIdentity(ctx, "sid", "+15550100"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	id, ok, err := facts.Identity(ctx, "sid")
	if err != nil || !ok || id != "+15550100" {
		t.Fatalf("unexpected identity %q ok=%v err=%v", id, ok, err)
	}
	if err := facts.SetIdentity(ctx, "", "x"); err == nil {
		t.Fatal("expected empty session key to fail")
	}
}

func TestRedisFactsVerifiedRoundTrip(t *testing.T) {
	facts, _ := newFactsTest(t, false)
	ctx := context.Background()

	if _, ok, err := facts.Verified(ctx, "sid"); err != nil || ok {
		t.Fatalf("expected no mark, got ok=%v err=%v", ok, err)
	}

	want := testMark()
	if err := facts.SetVerified(ctx, "sid", want); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	got, ok, err := facts.Verified(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("read verified: ok=%v err=%v", ok, err)
	}
	if got.Identity != want.Identity || got.Channel != want.Channel || !got.VerifiedAt.Equal(want.VerifiedAt) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := facts.ClearVerified(ctx, "sid"); err != nil {
		t.Fatalf("clear verified: %v", err)
	}
	if _, ok, _ := facts.Verified(ctx, "sid"); ok {
		t.Fatal("expected mark to be cleared")
	}
}

func TestRedisFactsTTL(t *testing.T) {
	facts, mr := newFactsTest(t, false)
	ctx := context.Background()

	if err := facts.SetIdentity(ctx, "sid", "a@example.com"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if ttl := mr.TTL("vf:sid"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	mr.FastForward(61 * time.Second)
	if _, ok, _ := facts.Identity(ctx, "sid"); ok {
		t.Fatal("expected facts to expire")
	}
}

func TestRedisFactsSlidingRenewsOnRead(t *testing.T) {
	facts, mr := newFactsTest(t, true)
	ctx := context.Background()

	if err := facts.SetIdentity(ctx, "sid", "a@example.com"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if _, ok, _ := facts.Identity(ctx, "sid"); !ok {
		t.Fatal("expected identity before expiry")
	}
	mr.FastForward(40 * time.Second)
	if _, ok, _ := facts.Identity(ctx, "sid"); !ok {
		t.Fatal("expected sliding read to renew the ttl")
	}
}

func TestRedisFactsDeleteIdempotent(t *testing.T) {
	facts, mr := newFactsTest(t, false)
	ctx := context.Background()

	_ = facts.SetIdentity(ctx, "sid", "a@example.com")
	_ = facts.SetVerified(ctx, "sid", testMark())

	if err := facts.Delete(ctx, "sid"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := facts.Delete(ctx, "sid"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if mr.Exists("vf:sid") {
		t.Fatal("expected hash to be removed")
	}
}

func TestRedisFactsCorruptMark(t *testing.T) {
	facts, mr := newFactsTest(t, false)
	mr.HSet("vf:sid", fieldVerified, "\x09garbage")

	_, _, err := facts.Verified(context.Background(), "sid")
	if !errors.Is(err, ErrMarkCorrupt) {
		t.Fatalf("expected ErrMarkCorrupt, got %v", err)
	}
}

func TestRedisFactsUnavailable(t *testing.T) {
	facts, mr := newFactsTest(t, false)
	mr.Close()

	if _, _, err := facts.Identity(context.Background(), "sid"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := facts.SetVerified(context.Background(), "sid", testMark()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := facts.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from ping, got %v", err)
	}
}

func TestMemoryFacts(t *testing.T) {
	facts := NewMemoryFacts()
	ctx := context.Background()

	if _, ok, _ := facts.Identity(ctx, "sid"); ok {
		t.Fatal("expected no identity")
	}
	_ = facts.SetIdentity(ctx, "sid", "a@example.com")
	_ = facts.SetVerified(ctx, "sid", testMark())

	if id, ok, _ := facts.Identity(ctx, "sid"); !ok || id != "a@example.com" {
		t.Fatalf("unexpected identity %q", id)
	}
	if m, ok, _ := facts.Verified(ctx, "sid"); !ok || m.Identity != "user@example.com" {
		t.Fatalf("unexpected mark %+v", m)
	}

	_ = facts.Delete(ctx, "sid")
	if _, ok, _ := facts.Verified(ctx, "sid"); ok {
		t.Fatal("expected mark to be deleted")
	}
}
