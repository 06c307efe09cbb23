package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("backend down")
}

func TestGetCachedDataIdempotence(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	fetch := func(ctx context.Context) (float64, error) {
		calls++
		return 51000.0, nil
	}

	ctx := context.Background()
	first, err := GetCachedData(ctx, store, testLogger(), "price:BTC", time.Hour, fetch)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := GetCachedData(ctx, store, testLogger(), "price:BTC", time.Hour, fetch)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if calls != 1 {
		t.Errorf("fetcher invoked %d times, want 1", calls)
	}
	if first != second {
		t.Errorf("values differ: %v vs %v", first, second)
	}
}

func TestGetCachedDataExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "payload", nil
	}

	ctx := context.Background()
	if _, err := GetCachedData(ctx, store, testLogger(), "k", time.Hour, fetch); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := GetCachedData(ctx, store, testLogger(), "k", time.Hour, fetch); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("fetcher invoked %d times after expiry, want 2", calls)
	}
}

func TestGetCachedDataBackendUnavailable(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}

	value, err := GetCachedData(context.Background(), failingStore{}, testLogger(), "k", time.Hour, fetch)
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if value != 7 {
		t.Errorf("value = %d, want 7", value)
	}
	if calls != 1 {
		t.Errorf("fetcher invoked %d times, want 1", calls)
	}
}

func TestGetCachedDataFetchError(t *testing.T) {
	wantErr := errors.New("upstream broken")
	_, err := GetCachedData(context.Background(), NewMemoryStore(), testLogger(), "k", time.Hour,
		func(ctx context.Context) (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestGetCachedDataNilStore(t *testing.T) {
	value, err := GetCachedData(context.Background(), nil, testLogger(), "k", time.Hour,
		func(ctx context.Context) (string, error) { return "direct", nil })
	if err != nil || value != "direct" {
		t.Errorf("got (%q, %v), want (direct, nil)", value, err)
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("historical", "BTC", 30)
	b := Key("historical", "BTC", 30)
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a == Key("historical", "ETH", 30) {
		t.Error("different params produced the same key")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("entry survived delete")
	}
}
