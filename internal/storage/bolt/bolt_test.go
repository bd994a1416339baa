package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tlind/screentimed/internal/storage"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()

	path := filepath.Join(t.TempDir(), "screentimed.bolt")
	gw, err := Open(path)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	return gw
}

func TestGatewayRoundTrip(t *testing.T) {
	gw := openTestGateway(t)
	defer func() { _ = gw.Close() }()

	ctx := context.Background()

	if err := gw.Set(ctx, "screen_time_data", `{"2024-01-02":{}}`); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, err := gw.Get(ctx, "screen_time_data")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != `{"2024-01-02":{}}` {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestGatewayMissingKey(t *testing.T) {
	gw := openTestGateway(t)
	defer func() { _ = gw.Close() }()

	_, err := gw.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGatewayRemove(t *testing.T) {
	gw := openTestGateway(t)
	defer func() { _ = gw.Close() }()

	ctx := context.Background()

	if err := gw.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := gw.Remove(ctx, "key"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := gw.Get(ctx, "key"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := gw.Remove(ctx, "key"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double remove, got %v", err)
	}
}
