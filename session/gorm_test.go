package session

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupGorm(t *testing.T) *GormStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := NewGormStorage(db)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return s
}

func TestGormStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := setupGorm(t)
	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, ok, _ := kv.Get(ctx, "k"); !ok || v != "v2" {
		t.Fatalf("got %q %v", v, ok)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestGormStorageBackedStore(t *testing.T) {
	ctx := context.Background()
	kv := setupGorm(t)
	s := NewStore(Namespace(kv, "device-1"))
	if err := s.Save(ctx, "u1", "tok"); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a second store over the same table models a server restart
	again := NewStore(Namespace(kv, "device-1"))
	if !again.IsAuthenticated(ctx) || again.UserID(ctx) != "u1" {
		t.Fatalf("session must survive across store instances")
	}
	if err := again.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.IsAuthenticated(ctx) {
		t.Fatalf("expected signed out after clear")
	}
}
