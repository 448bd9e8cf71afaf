package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiwari-pos/console/internal/enum"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
)

// tablesBackend implements service.Backend; only ListTables does anything.
type tablesBackend struct {
	calls atomic.Int32
	err   error
}

func (b *tablesBackend) ListTables(context.Context) ([]model.Table, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return []model.Table{{ID: "t1", Label: "1", Occupied: true}}, nil
}

func (b *tablesBackend) ListCategories(context.Context) ([]model.Category, error) { return nil, nil }
func (b *tablesBackend) ListDishes(context.Context) ([]model.MenuItem, error)     { return nil, nil }

func (b *tablesBackend) GetActiveOrder(_ context.Context, tableID string) (model.Order, error) {
	return model.Order{TableID: tableID, Items: []model.CartLine{}}, nil
}

func (b *tablesBackend) PlaceOrder(context.Context, string, []model.CartLine) error { return nil }

func TestRefreshTables_AllSessions(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	a, b := &tablesBackend{}, &tablesBackend{}
	sa := reg.Create(a, "tok-a", model.Admin{ID: "a"})
	sb := reg.Create(b, "tok-b", model.Admin{ID: "b"})

	handle := RefreshTables(reg, time.Second)
	if err := handle(context.Background(), enum.SubjectOrdersPlaced, []byte(`{"table_id":"t1"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	sa.Wait()
	sb.Wait()

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("ListTables calls: got %d and %d, want 1 each", a.calls.Load(), b.calls.Load())
	}
	if tables := sa.Tables(); len(tables) != 1 || !tables[0].Occupied {
		t.Errorf("session tables not refreshed: %v", tables)
	}
}

func TestRefreshTables_CollectsFailures(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	ok, bad := &tablesBackend{}, &tablesBackend{err: errors.New("connection refused")}
	sOK := reg.Create(ok, "tok-ok", model.Admin{ID: "ok"})
	reg.Create(bad, "tok-bad", model.Admin{ID: "bad"})

	err := RefreshTables(reg, time.Second)(context.Background(), enum.SubjectTablesUpdated, nil)
	if err == nil {
		t.Fatal("expected error from failing session")
	}
	sOK.Wait()

	if len(sOK.Tables()) != 1 {
		t.Error("healthy session should still be refreshed")
	}
}

func TestRefreshTables_NoSessions(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	if err := RefreshTables(reg, time.Second)(context.Background(), enum.SubjectTablesUpdated, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
