package permission

import (
	"context"
	"reflect"
	"testing"
)

func newTestRegistry(t *testing.T, root string, names ...string) *Registry {
	t.Helper()

	r := NewRegistry(root)
	for _, n := range names {
		if _, err := r.Register(n); err != nil {
			t.Fatalf("Register(%q) failed: %v", n, err)
		}
	}
	r.Freeze()
	return r
}

func TestRegistryAssignsSequentialBits(t *testing.T) {
	r := newTestRegistry(t, "server_administrator", "case_read", "case_write")

	if bit, ok := r.Bit("case_read"); !ok || bit != 0 {
		t.Fatalf("expected case_read at bit 0, got %d (%v)", bit, ok)
	}
	if bit, ok := r.Bit("case_write"); !ok || bit != 1 {
		t.Fatalf("expected case_write at bit 1, got %d (%v)", bit, ok)
	}
	if bit, ok := r.Bit("server_administrator"); !ok || bit != rootBit {
		t.Fatalf("expected root at bit %d, got %d", rootBit, bit)
	}
}

func TestRegistryRejectsAfterFreezeAndDuplicates(t *testing.T) {
	r := NewRegistry("")
	if _, err := r.Register("case_read"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register("case_read"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if _, err := r.Register(""); err == nil {
		t.Fatal("expected empty name to fail")
	}
	r.Freeze()
	if _, err := r.Register("case_write"); err == nil {
		t.Fatal("expected registration after freeze to fail")
	}
}

func TestRegistryLimit(t *testing.T) {
	r := NewRegistry("root")
	for i := 0; i < rootBit; i++ {
		if _, err := r.Register(string(rune('A'+i%26)) + string(rune('a'+i/26))); err != nil {
			t.Fatalf("Register #%d failed: %v", i, err)
		}
	}
	if _, err := r.Register("one-too-many"); err == nil {
		t.Fatal("expected limit error once the root bit is reached")
	}
}

func TestGroupEngineUnionsGroups(t *testing.T) {
	r := newTestRegistry(t, "", "case_read", "case_write", "alerts_read")
	g := NewGroupEngine(r)
	if err := g.RegisterGroup("analysts", []string{"case_read", "alerts_read"}); err != nil {
		t.Fatalf("RegisterGroup failed: %v", err)
	}
	if err := g.RegisterGroup("responders", []string{"case_write"}); err != nil {
		t.Fatalf("RegisterGroup failed: %v", err)
	}
	g.Freeze()

	set, err := g.Effective(context.Background(), []string{"analysts", "responders", "unknown"})
	if err != nil {
		t.Fatalf("Effective failed: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("expected 3 permissions, got %d", set.Len())
	}
	want := []string{"alerts_read", "case_read", "case_write"}
	if got := r.Names(set); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
}

func TestGroupEngineRejectsUnknownPermission(t *testing.T) {
	g := NewGroupEngine(newTestRegistry(t, "", "case_read"))
	if err := g.RegisterGroup("analysts", []string{"case_delete"}); err == nil {
		t.Fatal("expected unknown permission to fail")
	}
}

func TestRootBitGrantsEverything(t *testing.T) {
	r := newTestRegistry(t, "server_administrator", "case_read", "case_write")
	g := NewGroupEngine(r)
	if err := g.RegisterGroup("administrators", []string{"server_administrator"}); err != nil {
		t.Fatalf("RegisterGroup failed: %v", err)
	}
	g.Freeze()

	set, _ := g.Effective(context.Background(), []string{"administrators"})
	if !set.Has(1, r.RootReserved()) {
		t.Fatal("expected root set to have every bit")
	}
	if len(r.Names(set)) != 3 {
		t.Fatalf("expected root to expand to all names, got %v", r.Names(set))
	}
}
