package stylecache_test

import (
	"testing"

	"github.com/KrasK/coolreader/internal/stylecache"
)

func TestInternSharesEqualBlobs(t *testing.T) {
	c := stylecache.New()
	a := c.Intern([]byte("bold 12pt"))
	b := c.Intern([]byte("bold 12pt"))
	if a != b {
		t.Fatalf("Intern() of equal blobs returned different slots: %d != %d", a, b)
	}
	if got := c.RefCount(a); got != 2 {
		t.Errorf("RefCount(%d) = %d, want 2", a, got)
	}
}

func TestInternDistinctBlobsGetDistinctSlots(t *testing.T) {
	c := stylecache.New()
	a := c.Intern([]byte("bold 12pt"))
	b := c.Intern([]byte("italic 10pt"))
	if a == b {
		t.Fatal("distinct blobs collapsed to the same slot")
	}
}

func TestEmptyBlobUsesReservedSlotZero(t *testing.T) {
	c := stylecache.New()
	if slot := c.Intern(nil); slot != 0 {
		t.Fatalf("Intern(nil) = %d, want reserved slot 0", slot)
	}
	if get := c.Get(0); get != nil {
		t.Fatalf("Get(0) = %v, want nil", get)
	}
}

func TestReleaseToZeroFreesSlotForReuse(t *testing.T) {
	c := stylecache.New()
	a := c.Intern([]byte("serif"))
	c.Release(a)
	if got := c.RefCount(a); got != 0 {
		t.Fatalf("RefCount after Release = %d, want 0", got)
	}
	if got := c.Get(a); got != nil {
		t.Fatalf("Get after refcount hits zero = %v, want nil", got)
	}

	lenBefore := c.Len()
	b := c.Intern([]byte("monospace"))
	if b != a {
		t.Errorf("Intern() after a slot was freed = %d, want the recycled slot %d", b, a)
	}
	if c.Len() != lenBefore {
		t.Errorf("Len() grew to %d after recycling a freed slot, want unchanged %d", c.Len(), lenBefore)
	}
}

func TestReleaseReservedSlotIsNoop(t *testing.T) {
	c := stylecache.New()
	c.Release(0) // must not panic or corrupt state
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after releasing slot 0, want 1", c.Len())
	}
}

func TestReleaseDoesNotFreeWhileReferenced(t *testing.T) {
	c := stylecache.New()
	a := c.Intern([]byte("x"))
	c.Intern([]byte("x")) // second reference
	c.Release(a)
	if c.Get(a) == nil {
		t.Fatal("Get returned nil after releasing only one of two references")
	}
	if got := c.RefCount(a); got != 1 {
		t.Errorf("RefCount = %d, want 1", got)
	}
}
