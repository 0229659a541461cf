package storage_test

import (
	"bytes"
	"testing"

	"github.com/KrasK/coolreader/internal/serial"
	"github.com/KrasK/coolreader/internal/storage"
	"github.com/KrasK/coolreader/internal/types"
)

func TestAllocGetRoundTrip(t *testing.T) {
	m := storage.NewManager(storage.RecordText)
	addr, err := m.Alloc(7, types.NullHandle, []byte("hello"))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	payload, parent, err := m.Get(addr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Get's slice includes the record's zero padding up to a 16-byte boundary.
	if string(bytes.TrimRight(payload, "\x00")) != "hello" {
		t.Errorf("payload = %q, want hello", payload)
	}
	if parent != uint32(types.NullHandle) {
		t.Errorf("parent = %d, want %d", parent, types.NullHandle)
	}
	h, err := m.Header(addr)
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if h.DataIndex != 7 {
		t.Errorf("DataIndex = %d, want 7", h.DataIndex)
	}
}

func TestChunkSealingAndCompaction(t *testing.T) {
	m := storage.NewManager(storage.RecordText)
	m.SetChunkCapacity(128)
	m.SetMaxUncompressed(1)

	var addrs []types.StorageAddress
	for i := 0; i < 10; i++ {
		addr, err := m.Alloc(uint32(i), types.NullHandle, []byte("0123456789"))
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		addrs = append(addrs, addr)
	}
	if m.ChunkCount() < 2 {
		t.Fatalf("ChunkCount() = %d, want at least 2 after exceeding chunk capacity", m.ChunkCount())
	}
	// With MAX_UNCOMPRESSED set to 1 byte, every chunk except the active one
	// should have been compacted away by now.
	compressed := 0
	for i := 0; i < m.ChunkCount(); i++ {
		if m.ChunkIsCompressed(i) {
			compressed++
		}
	}
	if compressed == 0 {
		t.Fatal("expected at least one chunk to be compressed under a tiny MAX_UNCOMPRESSED budget")
	}
	// Every record must still be readable after compaction/inflate.
	for i, addr := range addrs {
		payload, _, err := m.Get(addr)
		if err != nil {
			t.Fatalf("Get #%d after compaction: %v", i, err)
		}
		if string(bytes.TrimRight(payload, "\x00")) != "0123456789" {
			t.Errorf("Get #%d payload = %q, want 0123456789", i, payload)
		}
	}
}

func TestForEachSkipsFreed(t *testing.T) {
	m := storage.NewManager(storage.RecordElem)
	a1, _ := m.Alloc(1, types.NullHandle, []byte("one"))
	_, _ = m.Alloc(2, types.NullHandle, []byte("two"))
	if err := m.Free(a1); err != nil {
		t.Fatalf("Free: %v", err)
	}
	var seen []string
	err := m.ForEach(func(addr types.StorageAddress, dataIndex, parent uint32, payload []byte) error {
		seen = append(seen, string(bytes.TrimRight(payload, "\x00")))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 1 || seen[0] != "two" {
		t.Fatalf("ForEach saw %v, want only [two]", seen)
	}
}

func TestDumpLoadChunksPreservesAddresses(t *testing.T) {
	m := storage.NewManager(storage.RecordText)
	m.SetChunkCapacity(64)
	addr1, err := m.Alloc(1, types.NullHandle, []byte("first"))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	addr2, err := m.Alloc(2, types.NodeHandle(0), []byte("second-record"))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	w := serial.NewWriter()
	if err := m.DumpChunks(w); err != nil {
		t.Fatalf("DumpChunks: %v", err)
	}

	m2 := storage.NewManager(storage.RecordText)
	r := serial.NewReader(w.Bytes())
	if err := m2.LoadChunks(r); err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}

	for _, tc := range []struct {
		addr types.StorageAddress
		want string
	}{
		{addr1, "first"},
		{addr2, "second-record"},
	} {
		got, _, err := m2.Get(tc.addr)
		if err != nil {
			t.Fatalf("Get after reload: %v", err)
		}
		if string(bytes.TrimRight(got, "\x00")) != tc.want {
			t.Errorf("Get after reload = %q, want %q", got, tc.want)
		}
	}
}
