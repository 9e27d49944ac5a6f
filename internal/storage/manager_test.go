package storage

import (
	"bytes"
	"os"
	"testing"
)

func TestLocalStore_SaveAndGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	info, err := store.Save("report.xlsx", bytes.NewReader([]byte("content")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.ID == "" {
		t.Fatal("empty id")
	}
	if info.Name != "report.xlsx" || info.Size != 7 || info.Status != "stored" {
		t.Errorf("info = %+v", info)
	}

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "report.xlsx" {
		t.Errorf("Get name = %q", got.Name)
	}
}

func TestLocalStore_SaveBytesWritesToDisk(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	data := []byte("spreadsheet bytes")
	info, err := store.SaveBytes("a.xlsx", data)
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("GetFilePath: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Error("stored bytes differ from input")
	}
}

func TestLocalStore_UniquePathsForSameName(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	a, err := store.SaveBytes("same.xlsx", []byte("first"))
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}
	b, err := store.SaveBytes("same.xlsx", []byte("second"))
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}

	if a.ID == b.ID {
		t.Fatal("identical names must still get distinct ids")
	}
	pathA, _ := store.GetFilePath(a.ID)
	pathB, _ := store.GetFilePath(b.ID)
	if pathA == pathB {
		t.Error("identical names must not collide on disk")
	}
	if data, _ := os.ReadFile(pathA); string(data) != "first" {
		t.Error("first artifact overwritten")
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	info, err := store.SaveBytes("a.xlsx", []byte("x"))
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}
	path, _ := store.GetFilePath(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Get after Delete should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("artifact still on disk after Delete")
	}

	if err := store.Delete("missing"); err == nil {
		t.Error("deleting unknown id should fail")
	}
}

func TestLocalStore_ListNewestFirst(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	for _, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		if _, err := store.SaveBytes(name, []byte("x")); err != nil {
			t.Fatalf("SaveBytes(%s): %v", name, err)
		}
	}

	list, err := store.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}
