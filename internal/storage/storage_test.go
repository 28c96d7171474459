package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/smackfs/wfs/internal/domain"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.img")
	if err := Format(path); err != nil {
		t.Fatalf("Format: %v", err)
	}

	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestScenarioDocsTree(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	data := patternBytes(600)
	mkTestFile(t, s.img, "/docs/a.txt", data)

	attr, err := s.Getattr("/docs/a.txt")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.IsDir() {
		t.Error("file reported as directory")
	}
	if attr.Size != 600 {
		t.Errorf("size = %d, want 600", attr.Size)
	}

	got, err := s.Read("/docs/a.txt", 500, 100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data[500:]) {
		t.Error("read returned wrong tail bytes")
	}

	if _, err := s.Getattr("/docs/missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Getattr missing = %v, want ErrNotFound", err)
	}

	if err := s.Rmdir("/docs"); !errors.Is(err, domain.ErrNotEmpty) {
		t.Errorf("Rmdir non-empty = %v, want ErrNotEmpty", err)
	}

	if err := s.Unlink("/docs/a.txt"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := s.Rmdir("/docs"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	if _, err := s.Getattr("/docs"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Getattr after rmdir = %v, want ErrNotFound", err)
	}
}

func TestGetattrRoot(t *testing.T) {
	s, _ := newTestStorage(t)

	attr, err := s.Getattr("/")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if !attr.IsDir() {
		t.Error("root is not a directory")
	}
}

func TestReaddir(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	mkTestFile(t, s.img, "/notes.txt", []byte("n"))

	entries, err := s.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["docs"] || !names["notes.txt"] {
		t.Errorf("root listing = %v", names)
	}

	if _, err := s.Readdir("/notes.txt"); !errors.Is(err, domain.ErrNotDirectory) {
		t.Errorf("Readdir on file = %v, want ErrNotDirectory", err)
	}
}

func TestOpen(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	mkTestFile(t, s.img, "/a.txt", []byte("a"))

	if err := s.Open("/a.txt"); err != nil {
		t.Errorf("Open file: %v", err)
	}
	if err := s.Open("/docs"); !errors.Is(err, domain.ErrIsDirectory) {
		t.Errorf("Open dir = %v, want ErrIsDirectory", err)
	}
	if err := s.Open("/missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Open missing = %v, want ErrNotFound", err)
	}
}

func TestMkdirErrors(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := s.Mkdir("/docs/sub"); err != nil {
		t.Fatalf("Mkdir nested: %v", err)
	}

	if err := s.Mkdir("/docs/sub"); !errors.Is(err, domain.ErrExists) {
		t.Errorf("Mkdir existing = %v, want ErrExists", err)
	}
	if err := s.Mkdir("/missing/sub"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Mkdir under missing parent = %v, want ErrNotFound", err)
	}
}

func TestMkdirOutOfSpace(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	// Exhaust the allocation table; the next insert into the (still
	// chainless) directory has no block to put its slot in.
	if _, err := s.img.allocateChain(NumBlocks); err != nil {
		t.Fatalf("exhausting blocks: %v", err)
	}

	if err := s.Mkdir("/docs/sub"); !errors.Is(err, domain.ErrNoSpace) {
		t.Errorf("Mkdir without free blocks = %v, want ErrNoSpace", err)
	}

	entries, err := s.Readdir("/docs")
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("parent gained %d entries from failed mkdir", len(entries))
	}
}

func TestWritePersistsAcrossReopen(t *testing.T) {
	s, path := newTestStorage(t)

	mkTestFile(t, s.img, "/a.txt", []byte("before"))
	if _, err := s.Write("/a.txt", 0, []byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Read("/a.txt", 0, 64)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("read %q after reopen", got)
	}
}

func TestWriteToDirectory(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := s.Write("/docs", 0, []byte("x")); !errors.Is(err, domain.ErrIsDirectory) {
		t.Errorf("Write to dir = %v, want ErrIsDirectory", err)
	}
}

func TestUnlinkDirectory(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := s.Unlink("/docs"); !errors.Is(err, domain.ErrIsDirectory) {
		t.Errorf("Unlink dir = %v, want ErrIsDirectory", err)
	}
}

func TestRmdirFile(t *testing.T) {
	s, _ := newTestStorage(t)

	mkTestFile(t, s.img, "/a.txt", []byte("a"))
	if err := s.Rmdir("/a.txt"); !errors.Is(err, domain.ErrNotDirectory) {
		t.Errorf("Rmdir on file = %v, want ErrNotDirectory", err)
	}
}

func TestRmdirReleasesChain(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := s.Mkdir("/docs/sub"); err != nil {
		t.Fatalf("Mkdir sub: %v", err)
	}
	if err := s.Rmdir("/docs/sub"); err != nil {
		t.Fatalf("Rmdir sub: %v", err)
	}

	// Removing the child leaves docs empty; its one chain block must
	// return to the free pool on rmdir.
	if err := s.Rmdir("/docs"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}

	stat, err := s.Statfs()
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}
	if stat.FreeBlocks != NumBlocks {
		t.Errorf("free blocks = %d, want %d", stat.FreeBlocks, NumBlocks)
	}
}

func TestCreateUnsupported(t *testing.T) {
	s, _ := newTestStorage(t)

	if err := s.Create("/new.txt"); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("Create = %v, want ErrUnsupported", err)
	}
}

func TestTruncateFacade(t *testing.T) {
	s, _ := newTestStorage(t)

	mkTestFile(t, s.img, "/a.txt", patternBytes(600))
	if err := s.Truncate("/a.txt", 100); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	attr, err := s.Getattr("/a.txt")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != 100 {
		t.Errorf("size = %d, want 100", attr.Size)
	}
}

func TestStatfs(t *testing.T) {
	s, _ := newTestStorage(t)

	stat, err := s.Statfs()
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}
	if stat.BlockSize != BlockSize || stat.TotalBlocks != NumBlocks {
		t.Errorf("Statfs geometry = %+v", stat)
	}
	if stat.FreeBlocks != NumBlocks {
		t.Errorf("fresh image free blocks = %d", stat.FreeBlocks)
	}

	mkTestFile(t, s.img, "/a.txt", patternBytes(600))
	stat, err = s.Statfs()
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}
	if stat.FreeBlocks != NumBlocks-2 {
		t.Errorf("free blocks = %d, want %d", stat.FreeBlocks, NumBlocks-2)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newTestStorage(t)

	mkTestFile(t, s.img, "/shared.txt", patternBytes(600))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if n%2 == 0 {
					if _, err := s.Read("/shared.txt", 0, 600); err != nil {
						t.Errorf("Read: %v", err)
						return
					}
				} else {
					if _, err := s.Write("/shared.txt", 0, []byte("concurrent")); err != nil {
						t.Errorf("Write: %v", err)
						return
					}
				}
			}
		}(i)
	}
	wg.Wait()
}
