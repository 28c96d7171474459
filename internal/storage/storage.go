package storage

import (
	"errors"
	"sync"

	"github.com/smackfs/wfs/internal/domain"
	"github.com/smackfs/wfs/internal/logger"
)

// Storage is the operation facade over an open image. A single lock scopes
// every read-check-write sequence to the whole image; lookups share it in
// read mode so they never observe a torn chain or size field.
type Storage struct {
	mu  sync.RWMutex
	img *Image
}

func NewStorage(path string) (*Storage, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	logger.Info("opened WFS image %s", path)
	return &Storage{img: img}, nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Close()
}

func (s *Storage) Getattr(path string) (domain.Attr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return domain.Attr{}, err
	}

	if ref.isRoot() {
		return domain.Attr{Mode: domain.S_IFDIR | 0755, Nlink: 2}, nil
	}
	if ref.entry.IsDir() {
		return domain.Attr{Mode: domain.S_IFDIR | 0444, Nlink: 2}, nil
	}
	return domain.Attr{
		Mode:  domain.S_IFREG | 0444,
		Nlink: 1,
		Size:  ref.entry.FileSize(),
	}, nil
}

func (s *Storage) Readdir(path string) ([]domain.DirEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return nil, err
	}
	if !ref.isDir() {
		return nil, domain.ErrNotDirectory
	}

	refs, err := s.img.listEntries(&ref)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DirEntry, 0, len(refs))
	for _, r := range refs {
		entry := domain.DirEntry{Name: r.entry.Name}
		if r.entry.IsDir() {
			entry.Mode = domain.S_IFDIR | 0444
		} else {
			entry.Mode = domain.S_IFREG | 0444
			entry.Size = r.entry.FileSize()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Storage) Open(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return err
	}
	if ref.isDir() {
		return domain.ErrIsDirectory
	}
	return nil
}

func (s *Storage) Read(path string, offset, size int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return nil, err
	}
	if ref.isDir() {
		return nil, domain.ErrIsDirectory
	}
	return s.img.readFile(&ref.entry, offset, size)
}

func (s *Storage) Write(path string, offset int64, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return 0, err
	}
	if ref.isDir() {
		return 0, domain.ErrIsDirectory
	}

	written, err := s.img.writeFile(&ref.entry, offset, data)
	if err != nil {
		return 0, err
	}
	if err := s.img.writeEntryAt(ref.off, &ref.entry); err != nil {
		return 0, err
	}
	return written, nil
}

func (s *Storage) Truncate(path string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.img.resolve(path)
	if err != nil {
		return err
	}
	if ref.isDir() {
		return domain.ErrIsDirectory
	}

	if err := s.img.truncateFile(&ref.entry, size); err != nil {
		return err
	}
	return s.img.writeEntryAt(ref.off, &ref.entry)
}

func (s *Storage) Mkdir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, err := s.img.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." {
		return domain.ErrExists
	}

	if _, err := s.img.findEntry(&parent, name); err == nil {
		return domain.ErrExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	entry := domain.FileEntry{
		Name:       name,
		StartBlock: BlockEOF,
		SizeFlags:  domain.DirFlag,
	}
	if err := s.img.insertEntry(&parent, &entry); err != nil {
		return err
	}

	logger.Debug("mkdir %s", path)
	return nil
}

func (s *Storage) Rmdir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, err := s.img.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." {
		return domain.ErrNotFound
	}

	target, err := s.img.findEntry(&parent, name)
	if err != nil {
		return err
	}
	if !target.entry.IsDir() {
		return domain.ErrNotDirectory
	}

	children, err := s.img.listEntries(&target)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return domain.ErrNotEmpty
	}

	if err := s.img.clearEntryAt(target.off); err != nil {
		return err
	}
	if err := s.img.releaseChain(target.entry.StartBlock); err != nil {
		return err
	}

	logger.Debug("rmdir %s", path)
	return nil
}

func (s *Storage) Unlink(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, err := s.img.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." {
		return domain.ErrNotFound
	}

	target, err := s.img.findEntry(&parent, name)
	if err != nil {
		return err
	}
	if target.entry.IsDir() {
		return domain.ErrIsDirectory
	}

	if err := s.img.clearEntryAt(target.off); err != nil {
		return err
	}
	if err := s.img.releaseChain(target.entry.StartBlock); err != nil {
		return err
	}

	logger.Debug("unlink %s", path)
	return nil
}

// Create is intentionally unsupported: only modification of existing files
// is allowed.
func (s *Storage) Create(path string) error {
	return domain.ErrUnsupported
}

func (s *Storage) Statfs() (domain.FSStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	free, err := s.img.freeBlockCount()
	if err != nil {
		return domain.FSStat{}, err
	}
	return domain.FSStat{
		BlockSize:   BlockSize,
		TotalBlocks: NumBlocks,
		FreeBlocks:  free,
	}, nil
}
