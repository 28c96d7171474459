package usecase

import (
	"context"

	"github.com/smackfs/wfs/internal/domain"
	"github.com/smackfs/wfs/internal/storage"
)

type FilesystemService interface {
	Getattr(ctx context.Context, path string) (domain.Attr, error)
	Readdir(ctx context.Context, path string) ([]domain.DirEntry, error)
	Open(ctx context.Context, path string) error
	Read(ctx context.Context, path string, offset, size int64) ([]byte, error)
	Write(ctx context.Context, path string, offset int64, data []byte) (int, error)
	Truncate(ctx context.Context, path string, size int64) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Unlink(ctx context.Context, path string) error
	Create(ctx context.Context, path string) error
	Statfs(ctx context.Context) (domain.FSStat, error)
}

type filesystemService struct {
	store *storage.Storage
}

func NewFilesystemService(store *storage.Storage) FilesystemService {
	return &filesystemService{store: store}
}

func (s *filesystemService) Getattr(ctx context.Context, path string) (domain.Attr, error) {
	return s.store.Getattr(path)
}

func (s *filesystemService) Readdir(ctx context.Context, path string) ([]domain.DirEntry, error) {
	return s.store.Readdir(path)
}

func (s *filesystemService) Open(ctx context.Context, path string) error {
	return s.store.Open(path)
}

func (s *filesystemService) Read(ctx context.Context, path string, offset, size int64) ([]byte, error) {
	return s.store.Read(path, offset, size)
}

func (s *filesystemService) Write(ctx context.Context, path string, offset int64, data []byte) (int, error) {
	return s.store.Write(path, offset, data)
}

func (s *filesystemService) Truncate(ctx context.Context, path string, size int64) error {
	return s.store.Truncate(path, size)
}

func (s *filesystemService) Mkdir(ctx context.Context, path string) error {
	return s.store.Mkdir(path)
}

func (s *filesystemService) Rmdir(ctx context.Context, path string) error {
	return s.store.Rmdir(path)
}

func (s *filesystemService) Unlink(ctx context.Context, path string) error {
	return s.store.Unlink(path)
}

func (s *filesystemService) Create(ctx context.Context, path string) error {
	return s.store.Create(path)
}

func (s *filesystemService) Statfs(ctx context.Context) (domain.FSStat, error) {
	return s.store.Statfs()
}
