package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/smackfs/wfs/internal/domain"
)

const (
	MagicSize      = 16
	NumRootEntries = 64
	NumBlocks      = 16384
	BlockSize      = 512

	EntriesStart    = MagicSize
	BlockTableStart = EntriesStart + NumRootEntries*domain.EntrySize
	BlockTableSize  = NumBlocks * 2
	DataStart       = BlockTableStart + BlockTableSize

	EntriesPerBlock = BlockSize / domain.EntrySize

	ImageSize = DataStart + NumBlocks*BlockSize
)

var magic = [4]uint32{0x00c0ffee, 0x00000000, 0xf00d1350, 0x0000beef}

var (
	ErrImageTooSmall = errors.New("file too small to contain a WFS file system")
	ErrBadMagic      = errors.New("incorrect magic number")
)

// Image is the open backing store. It provides positional byte access only;
// filesystem semantics live in the layers above.
type Image struct {
	file *os.File
	path string
}

func OpenImage(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	img := &Image{file: f, path: path}
	if err := img.check(); err != nil {
		f.Close()
		return nil, err
	}

	return img, nil
}

func (img *Image) check() error {
	info, err := img.file.Stat()
	if err != nil {
		return err
	}

	// Size of block devices cannot be checked this way; only regular
	// files are validated.
	if info.Mode().IsRegular() && info.Size() < ImageSize {
		return fmt.Errorf("%s: %w", img.path, ErrImageTooSmall)
	}

	buf := make([]byte, MagicSize)
	if _, err := img.file.ReadAt(buf, 0); err != nil {
		return err
	}

	for i, want := range magic {
		if binary.LittleEndian.Uint32(buf[i*4:]) != want {
			return fmt.Errorf("%s: %w", img.path, ErrBadMagic)
		}
	}

	return nil
}

func (img *Image) Close() error {
	return img.file.Close()
}

func (img *Image) readAt(buf []byte, off int64) error {
	if _, err := img.file.ReadAt(buf, off); err != nil {
		return fmt.Errorf("%w: read %d bytes at offset %d: %v", domain.ErrIO, len(buf), off, err)
	}
	return nil
}

func (img *Image) writeAt(buf []byte, off int64) error {
	if _, err := img.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: write %d bytes at offset %d: %v", domain.ErrIO, len(buf), off, err)
	}
	return nil
}

func blockOffset(block uint16) int64 {
	return DataStart + int64(block-1)*BlockSize
}

// Format creates a fresh, empty image at path: magic header, zeroed root
// table, zeroed block table and a sparse data region.
func Format(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(ImageSize); err != nil {
		return err
	}

	buf := make([]byte, MagicSize)
	for i, word := range magic {
		binary.LittleEndian.PutUint32(buf[i*4:], word)
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return err
	}

	return f.Sync()
}
