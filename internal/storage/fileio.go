package storage

import (
	"fmt"

	"github.com/smackfs/wfs/internal/domain"
)

func blocksFor(size int64) int {
	return int((size + BlockSize - 1) / BlockSize)
}

// seekBlock returns the block holding byte offset off of the entry's chain
// and the position within that block. Returns BlockEOF when the chain ends
// before the offset is reached.
func (img *Image) seekBlock(e *domain.FileEntry, off int64) (uint16, int, error) {
	block := e.StartBlock
	for off >= BlockSize {
		if block == BlockEOF {
			return BlockEOF, 0, nil
		}
		next, err := img.nextBlock(block)
		if err != nil {
			return 0, 0, err
		}
		block = next
		off -= BlockSize
	}
	return block, int(off), nil
}

// readFile reads up to size bytes starting at off. Reads never extend past
// the recorded file size; an offset beyond it is invalid. A chain that ends
// before the clamped range is satisfied indicates corruption, since the
// range was already known to be within the file.
func (img *Image) readFile(e *domain.FileEntry, off, size int64) ([]byte, error) {
	if off < 0 || size < 0 {
		return nil, domain.ErrInvalidOffset
	}

	fileSize := int64(e.FileSize())
	if off > fileSize {
		return nil, domain.ErrInvalidOffset
	}
	if off+size > fileSize {
		size = fileSize - off
	}
	if size == 0 {
		return []byte{}, nil
	}

	block, pos, err := img.seekBlock(e, off)
	if err != nil {
		return nil, err
	}
	if !validBlock(block) {
		return nil, fmt.Errorf("%w: chain of %q ends before offset %d", domain.ErrCorrupted, e.Name, off)
	}

	out := make([]byte, 0, size)
	for size > 0 {
		transfer := int64(BlockSize - pos)
		if transfer > size {
			transfer = size
		}

		buf := make([]byte, transfer)
		if err := img.readAt(buf, blockOffset(block)+int64(pos)); err != nil {
			return nil, err
		}
		out = append(out, buf...)
		size -= transfer

		if size > 0 {
			next, err := img.nextBlock(block)
			if err != nil {
				return nil, err
			}
			if !validBlock(next) {
				return nil, fmt.Errorf("%w: chain of %q ends mid-file", domain.ErrCorrupted, e.Name)
			}
			block = next
			pos = 0
		}
	}
	return out, nil
}

// writeFile writes data at off, growing the chain as needed, and updates
// the entry's size field in memory. The caller persists the entry record
// after a successful write.
func (img *Image) writeFile(e *domain.FileEntry, off int64, data []byte) (int, error) {
	if off < 0 {
		return 0, domain.ErrInvalidOffset
	}

	oldSize := int64(e.FileSize())
	end := off + int64(len(data))
	if end > int64(domain.SizeMask) {
		return 0, domain.ErrTooLarge
	}
	if len(data) == 0 {
		return 0, nil
	}

	newSize := oldSize
	if end > newSize {
		newSize = end
	}

	if err := img.ensureChainLen(e, blocksFor(newSize)); err != nil {
		return 0, err
	}

	// Writing past the old end of file leaves a gap that must read back as
	// zeros. Blocks past the old tail were zeroed at allocation; only the
	// remainder of the old tail block needs clearing.
	if off > oldSize {
		gapEnd := (oldSize + BlockSize - 1) / BlockSize * BlockSize
		if gapEnd > off {
			gapEnd = off
		}
		if gapEnd > oldSize {
			if err := img.writeRange(e, oldSize, make([]byte, gapEnd-oldSize)); err != nil {
				return 0, err
			}
		}
	}

	if err := img.writeRange(e, off, data); err != nil {
		return 0, err
	}

	if newSize > oldSize {
		e.SetFileSize(uint32(newSize))
	}
	return len(data), nil
}

// writeRange performs the positional block transfers for data at off. The
// chain must already be long enough.
func (img *Image) writeRange(e *domain.FileEntry, off int64, data []byte) error {
	block, pos, err := img.seekBlock(e, off)
	if err != nil {
		return err
	}

	written := 0
	for written < len(data) {
		if !validBlock(block) {
			return fmt.Errorf("%w: chain of %q too short for write", domain.ErrCorrupted, e.Name)
		}

		transfer := BlockSize - pos
		if transfer > len(data)-written {
			transfer = len(data) - written
		}
		if err := img.writeAt(data[written:written+transfer], blockOffset(block)+int64(pos)); err != nil {
			return err
		}
		written += transfer

		if written < len(data) {
			block, err = img.nextBlock(block)
			if err != nil {
				return err
			}
			pos = 0
		}
	}
	return nil
}

// ensureChainLen grows the entry's chain to at least want blocks, zeroing
// every freshly claimed block. On failure the chain is restored to its
// previous length.
func (img *Image) ensureChainLen(e *domain.FileEntry, want int) error {
	if want <= 0 {
		return nil
	}

	if e.StartBlock == BlockEOF {
		head, err := img.allocateChain(want)
		if err != nil {
			return err
		}
		if err := img.zeroChain(head, want); err != nil {
			img.releaseChain(head)
			return err
		}
		e.StartBlock = head
		return nil
	}

	have := 0
	tail := e.StartBlock
	for {
		if !validBlock(tail) {
			return fmt.Errorf("%w: chain of %q references block %d", domain.ErrCorrupted, e.Name, tail)
		}
		have++
		if have > NumBlocks {
			return fmt.Errorf("%w: chain of %q does not terminate", domain.ErrCorrupted, e.Name)
		}
		next, err := img.readBlockPtr(tail)
		if err != nil {
			return err
		}
		if next == BlockEOF {
			break
		}
		tail = next
	}

	if have >= want {
		return nil
	}

	if _, err := img.growChain(tail, want-have); err != nil {
		return err
	}
	appended, err := img.readBlockPtr(tail)
	if err != nil {
		return err
	}
	if err := img.zeroChain(appended, want-have); err != nil {
		img.writeBlockPtr(tail, BlockEOF)
		img.releaseChain(appended)
		return err
	}
	return nil
}

func (img *Image) zeroChain(start uint16, count int) error {
	block := start
	for i := 0; i < count; i++ {
		if !validBlock(block) {
			return fmt.Errorf("%w: block %d out of range", domain.ErrCorrupted, block)
		}
		if err := img.zeroBlock(block); err != nil {
			return err
		}
		next, err := img.nextBlock(block)
		if err != nil {
			return err
		}
		block = next
	}
	return nil
}

// truncateFile shrinks or extends the entry to newSize, releasing any tail
// blocks past the block containing the new end and updating the size field
// in memory.
func (img *Image) truncateFile(e *domain.FileEntry, newSize int64) error {
	if newSize < 0 {
		return domain.ErrInvalidOffset
	}
	if newSize > int64(domain.SizeMask) {
		return domain.ErrTooLarge
	}

	oldSize := int64(e.FileSize())
	keep := blocksFor(newSize)

	switch {
	case newSize < oldSize:
		if keep == 0 {
			if err := img.releaseChain(e.StartBlock); err != nil {
				return err
			}
			e.StartBlock = BlockEOF
		} else {
			block := e.StartBlock
			for i := 1; i < keep; i++ {
				if !validBlock(block) {
					return domain.ErrCorrupted
				}
				next, err := img.nextBlock(block)
				if err != nil {
					return err
				}
				block = next
			}
			if !validBlock(block) {
				return domain.ErrCorrupted
			}

			rest, err := img.readBlockPtr(block)
			if err != nil {
				return err
			}
			if err := img.writeBlockPtr(block, BlockEOF); err != nil {
				return err
			}
			if err := img.releaseChain(rest); err != nil {
				return err
			}

			// Bytes past the new end within the kept tail block must not
			// resurface when the file grows again.
			if rem := newSize % BlockSize; rem != 0 {
				if err := img.writeAt(make([]byte, BlockSize-rem), blockOffset(block)+rem); err != nil {
					return err
				}
			}
		}

	case newSize > oldSize:
		if err := img.ensureChainLen(e, keep); err != nil {
			return err
		}
		gapEnd := (oldSize + BlockSize - 1) / BlockSize * BlockSize
		if gapEnd > newSize {
			gapEnd = newSize
		}
		if gapEnd > oldSize {
			if err := img.writeRange(e, oldSize, make([]byte, gapEnd-oldSize)); err != nil {
				return err
			}
		}
	}

	e.SetFileSize(uint32(newSize))
	return nil
}
