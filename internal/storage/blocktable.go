package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/smackfs/wfs/internal/domain"
)

// Block allocation table sentinels. Blocks are numbered 1..NumBlocks;
// table slot i holds the chain successor of block i+1.
const (
	BlockFree uint16 = 0x0000
	BlockEOF  uint16 = 0xfffe
)

func validBlock(block uint16) bool {
	return block >= 1 && block <= NumBlocks
}

func blockPtrOffset(block uint16) int64 {
	return BlockTableStart + int64(block-1)*2
}

func (img *Image) readBlockPtr(block uint16) (uint16, error) {
	if !validBlock(block) {
		return 0, fmt.Errorf("%w: block %d out of range", domain.ErrCorrupted, block)
	}
	var buf [2]byte
	if err := img.readAt(buf[:], blockPtrOffset(block)); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (img *Image) writeBlockPtr(block uint16, value uint16) error {
	if !validBlock(block) {
		return fmt.Errorf("%w: block %d out of range", domain.ErrCorrupted, block)
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return img.writeAt(buf[:], blockPtrOffset(block))
}

// nextBlock returns the chain successor of block, or BlockEOF at the end
// of the chain.
func (img *Image) nextBlock(block uint16) (uint16, error) {
	if block == BlockEOF {
		return BlockEOF, nil
	}
	return img.readBlockPtr(block)
}

// allocateChain claims count free blocks, links them in the order found and
// terminates the chain. Either the whole chain is allocated or the table is
// left untouched.
func (img *Image) allocateChain(count int) (uint16, error) {
	if count <= 0 {
		return BlockEOF, nil
	}

	blocks, err := img.findFreeBlocks(count)
	if err != nil {
		return 0, err
	}

	for i, block := range blocks {
		next := BlockEOF
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		if err := img.writeBlockPtr(block, next); err != nil {
			img.rollbackAlloc(blocks[:i+1])
			return 0, err
		}
	}

	return blocks[0], nil
}

func (img *Image) findFreeBlocks(count int) ([]uint16, error) {
	table := make([]byte, BlockTableSize)
	if err := img.readAt(table, BlockTableStart); err != nil {
		return nil, err
	}

	blocks := make([]uint16, 0, count)
	for slot := 0; slot < NumBlocks && len(blocks) < count; slot++ {
		if binary.LittleEndian.Uint16(table[slot*2:]) == BlockFree {
			blocks = append(blocks, uint16(slot+1))
		}
	}

	if len(blocks) < count {
		return nil, domain.ErrNoSpace
	}
	return blocks, nil
}

func (img *Image) rollbackAlloc(blocks []uint16) {
	for _, block := range blocks {
		img.writeBlockPtr(block, BlockFree)
	}
}

// growChain appends extra newly allocated blocks after tail and returns the
// new chain tail. Growth is all-or-nothing: on failure the freshly claimed
// blocks are released and tail keeps its end-of-chain mark.
func (img *Image) growChain(tail uint16, extra int) (uint16, error) {
	if extra <= 0 {
		return tail, nil
	}
	if !validBlock(tail) {
		return 0, fmt.Errorf("%w: grow from block %d", domain.ErrCorrupted, tail)
	}

	head, err := img.allocateChain(extra)
	if err != nil {
		return 0, err
	}

	if err := img.writeBlockPtr(tail, head); err != nil {
		img.releaseChain(head)
		return 0, err
	}

	newTail := head
	for i := 1; i < extra; i++ {
		next, err := img.nextBlock(newTail)
		if err != nil {
			return 0, err
		}
		newTail = next
	}
	return newTail, nil
}

// releaseChain walks the chain from start and resets every visited slot to
// free. Releasing an already-free or empty chain is a no-op.
func (img *Image) releaseChain(start uint16) error {
	block := start
	for steps := 0; block != BlockEOF; steps++ {
		if steps > NumBlocks {
			return fmt.Errorf("%w: block chain from %d does not terminate", domain.ErrCorrupted, start)
		}
		if !validBlock(block) {
			if block == BlockFree {
				return nil
			}
			return fmt.Errorf("%w: block %d out of range", domain.ErrCorrupted, block)
		}

		next, err := img.readBlockPtr(block)
		if err != nil {
			return err
		}
		if next == BlockFree {
			// Already free, nothing to release.
			return nil
		}
		if err := img.writeBlockPtr(block, BlockFree); err != nil {
			return err
		}
		block = next
	}
	return nil
}

// chainLen counts the blocks reachable from start.
func (img *Image) chainLen(start uint16) (int, error) {
	count := 0
	block := start
	for block != BlockEOF {
		if !validBlock(block) {
			return 0, fmt.Errorf("%w: block %d out of range", domain.ErrCorrupted, block)
		}
		count++
		if count > NumBlocks {
			return 0, fmt.Errorf("%w: block chain from %d does not terminate", domain.ErrCorrupted, start)
		}
		next, err := img.readBlockPtr(block)
		if err != nil {
			return 0, err
		}
		block = next
	}
	return count, nil
}

func (img *Image) freeBlockCount() (uint32, error) {
	table := make([]byte, BlockTableSize)
	if err := img.readAt(table, BlockTableStart); err != nil {
		return 0, err
	}

	var free uint32
	for slot := 0; slot < NumBlocks; slot++ {
		if binary.LittleEndian.Uint16(table[slot*2:]) == BlockFree {
			free++
		}
	}
	return free, nil
}
