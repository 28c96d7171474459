package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/smackfs/wfs/internal/domain"
)

// entryRef locates a file entry record within the image. The root directory
// has no record of its own and is represented by a negative offset.
type entryRef struct {
	entry domain.FileEntry
	off   int64
}

func rootRef() entryRef {
	return entryRef{off: -1}
}

func (r *entryRef) isRoot() bool {
	return r.off < 0
}

func (r *entryRef) isDir() bool {
	return r.isRoot() || r.entry.IsDir()
}

func decodeEntry(buf []byte) domain.FileEntry {
	name := buf[:domain.NameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return domain.FileEntry{
		Name:       string(name),
		StartBlock: binary.LittleEndian.Uint16(buf[domain.NameSize:]),
		SizeFlags:  binary.LittleEndian.Uint32(buf[domain.NameSize+2:]),
	}
}

func encodeEntry(e *domain.FileEntry) []byte {
	buf := make([]byte, domain.EntrySize)
	copy(buf[:domain.NameSize], e.Name)
	binary.LittleEndian.PutUint16(buf[domain.NameSize:], e.StartBlock)
	binary.LittleEndian.PutUint32(buf[domain.NameSize+2:], e.SizeFlags)
	return buf
}

func (img *Image) readEntryAt(off int64) (domain.FileEntry, error) {
	buf := make([]byte, domain.EntrySize)
	if err := img.readAt(buf, off); err != nil {
		return domain.FileEntry{}, err
	}
	return decodeEntry(buf), nil
}

func (img *Image) writeEntryAt(off int64, e *domain.FileEntry) error {
	return img.writeAt(encodeEntry(e), off)
}

func (img *Image) clearEntryAt(off int64) error {
	return img.writeAt(make([]byte, domain.EntrySize), off)
}

// forEachSlot visits every entry slot of dir, free or occupied, in slot
// order. The root iterates the fixed table; other directories iterate the
// blocks of their chain, so their slot count follows the chain length.
func (img *Image) forEachSlot(dir *entryRef, fn func(ref entryRef) (bool, error)) error {
	if dir.isRoot() {
		for i := 0; i < NumRootEntries; i++ {
			off := int64(EntriesStart + i*domain.EntrySize)
			entry, err := img.readEntryAt(off)
			if err != nil {
				return err
			}
			stop, err := fn(entryRef{entry: entry, off: off})
			if err != nil || stop {
				return err
			}
		}
		return nil
	}

	block := dir.entry.StartBlock
	for steps := 0; block != BlockEOF; steps++ {
		if steps > NumBlocks {
			return domain.ErrCorrupted
		}
		if !validBlock(block) {
			return domain.ErrCorrupted
		}

		for i := 0; i < EntriesPerBlock; i++ {
			off := blockOffset(block) + int64(i*domain.EntrySize)
			entry, err := img.readEntryAt(off)
			if err != nil {
				return err
			}
			stop, err := fn(entryRef{entry: entry, off: off})
			if err != nil || stop {
				return err
			}
		}

		next, err := img.readBlockPtr(block)
		if err != nil {
			return err
		}
		block = next
	}
	return nil
}

// listEntries returns the occupied slots of dir in slot order.
func (img *Image) listEntries(dir *entryRef) ([]entryRef, error) {
	var refs []entryRef
	err := img.forEachSlot(dir, func(ref entryRef) (bool, error) {
		if !ref.entry.IsEmpty() {
			refs = append(refs, ref)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (img *Image) findEntry(dir *entryRef, name string) (entryRef, error) {
	if name == "" {
		return entryRef{}, domain.ErrNotFound
	}

	var found *entryRef
	err := img.forEachSlot(dir, func(ref entryRef) (bool, error) {
		if !ref.entry.IsEmpty() && ref.entry.Name == name {
			found = &ref
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return entryRef{}, err
	}
	if found == nil {
		return entryRef{}, domain.ErrNotFound
	}
	return *found, nil
}

// insertEntry writes entry into the first free slot of dir. When a chained
// directory has no free slot its chain grows by one zeroed block; the root
// table is fixed and reports no space instead. The caller guarantees the
// name is not already present.
func (img *Image) insertEntry(dir *entryRef, entry *domain.FileEntry) error {
	var slot int64 = -1
	err := img.forEachSlot(dir, func(ref entryRef) (bool, error) {
		if ref.entry.IsEmpty() {
			slot = ref.off
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	if slot < 0 {
		if dir.isRoot() {
			return domain.ErrNoSpace
		}
		block, err := img.appendDirBlock(dir)
		if err != nil {
			return err
		}
		slot = blockOffset(block)
	}

	return img.writeEntryAt(slot, entry)
}

// appendDirBlock adds one zeroed block to the directory's chain and persists
// the updated parent record when the chain was empty.
func (img *Image) appendDirBlock(dir *entryRef) (uint16, error) {
	if dir.entry.StartBlock == BlockEOF {
		head, err := img.allocateChain(1)
		if err != nil {
			return 0, err
		}
		if err := img.zeroBlock(head); err != nil {
			img.releaseChain(head)
			return 0, err
		}
		dir.entry.StartBlock = head
		if err := img.writeEntryAt(dir.off, &dir.entry); err != nil {
			dir.entry.StartBlock = BlockEOF
			img.releaseChain(head)
			return 0, err
		}
		return head, nil
	}

	tail := dir.entry.StartBlock
	for steps := 0; ; steps++ {
		if steps > NumBlocks {
			return 0, domain.ErrCorrupted
		}
		next, err := img.readBlockPtr(tail)
		if err != nil {
			return 0, err
		}
		if next == BlockEOF {
			break
		}
		if !validBlock(next) {
			return 0, domain.ErrCorrupted
		}
		tail = next
	}

	block, err := img.growChain(tail, 1)
	if err != nil {
		return 0, err
	}
	if err := img.zeroBlock(block); err != nil {
		img.writeBlockPtr(tail, BlockEOF)
		img.writeBlockPtr(block, BlockFree)
		return 0, err
	}
	return block, nil
}

func (img *Image) zeroBlock(block uint16) error {
	return img.writeAt(make([]byte, BlockSize), blockOffset(block))
}

// removeEntry clears the slot holding name and returns the removed entry.
// The directory's chain is not shrunk; freed slots are reused by later
// inserts.
func (img *Image) removeEntry(dir *entryRef, name string) (domain.FileEntry, error) {
	ref, err := img.findEntry(dir, name)
	if err != nil {
		return domain.FileEntry{}, err
	}
	if err := img.clearEntryAt(ref.off); err != nil {
		return domain.FileEntry{}, err
	}
	return ref.entry, nil
}
