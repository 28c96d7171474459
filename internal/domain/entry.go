package domain

const (
	NameSize   = 58
	EntrySize  = 64
	MaxNameLen = NameSize - 1

	SizeMask uint32 = 0x0fffffff
	DirFlag  uint32 = 1 << 31
)

// FileEntry is one directory-slot record: a name, the first block of the
// entry's data chain and a packed size/flags word. A slot with an empty
// name or a zero start block is free. An entry whose chain holds no blocks
// stores the end-of-chain sentinel as its start block.
type FileEntry struct {
	Name       string
	StartBlock uint16
	SizeFlags  uint32
}

func (e *FileEntry) IsEmpty() bool {
	return e.Name == "" || e.StartBlock == 0
}

func (e *FileEntry) IsDir() bool {
	return e.SizeFlags&DirFlag != 0
}

func (e *FileEntry) FileSize() uint32 {
	return e.SizeFlags & SizeMask
}

func (e *FileEntry) SetFileSize(size uint32) {
	e.SizeFlags = (e.SizeFlags &^ SizeMask) | (size & SizeMask)
}
