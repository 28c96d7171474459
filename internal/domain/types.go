package domain

const (
	S_IFMT  uint32 = 0170000
	S_IFDIR uint32 = 0040000
	S_IFREG uint32 = 0100000
)

// Attr is the stat view of a resolved path.
type Attr struct {
	Mode  uint32
	Nlink uint32
	Size  uint32
}

func (a *Attr) IsDir() bool {
	return (a.Mode & S_IFMT) == S_IFDIR
}

type DirEntry struct {
	Name string
	Mode uint32
	Size uint32
}

// FSStat reports block accounting for statfs.
type FSStat struct {
	BlockSize   uint32
	TotalBlocks uint32
	FreeBlocks  uint32
}
