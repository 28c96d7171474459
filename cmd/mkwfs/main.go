package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/smackfs/wfs/internal/storage"
)

func main() {
	force := pflag.BoolP("force", "f", false, "overwrite an existing file")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mkwfs [-f] <image>")
		os.Exit(1)
	}
	path := pflag.Arg(0)

	if !*force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "error: %s already exists (use -f to overwrite)\n", path)
			os.Exit(1)
		}
	}

	if err := storage.Format(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: formatting %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("created WFS image %s (%d blocks of %d bytes, %d root entries)\n",
		path, storage.NumBlocks, storage.BlockSize, storage.NumRootEntries)
}
