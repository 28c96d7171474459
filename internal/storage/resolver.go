package storage

import (
	"strings"

	"github.com/smackfs/wfs/internal/domain"
)

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// resolve walks path component by component from the root. The empty path
// and "/" resolve to the root sentinel.
func (img *Image) resolve(path string) (entryRef, error) {
	if path != "" && path[0] != '/' {
		return entryRef{}, domain.ErrNotFound
	}

	current := rootRef()
	for _, part := range splitPath(path) {
		if len(part) > domain.MaxNameLen {
			return entryRef{}, domain.ErrNameTooLong
		}
		if !current.isDir() {
			return entryRef{}, domain.ErrNotDirectory
		}

		next, err := img.findEntry(&current, part)
		if err != nil {
			return entryRef{}, err
		}
		current = next
	}

	return current, nil
}

// resolveParent splits off the final path component and resolves only the
// parent portion. The parent must exist and be a directory.
func (img *Image) resolveParent(path string) (entryRef, string, error) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" || trimmed[0] != '/' {
		return entryRef{}, "", domain.ErrNotFound
	}

	sep := strings.LastIndexByte(trimmed, '/')
	base := trimmed[sep+1:]
	if len(base) > domain.MaxNameLen {
		return entryRef{}, "", domain.ErrNameTooLong
	}

	parent, err := img.resolve(trimmed[:sep])
	if err != nil {
		return entryRef{}, "", err
	}
	if !parent.isDir() {
		return entryRef{}, "", domain.ErrNotDirectory
	}

	return parent, base, nil
}
