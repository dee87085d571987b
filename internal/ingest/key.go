package ingest

import (
	"strings"

	"github.com/google/uuid"
)

const keyPrefix = "uploads/"

// storageKey builds "uploads/<uuid>.<ext>". The extension is whatever follows
// the last dot of the original name, or the whole name when it has none,
// reduced to [a-z0-9_-].
func storageKey(id uuid.UUID, fileName string) string {
	ext := fileName
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		ext = fileName[i+1:]
	}
	ext = sanitizeExt(ext)
	if ext == "" {
		return keyPrefix + id.String()
	}
	return keyPrefix + id.String() + "." + ext
}

func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(ext) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
