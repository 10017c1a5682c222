package populate

import (
	"strings"

	"github.com/hanpama/populate/internal/index"
)

// IsValid reports whether path names an indexed relation or relation field.
func IsValid(path string, idx *index.Index) bool {
	return idx.IsRelation(path) || idx.IsRelationField(path)
}

// FilterValid keeps the paths idx recognizes, preserving order and duplicates.
// Blank entries are dropped.
func FilterValid(paths []string, idx *index.Index) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if IsValid(p, idx) {
			out = append(out, p)
		}
	}
	return out
}
