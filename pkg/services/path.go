package services

import (
	"strings"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
)

// PathSeparator joins node uids into materialized paths.
const PathSeparator = "/"

// validateNodeUID rejects uids that are empty or would corrupt a
// materialized path.
func validateNodeUID(uid string) error {
	if uid == "" {
		return apperrors.Validation("node_uid must not be empty")
	}
	if strings.Contains(uid, PathSeparator) {
		return apperrors.Validation("node_uid must not contain %q", PathSeparator)
	}
	return nil
}

// childPath extends a parent path with one uid.
func childPath(parentPath, uid string) string {
	return parentPath + PathSeparator + uid
}

// splitParentPath returns everything before the last separator in path, or
// nil when the path has no separator (a root).
func splitParentPath(path string) *string {
	idx := strings.LastIndex(path, PathSeparator)
	if idx < 0 {
		return nil
	}
	p := path[:idx]
	return &p
}

// rebasePath replaces the oldPrefix of a descendant path with newPrefix.
// The caller guarantees path starts with oldPrefix.
func rebasePath(oldPrefix, newPrefix, path string) string {
	return newPrefix + path[len(oldPrefix):]
}

// isSelfOrDescendantPath reports whether candidate equals base or lies in
// base's subtree.
func isSelfOrDescendantPath(base, candidate string) bool {
	return candidate == base || strings.HasPrefix(candidate, base+PathSeparator)
}

// pathLevel returns the level a path encodes: separators count, root = 0.
func pathLevel(path string) int {
	return strings.Count(path, PathSeparator)
}
