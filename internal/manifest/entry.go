// Package manifest models the unit of dataset conversion: one Entry per
// source point cloud, with helpers to infer entries from directory
// trees, load and persist CSV manifests, and assign train/val/test
// splits.
package manifest

import (
	"regexp"
	"strings"
)

// Entry roles. Partial and complete entries pair up inside the paired
// (PCN style) layout; object entries stand alone in the flat layout.
const (
	RolePartial  = "partial"
	RoleComplete = "complete"
	RoleObject   = "object"
)

// Split labels assigned by AssignSplits. Callers may use other labels
// when loading manifests with custom splits.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// Entry describes a single dataset sample. Path, Role, Category,
// ModelID and ViewID are fixed at creation; only Split may be
// reassigned afterwards (by AssignSplits).
type Entry struct {
	Path     string // source file location, read-only to the engine
	Role     string // partial, complete or object
	Category string // class or synset identifier
	ModelID  string // instance identifier, unique within a category
	ViewID   string // optional; only meaningful for partial entries
	Split    string // train, val, test or a caller-supplied label
}

var sanitizePattern = regexp.MustCompile(`[^-_.0-9a-zA-Z]+`)

// Sanitize maps an identifier to a filesystem-safe token: runs of
// characters outside [A-Za-z0-9._-] become a single underscore, and an
// empty result falls back to "item".
func Sanitize(text string) string {
	cleaned := sanitizePattern.ReplaceAllString(strings.TrimSpace(text), "_")
	if cleaned == "" {
		return "item"
	}
	return cleaned
}
