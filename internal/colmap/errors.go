package colmap

import "fmt"

// FormatError reports malformed or truncated model data. File is the
// offending file name; Offset is the byte offset for binary input and Line
// the 1-based line number for text input (the unused one is zero). The
// reader never substitutes defaults or silently truncates: the first
// malformed field aborts the whole read.
type FormatError struct {
	File   string
	Offset int64
	Line   int
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	where := e.File
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", e.File, e.Line)
	} else if e.Offset > 0 {
		where = fmt.Sprintf("%s@%d", e.File, e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ReferentialError reports a foreign-key violation between the model's
// collections, found at write (or explicit Validate) time. Writers fail
// with it before any file is created rather than emit dangling references.
type ReferentialError struct {
	Entity   string // "image" or "point3D"
	EntityID uint64
	Field    string // the referencing field, e.g. "camera_id"
	TargetID uint64 // the missing referent, when applicable
	Reason   string // non-FK shape violations, e.g. mismatched track lengths
}

func (e *ReferentialError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %d: %s: %s", e.Entity, e.EntityID, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %d: %s references missing id %d", e.Entity, e.EntityID, e.Field, e.TargetID)
}
