package colmap

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/banshee-data/colmap.export/internal/fsutil"
)

// Format selects the on-disk encoding of a model directory.
type Format int

const (
	// FormatText is the line-oriented UTF-8 encoding (.txt triple).
	FormatText Format = iota
	// FormatBinary is the fixed little-endian encoding (.bin triple).
	FormatBinary
)

// ParseFormat maps the conventional extension names to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "txt", "text":
		return FormatText, nil
	case "bin", "binary":
		return FormatBinary, nil
	}
	return 0, fmt.Errorf("unknown model format %q (want txt or bin)", s)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatBinary {
		return "bin"
	}
	return "txt"
}

func (f Format) String() string { return f.Ext() }

// Base names of the three model files, completed by the format extension.
const (
	camerasFile  = "cameras"
	imagesFile   = "images"
	points3DFile = "points3D"
)

type fileWriter func(fsutil.FileSystem, *Model, string) error
type fileReader func(fsutil.FileSystem, *Model, string) error

func (f Format) writers() [3]fileWriter {
	if f == FormatBinary {
		return [3]fileWriter{writeCamerasBinary, writeImagesBinary, writePoints3DBinary}
	}
	return [3]fileWriter{writeCamerasText, writeImagesText, writePoints3DText}
}

func (f Format) readers() [3]fileReader {
	if f == FormatBinary {
		return [3]fileReader{readCamerasBinary, readImagesBinary, readPoints3DBinary}
	}
	return [3]fileReader{readCamerasText, readImagesText, readPoints3DText}
}

func fileBases() [3]string {
	return [3]string{camerasFile, imagesFile, points3DFile}
}

// Write validates the model and serializes it as the three-file triple
// under dir using the OS filesystem. See WriteFS.
func Write(m *Model, dir string, format Format) error {
	return WriteFS(fsutil.OSFileSystem{}, m, dir, format)
}

// ReadModel loads a model triple from dir using the OS filesystem. See
// ReadFS.
func ReadModel(dir string, format Format) (*Model, error) {
	return ReadFS(fsutil.OSFileSystem{}, dir, format)
}

// WriteFS validates the model and writes cameras.<ext>, images.<ext> and
// points3D.<ext> under dir, creating dir if needed. The write is
// all-or-nothing: a referential failure produces no files, and each file
// is staged under a unique temporary name and renamed into place only
// after all three have been fully written, so an error mid-write never
// leaves a partial triple that could pass for a complete model.
func WriteFS(fs fsutil.FileSystem, m *Model, dir string, format Format) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create model directory %s: %w", dir, err)
	}

	type stage struct {
		tmp, final string
	}
	var staged []stage
	cleanup := func() {
		for _, s := range staged {
			fs.Remove(s.tmp)
		}
	}

	run := uuid.New().String()
	writers := format.writers()
	for i, base := range fileBases() {
		final := filepath.Join(dir, base+"."+format.Ext())
		tmp := final + ".tmp-" + run
		if err := writers[i](fs, m, tmp); err != nil {
			cleanup()
			return err
		}
		staged = append(staged, stage{tmp, final})
	}

	for _, s := range staged {
		if err := fs.Rename(s.tmp, s.final); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", s.final, err)
		}
	}
	return nil
}

// ReadFS loads a model triple from dir. It is the exact inverse of
// WriteFS: every field of every record round-trips. Missing or malformed
// files surface as IO errors or *FormatError; a failed read never returns
// a partially populated model.
func ReadFS(fs fsutil.FileSystem, dir string, format Format) (*Model, error) {
	m := NewModel()
	readers := format.readers()
	for i, base := range fileBases() {
		path := filepath.Join(dir, base+"."+format.Ext())
		if err := readers[i](fs, m, path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DetectFormat inspects dir for a model triple and reports its format.
func DetectFormat(fs fsutil.FileSystem, dir string) (Format, error) {
	for _, f := range []Format{FormatBinary, FormatText} {
		if fs.Exists(filepath.Join(dir, camerasFile+"."+f.Ext())) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("no model files found in %s", dir)
}

// sortedKeys returns map keys in ascending order. Writers emit records in
// id order for deterministic diffs; readers accept any order.
func sortedKeys[V any](mm map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(mm))
	for id := range mm {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
