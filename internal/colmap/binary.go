package colmap

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/colmap.export/internal/fsutil"
)

// Binary encoding: fixed little-endian layout so downstream consumers can
// parse sequentially without schema negotiation. Field widths are part of
// the format contract:
//
//	cameras.bin:  uint64 count, then per camera:
//	              uint64 id, int32 model code, uint64 width, uint64 height,
//	              float64 x arity params
//	images.bin:   uint64 count, then per image:
//	              uint64 id, 4x float64 qvec, 3x float64 tvec,
//	              uint64 camera id, uint64 name length + raw bytes (no NUL),
//	              uint64 n, n x (float64 x, float64 y, int64 point3D id)
//	points3D.bin: uint64 count, then per point:
//	              uint64 id, 3x float64 xyz, 3x uint8 rgb, float64 error,
//	              uint64 n, n x (uint64 image id, int64 point2D index)
//
// The point3D id on the image observation row is signed: -1 marks an
// observation with no triangulated point.

// maxPrealloc caps slice preallocation from counts read off disk, so a
// corrupt count cannot trigger an enormous allocation before the parse
// fails.
const maxPrealloc = 1 << 20

func prealloc(n uint64) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return int(n)
}

// binWriter wraps a buffered writer with little-endian helpers. The first
// write error sticks; subsequent writes are no-ops so call sites stay flat.
type binWriter struct {
	w   *bufio.Writer
	err error
}

func (bw *binWriter) put(v any) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

func (bw *binWriter) putBytes(b []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(b)
}

func (bw *binWriter) flush() error {
	if bw.err != nil {
		return bw.err
	}
	return bw.w.Flush()
}

// binReader tracks the byte offset of a sequential little-endian parse so
// truncation and garbage can be reported at an exact position.
type binReader struct {
	r    *bufio.Reader
	file string
	off  int64
}

func (br *binReader) read(v any) error {
	if err := binary.Read(br.r, binary.LittleEndian, v); err != nil {
		return &FormatError{
			File: br.file, Offset: br.off,
			Msg: fmt.Sprintf("truncated record (want %d bytes)", binary.Size(v)),
			Err: err,
		}
	}
	br.off += int64(binary.Size(v))
	return nil
}

func (br *binReader) readBytes(n uint64) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, &FormatError{
			File: br.file, Offset: br.off,
			Msg: fmt.Sprintf("truncated byte string (want %d bytes)", n),
			Err: err,
		}
	}
	br.off += int64(n)
	return b, nil
}

func (br *binReader) errf(format string, args ...any) error {
	return &FormatError{File: br.file, Offset: br.off, Msg: fmt.Sprintf(format, args...)}
}

// expectEOF verifies the record count consumed the whole file; trailing
// bytes mean the count lied.
func (br *binReader) expectEOF() error {
	if _, err := br.r.ReadByte(); err != io.EOF {
		return br.errf("trailing data after final record")
	}
	return nil
}

func writeCamerasBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := &binWriter{w: bufio.NewWriter(f)}
	bw.put(uint64(len(m.Cameras)))
	for _, id := range sortedKeys(m.Cameras) {
		cam := m.Cameras[id]
		bw.put(cam.ID)
		bw.put(int32(cam.Model))
		bw.put(cam.Width)
		bw.put(cam.Height)
		for _, p := range cam.Params {
			bw.put(p)
		}
	}
	if err := bw.flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readCamerasBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := &binReader{r: bufio.NewReader(f), file: path}
	var count uint64
	if err := br.read(&count); err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		var (
			id, width, height uint64
			code              int32
		)
		if err := br.read(&id); err != nil {
			return err
		}
		if err := br.read(&code); err != nil {
			return err
		}
		model := CameraModel(code)
		if !model.Valid() {
			return br.errf("camera %d: unknown model code %d", id, code)
		}
		if err := br.read(&width); err != nil {
			return err
		}
		if err := br.read(&height); err != nil {
			return err
		}
		params := make([]float64, model.Arity())
		if err := br.read(params); err != nil {
			return err
		}
		if _, dup := m.Cameras[id]; dup {
			return br.errf("duplicate camera id %d", id)
		}
		m.Cameras[id] = &Camera{ID: id, Model: model, Width: width, Height: height, Params: params}
	}
	return br.expectEOF()
}

func writeImagesBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := &binWriter{w: bufio.NewWriter(f)}
	bw.put(uint64(len(m.Images)))
	for _, id := range sortedKeys(m.Images) {
		img := m.Images[id]
		bw.put(img.ID)
		bw.put(img.QVec)
		bw.put(img.TVec)
		bw.put(img.CameraID)
		bw.put(uint64(len(img.Name)))
		bw.putBytes([]byte(img.Name))
		bw.put(uint64(len(img.XYs)))
		for i, xy := range img.XYs {
			bw.put(xy[0])
			bw.put(xy[1])
			bw.put(img.Point3DIDs[i])
		}
	}
	if err := bw.flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readImagesBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := &binReader{r: bufio.NewReader(f), file: path}
	var count uint64
	if err := br.read(&count); err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		img := &Image{}
		if err := br.read(&img.ID); err != nil {
			return err
		}
		if err := br.read(&img.QVec); err != nil {
			return err
		}
		if err := br.read(&img.TVec); err != nil {
			return err
		}
		if err := br.read(&img.CameraID); err != nil {
			return err
		}
		var nameLen uint64
		if err := br.read(&nameLen); err != nil {
			return err
		}
		nameBytes, err := br.readBytes(nameLen)
		if err != nil {
			return err
		}
		img.Name = string(nameBytes)

		var nObs uint64
		if err := br.read(&nObs); err != nil {
			return err
		}
		img.XYs = make([][2]float64, 0, prealloc(nObs))
		img.Point3DIDs = make([]int64, 0, prealloc(nObs))
		for j := uint64(0); j < nObs; j++ {
			var x, y float64
			var p3d int64
			if err := br.read(&x); err != nil {
				return err
			}
			if err := br.read(&y); err != nil {
				return err
			}
			if err := br.read(&p3d); err != nil {
				return err
			}
			img.XYs = append(img.XYs, [2]float64{x, y})
			img.Point3DIDs = append(img.Point3DIDs, p3d)
		}

		if _, dup := m.Images[img.ID]; dup {
			return br.errf("duplicate image id %d", img.ID)
		}
		m.Images[img.ID] = img
	}
	return br.expectEOF()
}

func writePoints3DBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := &binWriter{w: bufio.NewWriter(f)}
	bw.put(uint64(len(m.Points3D)))
	for _, id := range sortedKeys(m.Points3D) {
		pt := m.Points3D[id]
		bw.put(pt.ID)
		bw.put(pt.XYZ)
		bw.putBytes(pt.RGB[:])
		bw.put(pt.Error)
		bw.put(uint64(len(pt.ImageIDs)))
		for i := range pt.ImageIDs {
			bw.put(pt.ImageIDs[i])
			bw.put(pt.Point2DIdxs[i])
		}
	}
	if err := bw.flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readPoints3DBinary(fsys fsutil.FileSystem, m *Model, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := &binReader{r: bufio.NewReader(f), file: path}
	var count uint64
	if err := br.read(&count); err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		pt := &Point3D{}
		if err := br.read(&pt.ID); err != nil {
			return err
		}
		if err := br.read(&pt.XYZ); err != nil {
			return err
		}
		rgb, err := br.readBytes(3)
		if err != nil {
			return err
		}
		copy(pt.RGB[:], rgb)
		if err := br.read(&pt.Error); err != nil {
			return err
		}

		var nTrack uint64
		if err := br.read(&nTrack); err != nil {
			return err
		}
		pt.ImageIDs = make([]uint64, 0, prealloc(nTrack))
		pt.Point2DIdxs = make([]int64, 0, prealloc(nTrack))
		for j := uint64(0); j < nTrack; j++ {
			var imgID uint64
			var idx int64
			if err := br.read(&imgID); err != nil {
				return err
			}
			if err := br.read(&idx); err != nil {
				return err
			}
			pt.ImageIDs = append(pt.ImageIDs, imgID)
			pt.Point2DIdxs = append(pt.Point2DIdxs, idx)
		}

		if _, dup := m.Points3D[pt.ID]; dup {
			return br.errf("duplicate point3D id %d", pt.ID)
		}
		m.Points3D[pt.ID] = pt
	}
	return br.expectEOF()
}
