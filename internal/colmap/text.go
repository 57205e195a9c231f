package colmap

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/colmap.export/internal/fsutil"
)

// Text encoding: line-oriented UTF-8 with '#'-prefixed header comments,
// space-separated fields and floats printed at 12 significant digits,
// enough for a read-back within 1e-9 relative of the written value.

// formatFloat prints a float for the text encoding.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}

func writeCamerasText(fs fsutil.FileSystem, m *Model, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Camera list with one line of data per camera:\n")
	fmt.Fprintf(w, "#   CAMERA_ID, MODEL, WIDTH, HEIGHT, PARAMS[]\n")
	fmt.Fprintf(w, "# Number of cameras: %d\n", len(m.Cameras))

	for _, id := range sortedKeys(m.Cameras) {
		cam := m.Cameras[id]
		fmt.Fprintf(w, "%d %s %d %d", cam.ID, cam.Model, cam.Width, cam.Height)
		for _, p := range cam.Params {
			fmt.Fprintf(w, " %s", formatFloat(p))
		}
		fmt.Fprintln(w)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeImagesText(fs fsutil.FileSystem, m *Model, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Image list with two lines of data per image:\n")
	fmt.Fprintf(w, "#   IMAGE_ID, QW, QX, QY, QZ, TX, TY, TZ, CAMERA_ID, NAME\n")
	fmt.Fprintf(w, "#   POINTS2D[] as (X, Y, POINT3D_ID)\n")
	fmt.Fprintf(w, "# Number of images: %d\n", len(m.Images))

	for _, id := range sortedKeys(m.Images) {
		img := m.Images[id]
		fmt.Fprintf(w, "%d", img.ID)
		for _, q := range img.QVec {
			fmt.Fprintf(w, " %s", formatFloat(q))
		}
		for _, t := range img.TVec {
			fmt.Fprintf(w, " %s", formatFloat(t))
		}
		fmt.Fprintf(w, " %d %s\n", img.CameraID, img.Name)

		// The observations line is always present, empty for images
		// with no 2D points.
		for i, xy := range img.XYs {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%s %s %d", formatFloat(xy[0]), formatFloat(xy[1]), img.Point3DIDs[i])
		}
		fmt.Fprintln(w)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writePoints3DText(fs fsutil.FileSystem, m *Model, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# 3D point list with one line of data per point:\n")
	fmt.Fprintf(w, "#   POINT3D_ID, X, Y, Z, R, G, B, ERROR, TRACK[] as (IMAGE_ID, POINT2D_IDX)\n")
	fmt.Fprintf(w, "# Number of points: %d\n", len(m.Points3D))

	for _, id := range sortedKeys(m.Points3D) {
		pt := m.Points3D[id]
		fmt.Fprintf(w, "%d %s %s %s %d %d %d %s",
			pt.ID,
			formatFloat(pt.XYZ[0]), formatFloat(pt.XYZ[1]), formatFloat(pt.XYZ[2]),
			pt.RGB[0], pt.RGB[1], pt.RGB[2],
			formatFloat(pt.Error))
		for i := range pt.ImageIDs {
			fmt.Fprintf(w, " %d %d", pt.ImageIDs[i], pt.Point2DIdxs[i])
		}
		fmt.Fprintln(w)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// textScanner walks a text model file line by line, tracking the current
// line number so malformed input can be reported precisely.
type textScanner struct {
	file string
	sc   *bufio.Scanner
	line int
}

func newTextScanner(fs fsutil.FileSystem, path string) (*textScanner, func() error, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &textScanner{file: path, sc: sc}, f.Close, nil
}

// nextRecord returns the next non-blank, non-comment line, or false at EOF.
func (ts *textScanner) nextRecord() (string, bool) {
	for ts.sc.Scan() {
		ts.line++
		line := strings.TrimSpace(ts.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

// nextRaw returns the next line verbatim, blank lines included. Needed for
// the per-image observations line, which is present even when empty.
func (ts *textScanner) nextRaw() (string, bool) {
	if !ts.sc.Scan() {
		return "", false
	}
	ts.line++
	return strings.TrimSpace(ts.sc.Text()), true
}

func (ts *textScanner) errf(format string, args ...any) error {
	return &FormatError{File: ts.file, Line: ts.line, Msg: fmt.Sprintf(format, args...)}
}

func readCamerasText(fs fsutil.FileSystem, m *Model, path string) error {
	ts, closeFn, err := newTextScanner(fs, path)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		line, ok := ts.nextRecord()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return ts.errf("camera line has %d fields, want at least 4", len(fields))
		}

		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return ts.errf("bad camera id %q", fields[0])
		}
		model, err := ParseCameraModel(fields[1])
		if err != nil {
			return ts.errf("%v", err)
		}
		width, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return ts.errf("bad width %q", fields[2])
		}
		height, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return ts.errf("bad height %q", fields[3])
		}
		if got, want := len(fields)-4, model.Arity(); got != want {
			return ts.errf("camera %d: model %s requires %d params, got %d", id, model, want, got)
		}
		params := make([]float64, 0, model.Arity())
		for _, s := range fields[4:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return ts.errf("bad camera param %q", s)
			}
			params = append(params, v)
		}

		if _, dup := m.Cameras[id]; dup {
			return ts.errf("duplicate camera id %d", id)
		}
		m.Cameras[id] = &Camera{ID: id, Model: model, Width: width, Height: height, Params: params}
	}
	if err := ts.sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func readImagesText(fs fsutil.FileSystem, m *Model, path string) error {
	ts, closeFn, err := newTextScanner(fs, path)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		line, ok := ts.nextRecord()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			return ts.errf("image line has %d fields, want at least 10", len(fields))
		}

		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return ts.errf("bad image id %q", fields[0])
		}
		var qvec [4]float64
		for i := 0; i < 4; i++ {
			if qvec[i], err = strconv.ParseFloat(fields[1+i], 64); err != nil {
				return ts.errf("bad qvec component %q", fields[1+i])
			}
		}
		var tvec [3]float64
		for i := 0; i < 3; i++ {
			if tvec[i], err = strconv.ParseFloat(fields[5+i], 64); err != nil {
				return ts.errf("bad tvec component %q", fields[5+i])
			}
		}
		cameraID, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			return ts.errf("bad camera id %q", fields[8])
		}
		// The name is the remainder of the line; file names may not
		// contain spaces but join defensively rather than drop fields.
		name := strings.Join(fields[9:], " ")

		obsLine, ok := ts.nextRaw()
		if !ok {
			return ts.errf("image %d: missing observations line", id)
		}
		obsFields := strings.Fields(obsLine)
		if len(obsFields)%3 != 0 {
			return ts.errf("image %d: observations line has %d fields, want a multiple of 3", id, len(obsFields))
		}
		n := len(obsFields) / 3
		xys := make([][2]float64, 0, n)
		p3ds := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			x, err := strconv.ParseFloat(obsFields[3*i], 64)
			if err != nil {
				return ts.errf("bad observation x %q", obsFields[3*i])
			}
			y, err := strconv.ParseFloat(obsFields[3*i+1], 64)
			if err != nil {
				return ts.errf("bad observation y %q", obsFields[3*i+1])
			}
			p3d, err := strconv.ParseInt(obsFields[3*i+2], 10, 64)
			if err != nil {
				return ts.errf("bad point3D id %q", obsFields[3*i+2])
			}
			xys = append(xys, [2]float64{x, y})
			p3ds = append(p3ds, p3d)
		}

		if _, dup := m.Images[id]; dup {
			return ts.errf("duplicate image id %d", id)
		}
		m.Images[id] = &Image{
			ID:         id,
			QVec:       qvec,
			TVec:       tvec,
			CameraID:   cameraID,
			Name:       name,
			XYs:        xys,
			Point3DIDs: p3ds,
		}
	}
	if err := ts.sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func readPoints3DText(fs fsutil.FileSystem, m *Model, path string) error {
	ts, closeFn, err := newTextScanner(fs, path)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		line, ok := ts.nextRecord()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			return ts.errf("point line has %d fields, want at least 8", len(fields))
		}
		if (len(fields)-8)%2 != 0 {
			return ts.errf("point track has odd field count %d", len(fields)-8)
		}

		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return ts.errf("bad point id %q", fields[0])
		}
		var xyz [3]float64
		for i := 0; i < 3; i++ {
			if xyz[i], err = strconv.ParseFloat(fields[1+i], 64); err != nil {
				return ts.errf("bad coordinate %q", fields[1+i])
			}
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			c, err := strconv.ParseUint(fields[4+i], 10, 8)
			if err != nil {
				return ts.errf("bad color channel %q", fields[4+i])
			}
			rgb[i] = uint8(c)
		}
		errVal, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return ts.errf("bad error value %q", fields[7])
		}

		n := (len(fields) - 8) / 2
		imageIDs := make([]uint64, 0, n)
		p2dIdxs := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			imgID, err := strconv.ParseUint(fields[8+2*i], 10, 64)
			if err != nil {
				return ts.errf("bad track image id %q", fields[8+2*i])
			}
			idx, err := strconv.ParseInt(fields[9+2*i], 10, 64)
			if err != nil {
				return ts.errf("bad track point2D index %q", fields[9+2*i])
			}
			imageIDs = append(imageIDs, imgID)
			p2dIdxs = append(p2dIdxs, idx)
		}

		if _, dup := m.Points3D[id]; dup {
			return ts.errf("duplicate point3D id %d", id)
		}
		m.Points3D[id] = &Point3D{
			ID:          id,
			XYZ:         xyz,
			RGB:         rgb,
			Error:       errVal,
			ImageIDs:    imageIDs,
			Point2DIdxs: p2dIdxs,
		}
	}
	if err := ts.sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
