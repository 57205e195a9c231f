// Command model-plot renders a top-down (X/Y) scatter of a COLMAP sparse
// model to PNG: point cloud in grey, camera centers in red.
package main

import (
	"flag"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/fsutil"
	"github.com/banshee-data/colmap.export/internal/pose"
)

func main() {
	dir := flag.String("dir", ".", "model directory")
	output := flag.String("o", "model.png", "output PNG path")
	size := flag.Float64("size", 8, "plot size in inches")
	flag.Parse()

	fs := fsutil.OSFileSystem{}
	format, err := colmap.DetectFormat(fs, *dir)
	if err != nil {
		log.Fatal(err)
	}
	model, err := colmap.ReadFS(fs, *dir, format)
	if err != nil {
		log.Fatalf("read model: %v", err)
	}

	p := plot.New()
	p.Title.Text = "Sparse model (top-down)"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	pts := make(plotter.XYs, 0, len(model.Points3D))
	for _, pt := range model.Points3D {
		pts = append(pts, plotter.XY{X: pt.XYZ[0], Y: pt.XYZ[1]})
	}
	if len(pts) > 0 {
		cloud, err := plotter.NewScatter(pts)
		if err != nil {
			log.Fatalf("point scatter: %v", err)
		}
		cloud.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		cloud.GlyphStyle.Radius = vg.Points(1)
		p.Add(cloud)
		p.Legend.Add("points", cloud)
	}

	centers := make(plotter.XYs, 0, len(model.Images))
	for _, img := range model.Images {
		c := pose.CameraCenter(img.QVec, img.TVec)
		centers = append(centers, plotter.XY{X: c.X, Y: c.Y})
	}
	if len(centers) > 0 {
		cams, err := plotter.NewScatter(centers)
		if err != nil {
			log.Fatalf("camera scatter: %v", err)
		}
		cams.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		cams.GlyphStyle.Radius = vg.Points(3)
		p.Add(cams)
		p.Legend.Add("cameras", cams)
	}

	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, *output); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	log.Printf("✓ Created: %s (%d points, %d cameras)", *output, len(pts), len(centers))
}
