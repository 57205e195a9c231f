// Command model-report renders an interactive HTML report of a COLMAP
// sparse model using go-echarts: a top-down scatter of the point cloud
// colored by height, with camera centers overlaid.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/fsutil"
	"github.com/banshee-data/colmap.export/internal/pose"
)

func main() {
	dir := flag.String("dir", ".", "model directory")
	output := flag.String("o", "model.html", "output HTML path")
	maxPoints := flag.Int("max-points", 8000, "downsample the cloud to at most this many points")
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

	// Downsample by stride to keep the page light.
	stride := 1
	if len(model.Points3D) > *maxPoints {
		stride = int(math.Ceil(float64(len(model.Points3D)) / float64(*maxPoints)))
	}

	var (
		cloud   []opts.ScatterData
		minZ    = math.Inf(1)
		maxZ    = math.Inf(-1)
		i       int
		spanAbs float64
	)
	for _, pt := range model.Points3D {
		i++
		if i%stride != 0 {
			continue
		}
		x, y, z := pt.XYZ[0], pt.XYZ[1], pt.XYZ[2]
		cloud = append(cloud, opts.ScatterData{Value: []interface{}{x, y, z}})
		minZ = math.Min(minZ, z)
		maxZ = math.Max(maxZ, z)
		spanAbs = math.Max(spanAbs, math.Max(math.Abs(x), math.Abs(y)))
	}

	var cams []opts.ScatterData
	for _, img := range model.Images {
		c := pose.CameraCenter(img.QVec, img.TVec)
		cams = append(cams, opts.ScatterData{Value: []interface{}{c.X, c.Y, c.Z}})
		spanAbs = math.Max(spanAbs, math.Max(math.Abs(c.X), math.Abs(c.Y)))
	}
	pad := spanAbs * 1.1
	if pad == 0 {
		pad = 1
	}
	if len(cloud) == 0 {
		minZ, maxZ = 0, 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Sparse Model Report", Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Sparse model (top-down)",
			Subtitle: fmt.Sprintf("cameras=%d images=%d points=%d stride=%d",
				len(model.Cameras), len(model.Images), len(model.Points3D), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minZ),
			Max:        float32(maxZ),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", cloud, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("cameras", cams, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create report: %v", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}
	log.Printf("✓ Created: %s", *output)
}
