// Command model-info prints a summary of a COLMAP sparse model directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/fsutil"
	"github.com/banshee-data/colmap.export/internal/pose"
)

func main() {
	dir := flag.String("dir", ".", "model directory (containing cameras.*, images.*, points3D.*)")
	formatName := flag.String("format", "", "model encoding: txt or bin (default: auto-detect)")
	flag.Parse()

	fs := fsutil.OSFileSystem{}
	var format colmap.Format
	var err error
	if *formatName == "" {
		format, err = colmap.DetectFormat(fs, *dir)
	} else {
		format, err = colmap.ParseFormat(*formatName)
	}
	if err != nil {
		log.Fatal(err)
	}

	model, err := colmap.ReadFS(fs, *dir, format)
	if err != nil {
		log.Fatalf("read model: %v", err)
	}

	fmt.Printf("model %s (%s encoding)\n", *dir, format)
	fmt.Printf("  cameras:  %d\n", len(model.Cameras))
	fmt.Printf("  images:   %d\n", len(model.Images))
	fmt.Printf("  points3D: %d\n", len(model.Points3D))

	imagesPerCamera := make(map[uint64]int)
	for _, img := range model.Images {
		imagesPerCamera[img.CameraID]++
	}

	camIDs := make([]uint64, 0, len(model.Cameras))
	for id := range model.Cameras {
		camIDs = append(camIDs, id)
	}
	sort.Slice(camIDs, func(i, j int) bool { return camIDs[i] < camIDs[j] })

	for _, id := range camIDs {
		cam := model.Cameras[id]
		fmt.Printf("  camera %d: %s %dx%d, %d images\n",
			cam.ID, cam.Model, cam.Width, cam.Height, imagesPerCamera[id])
	}

	imgIDs := make([]uint64, 0, len(model.Images))
	for id := range model.Images {
		imgIDs = append(imgIDs, id)
	}
	sort.Slice(imgIDs, func(i, j int) bool { return imgIDs[i] < imgIDs[j] })

	for _, id := range imgIDs {
		img := model.Images[id]
		c := pose.CameraCenter(img.QVec, img.TVec)
		fmt.Printf("  image %d: %s camera=%d center=(%.3f, %.3f, %.3f) obs=%d\n",
			img.ID, img.Name, img.CameraID, c.X, c.Y, c.Z, len(img.XYs))
	}
}
