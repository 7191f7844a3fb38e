package main

import (
	"fmt"
	"os"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/implant/pkg/accel"
	"github.com/cyclopcam/implant/pkg/overlay"
	"github.com/cyclopcam/implant/pkg/poi"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/tracker/artkp"
	"github.com/cyclopcam/implant/pkg/wavefront"
	"github.com/cyclopcam/logs"
)

// One line summary of a detected marker.
// The camera position is "n/a" when the model-view matrix cannot be inverted.
func formatPose(p tracker.MarkerPose) string {
	camera := "n/a"
	if cam, err := p.ModelView.CameraPosition(); err == nil {
		camera = fmt.Sprintf("(%.1f, %.1f, %.1f)", cam.X, cam.Y, cam.Z)
	}
	return fmt.Sprintf("  id %3d  confidence %.2f  translation (%.1f, %.1f, %.1f)  camera %v",
		p.ID, p.Confidence, p.ModelView.At(0, 3), p.ModelView.At(1, 3), p.ModelView.At(2, 3), camera)
}

func readFrameRGB(filename string, width, height int, nv12 bool) (*cimg.Image, error) {
	frame, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	if nv12 {
		err = accel.ConvertNV12(frame, width, height, img.Pixels)
	} else {
		err = accel.ConvertNV21(frame, width, height, img.Pixels)
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return img, nil
}

func convertFile(input, output string, width, height int, nv12 bool) error {
	img, err := readFrameRGB(input, width, height, nv12)
	if err != nil {
		return err
	}
	return img.WriteJPEG(output, cimg.MakeCompressParams(cimg.Sampling444, 95, 0), 0644)
}

func encodeFile(input, output string) error {
	img, err := cimg.ReadFile(input)
	if err != nil {
		return err
	}
	nv, err := accel.RGBToNV21(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, nv.Bytes(), 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %v x %v NV21 frame (%v bytes)\n", nv.Width, nv.Height, len(nv.Y)+len(nv.UV))
	return nil
}

func detectFile(input string, width, height int, calibration string, patterns []string, overlayFile string) error {
	logger, err := logs.NewLog()
	if err != nil {
		return err
	}
	img, err := readFrameRGB(input, width, height, false)
	if err != nil {
		return err
	}

	setup := tracker.DefaultSetup(width, height)
	opt := tracker.DefaultInitOptions()
	if len(patterns) != 0 {
		setup.MaxLoadPatterns = len(patterns)
		opt.MarkerMode = tracker.MarkerModeTemplate
	}
	trk, err := tracker.Open(logger, artkp.Open, setup)
	if err != nil {
		return err
	}
	defer trk.Close()
	if err := trk.Init(calibration, opt); err != nil {
		return err
	}
	for _, p := range patterns {
		id, err := trk.AddPattern(p)
		if err != nil {
			return err
		}
		fmt.Printf("Pattern %v: %v\n", id, p)
	}

	poses, err := trk.Detect(img.Pixels)
	if err != nil {
		return err
	}
	fmt.Printf("Found %v markers\n", len(poses))
	for _, p := range poses {
		fmt.Println(formatPose(p))
	}

	if overlayFile != "" {
		drawn, err := overlay.Draw(img, poses, nil, overlay.DefaultOptions())
		if err != nil {
			return err
		}
		jpg, err := overlay.EncodeJPEG(drawn, 90)
		if err != nil {
			return err
		}
		return os.WriteFile(overlayFile, jpg, 0644)
	}
	return nil
}

func describeOBJ(input string) error {
	m, err := wavefront.Load(input)
	if err != nil {
		return err
	}
	lo, hi := m.Bounds()
	fmt.Printf("Vertices:  %v\n", len(m.Vertices))
	fmt.Printf("TexCoords: %v\n", len(m.TexCoords))
	fmt.Printf("Normals:   %v\n", len(m.Normals))
	fmt.Printf("Faces:     %v\n", len(m.Faces))
	fmt.Printf("Indices:   %v (%v triangles)\n", m.IndexCount(), m.IndexCount()/3)
	fmt.Printf("Bounds:    (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	return nil
}

func listPOIs(input string, lat, lon, radius float64) error {
	groups, err := poi.LoadKMLFile(input)
	if err != nil {
		return err
	}
	for _, p := range poi.Nearby(groups, poi.Location{Latitude: lat, Longitude: lon}, radius) {
		fmt.Printf("%-8v %5.0f°  %-30v %v\n", p.DistanceText, p.Bearing, p.Name, p.Group)
	}
	return nil
}
