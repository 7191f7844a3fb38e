package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/tracker/artkp"
	"github.com/cyclopcam/implant/pkg/tracker/trackertest"
	"github.com/cyclopcam/implant/server"
	"github.com/cyclopcam/implant/server/config"
	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"
)

func check(err error) {
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("implant", "Marker based augmented reality server and tools")

	serveCmd := parser.NewCommand("serve", "Run the tracking server")
	serveConfig := serveCmd.String("c", "config", &argparse.Options{Help: "Configuration file", Default: config.DefaultFilename})
	serveListen := serveCmd.String("l", "listen", &argparse.Options{Help: "Override the listen address (eg :8080)", Default: ""})
	serveCalib := serveCmd.String("", "calibration", &argparse.Options{Help: "Override the camera calibration file", Default: ""})
	serveFake := serveCmd.Flag("", "fake-tracker", &argparse.Options{Help: "Use an in-memory tracker that detects nothing (for development without ARToolKitPlus)", Default: false})

	convertCmd := parser.NewCommand("convert", "Convert a raw NV21 frame to JPEG")
	convertIn := convertCmd.String("i", "input", &argparse.Options{Help: "NV21 file", Required: true})
	convertOut := convertCmd.String("o", "output", &argparse.Options{Help: "JPEG file", Required: true})
	convertWidth := convertCmd.Int("w", "width", &argparse.Options{Help: "Frame width", Required: true})
	convertHeight := convertCmd.Int("H", "height", &argparse.Options{Help: "Frame height", Required: true})
	convertNV12 := convertCmd.Flag("", "nv12", &argparse.Options{Help: "Chroma is U,V instead of V,U", Default: false})

	encodeCmd := parser.NewCommand("encode", "Encode an image file into a raw NV21 frame")
	encodeIn := encodeCmd.String("i", "input", &argparse.Options{Help: "JPEG or PNG file", Required: true})
	encodeOut := encodeCmd.String("o", "output", &argparse.Options{Help: "NV21 file", Required: true})

	detectCmd := parser.NewCommand("detect", "Run the native tracker on a raw NV21 frame")
	detectIn := detectCmd.String("i", "input", &argparse.Options{Help: "NV21 file", Required: true})
	detectWidth := detectCmd.Int("w", "width", &argparse.Options{Help: "Frame width", Required: true})
	detectHeight := detectCmd.Int("H", "height", &argparse.Options{Help: "Frame height", Required: true})
	detectCalib := detectCmd.String("", "calibration", &argparse.Options{Help: "Camera calibration file", Required: true})
	detectPatterns := detectCmd.StringList("p", "pattern", &argparse.Options{Help: "Template pattern file (switches to template markers)"})
	detectOverlay := detectCmd.String("o", "overlay", &argparse.Options{Help: "Write a JPEG with the detected markers drawn on it", Default: ""})

	objCmd := parser.NewCommand("obj", "Load a Wavefront OBJ model and print a summary")
	objIn := objCmd.String("i", "input", &argparse.Options{Help: "OBJ file", Required: true})

	poisCmd := parser.NewCommand("pois", "List points of interest from a KML file, nearest first")
	poisIn := poisCmd.String("i", "input", &argparse.Options{Help: "KML file", Required: true})
	poisLat := poisCmd.Float("", "lat", &argparse.Options{Help: "Latitude of the observer", Required: true})
	poisLon := poisCmd.Float("", "lon", &argparse.Options{Help: "Longitude of the observer", Required: true})
	poisRadius := poisCmd.Float("r", "radius", &argparse.Options{Help: "Maximum distance in meters (0 for all)", Default: 0.0})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	switch {
	case serveCmd.Happened():
		os.Exit(serve(*serveConfig, *serveListen, *serveCalib, *serveFake))
	case convertCmd.Happened():
		check(convertFile(*convertIn, *convertOut, *convertWidth, *convertHeight, *convertNV12))
	case encodeCmd.Happened():
		check(encodeFile(*encodeIn, *encodeOut))
	case detectCmd.Happened():
		check(detectFile(*detectIn, *detectWidth, *detectHeight, *detectCalib, *detectPatterns, *detectOverlay))
	case objCmd.Happened():
		check(describeOBJ(*objIn))
	case poisCmd.Happened():
		check(listPOIs(*poisIn, *poisLat, *poisLon, *poisRadius))
	}
}

func serve(configFile, listen, calibration string, fakeTracker bool) int {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if calibration != "" {
		cfg.Calibration = calibration
	}

	var opener tracker.Opener = artkp.Open
	if fakeTracker {
		logger.Warnf("Using fake tracker. No markers will be detected.")
		opener = (&trackertest.Factory{}).Open
	} else if !artkp.Available {
		logger.Errorf("%v", artkp.ErrNotBuilt)
		return 1
	}

	srv, err := server.NewServer(logger, cfg, opener)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenHTTP)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	})

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := g.Wait(); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}
