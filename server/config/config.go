package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/implant/pkg/tracker"
)

const DefaultFilename = "implant.json"

type Config struct {
	Listen               string       `json:"listen"`               // HTTP listen address, eg ":8080"
	Database             dbh.DBConfig `json:"database"`             // Marker registry. Defaults to sqlite in DataPath
	DataPath             string       `json:"dataPath"`             // Directory for the sqlite database
	Calibration          string       `json:"calibration"`          // Camera calibration file given to the tracker
	FrameWidth           int          `json:"frameWidth"`           // Default camera frame width, for sessions that don't specify one
	FrameHeight          int          `json:"frameHeight"`          // Default camera frame height
	ChromaOrder          string       `json:"chromaOrder"`          // "nv21" (V first, Android default) or "nv12"
	MaxFPS               float64      `json:"maxFPS"`               // Cap on frames processed per second, per session
	ForgetAfterMS        int          `json:"forgetAfterMS"`        // A marker unseen for this long is no longer visible
	MaxSessions          int          `json:"maxSessions"`          // Maximum number of concurrent tracker sessions
	NearClip             float32      `json:"nearClip"`             // Projection near plane
	FarClip              float32      `json:"farClip"`              // Projection far plane
	MarkerMode           string       `json:"markerMode"`           // TEMPLATE, ID_SIMPLE, ID_BCH
	PatternWidth         float32      `json:"patternWidth"`         // Physical marker size, in model units
	BorderWidth          float32      `json:"borderWidth"`          // Border thickness, as a fraction of PatternWidth
	Threshold            int          `json:"threshold"`            // Binarization threshold (0..255)
	DisableAutoThreshold bool         `json:"disableAutoThreshold"` // Auto threshold is on unless this is set
	AutoThresholdRetries int          `json:"autoThresholdRetries"`
	Undistortion         string       `json:"undistortion"`    // NONE, STD, LUT
	PoseEstimator        string       `json:"poseEstimator"`   // ORIGINAL, ORIGINAL_CONT, RPP
	ImageProcessing      string       `json:"imageProcessing"` // HALF_RES, FULL_RES
	POIFile              string       `json:"poiFile"`         // KML file of points of interest
	ModelDir             string       `json:"modelDir"`        // Relative marker model files are resolved from here
}

func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

// SetDefaults fills in every field that was left empty
func (c *Config) SetDefaults() {
	def := tracker.DefaultInitOptions()
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DataPath == "" {
		c.DataPath = "data"
	}
	if c.Database.Driver == "" {
		c.Database = dbh.MakeSqliteConfig(filepath.Join(c.DataPath, "markers.sqlite"))
	}
	if c.FrameWidth == 0 || c.FrameHeight == 0 {
		c.FrameWidth = 320
		c.FrameHeight = 240
	}
	if c.ChromaOrder == "" {
		c.ChromaOrder = "nv21"
	}
	if c.MaxFPS == 0 {
		c.MaxFPS = 10
	}
	if c.ForgetAfterMS == 0 {
		c.ForgetAfterMS = 1000
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 8
	}
	if c.NearClip == 0 {
		c.NearClip = def.NearClip
	}
	if c.FarClip == 0 {
		c.FarClip = def.FarClip
	}
	if c.MarkerMode == "" {
		c.MarkerMode = def.MarkerMode.String()
	}
	if c.PatternWidth == 0 {
		c.PatternWidth = def.PatternWidth
	}
	if c.BorderWidth == 0 {
		c.BorderWidth = def.BorderWidth
	}
	if c.Threshold == 0 {
		c.Threshold = def.Threshold
	}
	if c.AutoThresholdRetries == 0 {
		c.AutoThresholdRetries = def.AutoThresholdRetries
	}
	if c.Undistortion == "" {
		c.Undistortion = def.Undistortion.String()
	}
	if c.PoseEstimator == "" {
		c.PoseEstimator = def.PoseEstimator.String()
	}
	if c.ImageProcessing == "" {
		c.ImageProcessing = def.ImageProcessing.String()
	}
}

func (c *Config) Validate() error {
	if _, err := c.InitOptions(); err != nil {
		return err
	}
	if !c.NV12() && strings.ToLower(c.ChromaOrder) != "nv21" {
		return fmt.Errorf("Unknown chroma order '%v'", c.ChromaOrder)
	}
	if c.FarClip <= c.NearClip {
		return fmt.Errorf("Far clip (%v) must be greater than near clip (%v)", c.FarClip, c.NearClip)
	}
	if c.MaxFPS < 0 {
		return fmt.Errorf("maxFPS may not be negative")
	}
	return nil
}

// NV12 is true if frames arrive with U before V
func (c *Config) NV12() bool {
	return strings.ToLower(c.ChromaOrder) == "nv12"
}

// InitOptions converts the tracker fields into tracker.InitOptions
func (c *Config) InitOptions() (tracker.InitOptions, error) {
	opt := tracker.DefaultInitOptions()
	var err error
	if opt.MarkerMode, err = tracker.ParseMarkerMode(c.MarkerMode); err != nil {
		return opt, err
	}
	if opt.Undistortion, err = tracker.ParseUndistortionMode(c.Undistortion); err != nil {
		return opt, err
	}
	if opt.PoseEstimator, err = tracker.ParsePoseEstimator(c.PoseEstimator); err != nil {
		return opt, err
	}
	if opt.ImageProcessing, err = tracker.ParseImageProcessingMode(c.ImageProcessing); err != nil {
		return opt, err
	}
	if c.Threshold < 0 || c.Threshold > 255 {
		return opt, fmt.Errorf("Threshold %v is out of range", c.Threshold)
	}
	opt.NearClip = c.NearClip
	opt.FarClip = c.FarClip
	opt.PatternWidth = c.PatternWidth
	opt.BorderWidth = c.BorderWidth
	opt.Threshold = c.Threshold
	opt.AutoThreshold = !c.DisableAutoThreshold
	opt.AutoThresholdRetries = c.AutoThresholdRetries
	return opt, nil
}

// ResolveModel returns the path of a marker's model file
func (c *Config) ResolveModel(filename string) string {
	if filename == "" || filepath.IsAbs(filename) || c.ModelDir == "" {
		return filename
	}
	return filepath.Join(c.ModelDir, filename)
}
