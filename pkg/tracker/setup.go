package tracker

import "fmt"

// Construction parameters of a tracker
type Setup struct {
	Width           int `json:"width"`           // Camera image width
	Height          int `json:"height"`          // Camera image height
	MaxPatterns     int `json:"maxPatterns"`     // Maximum number of patterns detected in one image
	PatternWidth    int `json:"patternWidth"`    // Pattern resolution, in samples
	PatternHeight   int `json:"patternHeight"`   // Must equal PatternWidth
	PatternSamples  int `json:"patternSamples"`  // PatternWidth must be divisible by this
	MaxLoadPatterns int `json:"maxLoadPatterns"` // Maximum number of template patterns (0 for id markers only)
}

func DefaultSetup(width, height int) Setup {
	return Setup{
		Width:           width,
		Height:          height,
		MaxPatterns:     8,
		PatternWidth:    6,
		PatternHeight:   6,
		PatternSamples:  6,
		MaxLoadPatterns: 0,
	}
}

func (s *Setup) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: camera size %v x %v is invalid", ErrSetup, s.Width, s.Height)
	}
	if s.MaxPatterns <= 0 || s.PatternSamples <= 0 || s.MaxLoadPatterns < 0 {
		return fmt.Errorf("%w: pattern counts must be positive", ErrSetup)
	}
	if s.PatternWidth != s.PatternHeight || s.PatternWidth%s.PatternSamples != 0 {
		return fmt.Errorf("%w: failed to setup pattern parameters (%v x %v, %v samples)", ErrSetup, s.PatternWidth, s.PatternHeight, s.PatternSamples)
	}
	return nil
}

// Tracker configuration applied by Init
type InitOptions struct {
	NearClip             float32             `json:"nearClip"`
	FarClip              float32             `json:"farClip"`
	MarkerMode           MarkerMode          `json:"markerMode"`
	PatternWidth         float32             `json:"patternWidth"` // Physical marker size, in model units
	BorderWidth          float32             `json:"borderWidth"`  // Border thickness, as a fraction of PatternWidth
	PixelFormat          PixelFormat         `json:"pixelFormat"`
	Threshold            int                 `json:"threshold"`
	AutoThreshold        bool                `json:"autoThreshold"`
	AutoThresholdRetries int                 `json:"autoThresholdRetries"`
	Undistortion         UndistortionMode    `json:"undistortion"`
	LoadUndistortionLUT  bool                `json:"loadUndistortionLUT"`
	PoseEstimator        PoseEstimator       `json:"poseEstimator"`
	ImageProcessing      ImageProcessingMode `json:"imageProcessing"`
	Vignetting           *Vignetting         `json:"vignetting"` // nil to leave compensation off
}

// Vignetting compensation border sizes, in pixels
type Vignetting struct {
	Corners   int `json:"corners"`
	LeftRight int `json:"leftRight"`
	TopBottom int `json:"topBottom"`
}

func DefaultInitOptions() InitOptions {
	return InitOptions{
		NearClip:             1,
		FarClip:              1000,
		MarkerMode:           MarkerModeIDBCH,
		PatternWidth:         2,
		BorderWidth:          0.125,
		PixelFormat:          PixelFormatRGB,
		Threshold:            150,
		AutoThreshold:        true,
		AutoThresholdRetries: 2,
		Undistortion:         UndistortionStd,
		PoseEstimator:        PoseEstimatorRPP,
		ImageProcessing:      ImageProcessingHalfRes,
	}
}
