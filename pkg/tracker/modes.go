package tracker

import (
	"fmt"
	"strings"
)

// Pixel layout of the images handed to DetectMarkers
type PixelFormat int

const (
	PixelFormatABGR   PixelFormat = 1
	PixelFormatBGRA   PixelFormat = 2
	PixelFormatBGR    PixelFormat = 3
	PixelFormatRGBA   PixelFormat = 4
	PixelFormatRGB    PixelFormat = 5
	PixelFormatRGB565 PixelFormat = 6
	PixelFormatLUM    PixelFormat = 7
)

type UndistortionMode int

const (
	UndistortionNone UndistortionMode = 0
	UndistortionStd  UndistortionMode = 1
	UndistortionLUT  UndistortionMode = 2
)

type MarkerMode int

const (
	MarkerModeTemplate MarkerMode = 0
	MarkerModeIDSimple MarkerMode = 1
	MarkerModeIDBCH    MarkerMode = 2
)

type PoseEstimator int

const (
	PoseEstimatorOriginal     PoseEstimator = 0
	PoseEstimatorOriginalCont PoseEstimator = 1
	PoseEstimatorRPP          PoseEstimator = 2
)

type ImageProcessingMode int

const (
	ImageProcessingHalfRes ImageProcessingMode = 0
	ImageProcessingFullRes ImageProcessingMode = 1
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatABGR:   "ABGR",
	PixelFormatBGRA:   "BGRA",
	PixelFormatBGR:    "BGR",
	PixelFormatRGBA:   "RGBA",
	PixelFormatRGB:    "RGB",
	PixelFormatRGB565: "RGB565",
	PixelFormatLUM:    "LUM",
}

var undistortionNames = map[UndistortionMode]string{
	UndistortionNone: "NONE",
	UndistortionStd:  "STD",
	UndistortionLUT:  "LUT",
}

var markerModeNames = map[MarkerMode]string{
	MarkerModeTemplate: "TEMPLATE",
	MarkerModeIDSimple: "ID_SIMPLE",
	MarkerModeIDBCH:    "ID_BCH",
}

var poseEstimatorNames = map[PoseEstimator]string{
	PoseEstimatorOriginal:     "ORIGINAL",
	PoseEstimatorOriginalCont: "ORIGINAL_CONT",
	PoseEstimatorRPP:          "RPP",
}

var imageProcessingNames = map[ImageProcessingMode]string{
	ImageProcessingHalfRes: "HALF_RES",
	ImageProcessingFullRes: "FULL_RES",
}

func (f PixelFormat) String() string         { return enumName(pixelFormatNames, f) }
func (m UndistortionMode) String() string    { return enumName(undistortionNames, m) }
func (m MarkerMode) String() string          { return enumName(markerModeNames, m) }
func (p PoseEstimator) String() string       { return enumName(poseEstimatorNames, p) }
func (m ImageProcessingMode) String() string { return enumName(imageProcessingNames, m) }

// Number of bytes per pixel of an image in this format
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatABGR, PixelFormatBGRA, PixelFormatRGBA:
		return 4
	case PixelFormatBGR, PixelFormatRGB:
		return 3
	case PixelFormatRGB565:
		return 2
	case PixelFormatLUM:
		return 1
	}
	return 0
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	return parseEnum(pixelFormatNames, "pixel format", s)
}

func ParseUndistortionMode(s string) (UndistortionMode, error) {
	return parseEnum(undistortionNames, "undistortion mode", s)
}

func ParseMarkerMode(s string) (MarkerMode, error) {
	return parseEnum(markerModeNames, "marker mode", s)
}

func ParsePoseEstimator(s string) (PoseEstimator, error) {
	return parseEnum(poseEstimatorNames, "pose estimator", s)
}

func ParseImageProcessingMode(s string) (ImageProcessingMode, error) {
	return parseEnum(imageProcessingNames, "image processing mode", s)
}

func enumName[T ~int](names map[T]string, v T) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("%d", int(v))
}

// Parsing is case insensitive, and accepts '-' in place of '_'
func parseEnum[T ~int](names map[T]string, what, s string) (T, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for v, n := range names {
		if n == norm {
			return v, nil
		}
	}
	return 0, fmt.Errorf("Unknown %v '%v'", what, s)
}
