package accel

import (
	"errors"
	"fmt"
)

var ErrBadSize = errors.New("Width and height must be positive")
var ErrFrameTooSmall = errors.New("YUV frame is smaller than width and height require")
var ErrOutputTooSmall = errors.New("RGB output buffer is smaller than width*height*3")
var ErrOddSize = errors.New("Width and height must be even")

// NV21PlaneSizes returns the number of bytes needed for the Y plane and for the interleaved
// chroma plane of a width x height frame.
// For even dimensions this is width*height and width*height/2. Odd dimensions round the
// last chroma row and column up, so that the kernel never reads past the chroma plane.
func NV21PlaneSizes(width, height int) (ySize, uvSize int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	ySize = width * height
	uvSize = ((height-1)/2)*width + 2*((width-1)/2) + 2
	return
}

// NV21FrameSize returns the size of a contiguous NV21 frame (Y plane followed by chroma plane)
func NV21FrameSize(width, height int) int {
	y, uv := NV21PlaneSizes(width, height)
	return y + uv
}

// RGBSize returns the size of a tightly packed 24-bit RGB image
func RGBSize(width, height int) int {
	return width * height * 3
}

// ConvertNV21 converts a contiguous NV21 frame into rgb.
// The chroma plane starts immediately after the width*height luma samples.
// Unlike NV21ToRGB, buffer sizes are validated before any pixel is touched.
func ConvertNV21(frame []byte, width, height int, rgb []byte) error {
	return convertSemiPlanar(frame, width, height, rgb, NV21ToRGB)
}

// ConvertNV12 is ConvertNV21 for frames with U before V
func ConvertNV12(frame []byte, width, height int, rgb []byte) error {
	return convertSemiPlanar(frame, width, height, rgb, NV12ToRGB)
}

func convertSemiPlanar(frame []byte, width, height int, rgb []byte, kernel func(width, height int, y, uv, rgb []byte)) error {
	if err := CheckNV21Frame(frame, width, height); err != nil {
		return err
	}
	if len(rgb) < RGBSize(width, height) {
		return fmt.Errorf("%w (%v < %v)", ErrOutputTooSmall, len(rgb), RGBSize(width, height))
	}
	ySize, _ := NV21PlaneSizes(width, height)
	kernel(width, height, frame[:ySize], frame[ySize:], rgb)
	return nil
}

// CheckNV21Frame returns an error if frame cannot hold a width x height NV21 image
func CheckNV21Frame(frame []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w (%v x %v)", ErrBadSize, width, height)
	}
	if need := NV21FrameSize(width, height); len(frame) < need {
		return fmt.Errorf("%w (%v < %v)", ErrFrameTooSmall, len(frame), need)
	}
	return nil
}
