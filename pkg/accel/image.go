package accel

import (
	"fmt"

	"github.com/bmharper/cimg/v2"
)

// NV21 image (Y plane, followed by interleaved V,U pairs at quarter resolution)
type NV21Image struct {
	Width  int
	Height int
	Y      []byte
	UV     []byte
}

// Create a new tightly packed NV21 image, initialized to black
func NewNV21Image(width, height int) *NV21Image {
	ySize, uvSize := NV21PlaneSizes(width, height)
	img := &NV21Image{
		Width:  width,
		Height: height,
		Y:      make([]byte, ySize),
		UV:     make([]byte, uvSize),
	}
	for i := range img.Y {
		img.Y[i] = 16
	}
	for i := range img.UV {
		img.UV[i] = 128
	}
	return img
}

// Wrap a contiguous NV21 frame, without copying it.
// The returned image aliases frame, so it is only valid while the caller keeps frame unchanged.
func WrapNV21(frame []byte, width, height int) (*NV21Image, error) {
	if err := CheckNV21Frame(frame, width, height); err != nil {
		return nil, err
	}
	ySize, uvSize := NV21PlaneSizes(width, height)
	return &NV21Image{
		Width:  width,
		Height: height,
		Y:      frame[:ySize],
		UV:     frame[ySize : ySize+uvSize],
	}, nil
}

// Transcode from NV21 to RGB
func (x *NV21Image) ToCImageRGB() *cimg.Image {
	dst := cimg.NewImage(x.Width, x.Height, cimg.PixelFormatRGB)
	x.CopyToCImageRGB(dst)
	return dst
}

// Transcode from NV21 to RGB
// The target image must be the same size as the source, and RGB format
func (x *NV21Image) CopyToCImageRGB(dst *cimg.Image) {
	if dst.Width != x.Width || dst.Height != x.Height || dst.Format != cimg.PixelFormatRGB {
		panic("Destination image must be the same size as the source image, and PixelFormatRGB")
	}
	if dst.Stride == x.Width*3 {
		NV21ToRGB(x.Width, x.Height, x.Y, x.UV, dst.Pixels)
		return
	}
	tmp := make([]byte, RGBSize(x.Width, x.Height))
	NV21ToRGB(x.Width, x.Height, x.Y, x.UV, tmp)
	for i := 0; i < x.Height; i++ {
		copy(dst.Pixels[i*dst.Stride:], tmp[i*x.Width*3:(i+1)*x.Width*3])
	}
}

// Returns the frame as a single contiguous buffer (Y plane followed by UV plane)
func (x *NV21Image) Bytes() []byte {
	b := make([]byte, 0, len(x.Y)+len(x.UV))
	b = append(b, x.Y...)
	b = append(b, x.UV...)
	return b
}

// Clone into a tightly packed NV21 image
func (x *NV21Image) Clone() *NV21Image {
	return &NV21Image{
		Width:  x.Width,
		Height: x.Height,
		Y:      append([]byte(nil), x.Y...),
		UV:     append([]byte(nil), x.UV...),
	}
}

// Encode an RGB image into NV21, using BT.601 studio swing coefficients.
// Chroma is the average of each 2x2 block.
// Width and height must be even.
func RGBToNV21(img *cimg.Image) (*NV21Image, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w (%v x %v)", ErrBadSize, img.Width, img.Height)
	}
	if img.Width%2 != 0 || img.Height%2 != 0 {
		return nil, fmt.Errorf("%w (%v x %v)", ErrOddSize, img.Width, img.Height)
	}
	if img.Format != cimg.PixelFormatRGB && img.Format != cimg.PixelFormatRGBA {
		return nil, fmt.Errorf("RGBToNV21 needs an RGB or RGBA image")
	}
	nchan := img.NChan()
	dst := NewNV21Image(img.Width, img.Height)
	w := img.Width
	for i := 0; i < img.Height; i += 2 {
		for j := 0; j < w; j += 2 {
			sumU := 0
			sumV := 0
			for dy := 0; dy < 2; dy++ {
				row := img.Pixels[(i+dy)*img.Stride:]
				for dx := 0; dx < 2; dx++ {
					p := row[(j+dx)*nchan:]
					r, g, b := int(p[0]), int(p[1]), int(p[2])
					dst.Y[(i+dy)*w+j+dx] = byte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
					sumU += ((-38*r - 74*g + 112*b + 128) >> 8) + 128
					sumV += ((112*r - 94*g - 18*b + 128) >> 8) + 128
				}
			}
			c := (i/2)*w + j
			dst.UV[c] = byte((sumV + 2) / 4)
			dst.UV[c+1] = byte((sumU + 2) / 4)
		}
	}
	return dst, nil
}
