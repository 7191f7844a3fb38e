// Package overlay draws detected marker poses on top of camera images
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/wavefront"
	"github.com/fogleman/gg"
)

type Options struct {
	MarkerSize float32 // Edge length of the marker square, in model units
	LineWidth  float64
	Labels     bool // Draw the marker id and confidence
}

func DefaultOptions() Options {
	return Options{
		MarkerSize: 2,
		LineWidth:  2,
		Labels:     true,
	}
}

// Draw returns a copy of img (which must be RGB) with the wireframe of every pose drawn onto it.
// If models has an entry for a marker id, that model is drawn. Otherwise the outline of the marker square is drawn.
func Draw(img *cimg.Image, poses []tracker.MarkerPose, models map[int]*wavefront.Model, opt Options) (*cimg.Image, error) {
	if img.Format != cimg.PixelFormatRGB {
		return nil, fmt.Errorf("Overlay requires an RGB image")
	}
	rgba := toRGBA(img)
	dc := gg.NewContextForRGBA(rgba)
	dc.SetLineWidth(opt.LineWidth)
	vp := geom.Viewport{Width: float32(img.Width), Height: float32(img.Height)}

	for _, pose := range poses {
		mvp := pose.Projection.Mul(pose.ModelView)
		model := models[pose.ID]
		if model == nil {
			model = markerSquare(opt.MarkerSize)
		}
		screen := make([]geom.Vec2, len(model.Vertices))
		visible := make([]bool, len(model.Vertices))
		onScreen := []geom.Vec2{}
		for i, v := range model.Vertices {
			screen[i], visible[i] = geom.Project(mvp, v, vp)
			if visible[i] {
				onScreen = append(onScreen, screen[i])
			}
		}
		for _, e := range model.Edges() {
			if !visible[e[0]] || !visible[e[1]] {
				continue
			}
			c := model.Colors[e[0]]
			dc.SetRGB(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
			a, b := screen[e[0]], screen[e[1]]
			dc.DrawLine(float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
			dc.Stroke()
		}
		if opt.Labels && len(onScreen) != 0 {
			r := geom.BoundingRect(onScreen)
			dc.SetColor(color.RGBA{255, 255, 0, 255})
			dc.DrawString(fmt.Sprintf("%v (%.2f)", pose.ID, pose.Confidence), float64(r.X), float64(r.Y-4))
		}
	}
	return fromRGBA(rgba), nil
}

// The outline of a marker, which lies in the Z=0 plane of its model space
func markerSquare(size float32) *wavefront.Model {
	h := size / 2
	green := color.RGBA{0, 255, 0, 255}
	return &wavefront.Model{
		Vertices: []geom.Vec3{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}},
		Colors:   []color.RGBA{green, green, green, green},
		Faces:    []wavefront.Face{{Vertices: []int{0, 1, 2, 3}}},
	}
}

// EncodeJPEG compresses img with 4:2:0 chroma subsampling
func EncodeJPEG(img *cimg.Image, quality int) ([]byte, error) {
	return cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling420, quality, 0))
}

func toRGBA(img *cimg.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride : y*img.Stride+img.Width*3]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+img.Width*4]
		for x := 0; x < img.Width; x++ {
			out[x*4] = src[x*3]
			out[x*4+1] = src[x*3+1]
			out[x*4+2] = src[x*3+2]
			out[x*4+3] = 255
		}
	}
	return dst
}

func fromRGBA(src *image.RGBA) *cimg.Image {
	width := src.Rect.Dx()
	height := src.Rect.Dy()
	dst := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+width*4]
		out := dst.Pixels[y*dst.Stride : y*dst.Stride+width*3]
		for x := 0; x < width; x++ {
			out[x*3] = in[x*4]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4+2]
		}
	}
	return dst
}
