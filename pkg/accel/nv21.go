package accel

import "github.com/cyclopcam/implant/pkg/gen"

// accel contains the pixel format conversions that sit on the per-frame hot path.

// Largest fixed-point channel value before the final shift (255.99 * 1024)
const maxFixedChannel = 262143

// NV21ToRGB converts a YUV 4:2:0 semi-planar image into tightly packed 24-bit RGB.
// y holds width*height luma samples. uv holds one chroma pair per 2x2 luma block, with
// V before U (NV21, the default Android camera preview format). Chroma rows are indexed
// with a stride of width bytes.
// rgb receives width*height*3 bytes, in R,G,B order.
// The caller must size the buffers (see NV21PlaneSizes). Short buffers panic.
func NV21ToRGB(width, height int, y, uv, rgb []byte) {
	yuv420spToRGB(width, height, y, uv, rgb, 0, 1)
}

// NV12ToRGB is identical to NV21ToRGB, except that the chroma pairs are stored U before V.
func NV12ToRGB(width, height int, y, uv, rgb []byte) {
	yuv420spToRGB(width, height, y, uv, rgb, 1, 0)
}

func yuv420spToRGB(width, height int, y, uv, rgb []byte, vOffset, uOffset int) {
	out := 0
	for i := 0; i < height; i++ {
		yRow := y[i*width : i*width+width]
		uvRow := (i / 2) * width
		for j := 0; j < width; j++ {
			c := uvRow + 2*(j/2)
			nY := int(yRow[j]) - 16
			nV := int(uv[c+vOffset]) - 128
			nU := int(uv[c+uOffset]) - 128
			if nY < 0 {
				nY = 0
			}

			nB := 1192*nY + 2066*nU
			nG := 1192*nY - 833*nV - 400*nU
			nR := 1192*nY + 1634*nV

			rgb[out] = fixedToByte(nR)
			rgb[out+1] = fixedToByte(nG)
			rgb[out+2] = fixedToByte(nB)
			out += 3
		}
	}
}

func fixedToByte(v int) byte {
	return byte((gen.Clamp(v, 0, maxFixedChannel) >> 10) & 0xff)
}
