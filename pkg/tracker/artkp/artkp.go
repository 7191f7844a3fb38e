//go:build artoolkitplus

package artkp

// #cgo CXXFLAGS: -std=c++11 -O2
// #cgo LDFLAGS: -lARToolKitPlus -lstdc++
// #include <stdlib.h>
// #include "artkp.h"
import "C"
import (
	"errors"
	"unsafe"

	"github.com/cyclopcam/implant/pkg/tracker"
)

const Available = true

// Backend wraps one ARToolKitPlus::TrackerSingleMarker
type Backend struct {
	handle      unsafe.Pointer
	maxPatterns int
	ids         []C.int
}

// Open creates a native tracker. It satisfies tracker.Opener.
func Open(setup tracker.Setup) (tracker.Backend, error) {
	b := &Backend{
		maxPatterns: setup.MaxPatterns,
		ids:         make([]C.int, setup.MaxPatterns),
	}
	err := cError(C.ArtkpCreate(C.int(setup.Width), C.int(setup.Height), C.int(setup.MaxPatterns),
		C.int(setup.PatternWidth), C.int(setup.PatternHeight), C.int(setup.PatternSamples), C.int(setup.MaxLoadPatterns), &b.handle))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) Close() {
	if b.handle != nil {
		C.ArtkpDestroy(b.handle)
		b.handle = nil
	}
}

func (b *Backend) Init(calibFile string, nearClip, farClip float32) bool {
	cFile := C.CString(calibFile)
	defer C.free(unsafe.Pointer(cFile))
	return C.ArtkpInit(b.handle, cFile, C.float(nearClip), C.float(farClip)) != 0
}

func (b *Backend) ChangeCameraSize(width, height int) {
	C.ArtkpChangeCameraSize(b.handle, C.int(width), C.int(height))
}

func (b *Backend) SetPixelFormat(format tracker.PixelFormat) bool {
	return C.ArtkpSetPixelFormat(b.handle, C.int(format)) != 0
}

func (b *Backend) BitsPerPixel() int {
	return int(C.ArtkpBitsPerPixel(b.handle))
}

func (b *Backend) SetPoseEstimator(estimator tracker.PoseEstimator) bool {
	return C.ArtkpSetPoseEstimator(b.handle, C.int(estimator)) != 0
}

func (b *Backend) SetMarkerMode(mode tracker.MarkerMode) {
	C.ArtkpSetMarkerMode(b.handle, C.int(mode))
}

func (b *Backend) SetImageProcessingMode(mode tracker.ImageProcessingMode) {
	C.ArtkpSetImageProcessingMode(b.handle, C.int(mode))
}

func (b *Backend) SetThreshold(threshold int) {
	C.ArtkpSetThreshold(b.handle, C.int(threshold))
}

func (b *Backend) Threshold() int {
	return int(C.ArtkpThreshold(b.handle))
}

func (b *Backend) ActivateAutoThreshold(enable bool) {
	C.ArtkpActivateAutoThreshold(b.handle, cBool(enable))
}

func (b *Backend) IsAutoThresholdActivated() bool {
	return C.ArtkpIsAutoThresholdActivated(b.handle) != 0
}

func (b *Backend) SetNumAutoThresholdRetries(retries int) {
	C.ArtkpSetNumAutoThresholdRetries(b.handle, C.int(retries))
}

func (b *Backend) ActivateVignettingCompensation(enable bool, corners, leftRight, topBottom int) {
	C.ArtkpActivateVignettingCompensation(b.handle, cBool(enable), C.int(corners), C.int(leftRight), C.int(topBottom))
}

func (b *Backend) SetUndistortionMode(mode tracker.UndistortionMode) {
	C.ArtkpSetUndistortionMode(b.handle, C.int(mode))
}

func (b *Backend) SetLoadUndistortionLUT(enable bool) {
	C.ArtkpSetLoadUndistortionLUT(b.handle, cBool(enable))
}

func (b *Backend) SetPatternWidth(width float32) {
	C.ArtkpSetPatternWidth(b.handle, C.float(width))
}

func (b *Backend) SetBorderWidth(width float32) {
	C.ArtkpSetBorderWidth(b.handle, C.float(width))
}

func (b *Backend) AddPattern(filename string) int {
	cFile := C.CString(filename)
	defer C.free(unsafe.Pointer(cFile))
	return int(C.ArtkpAddPattern(b.handle, cFile))
}

// Calc passes the Go image buffer directly to the tracker. cgo keeps it pinned
// for the duration of the call, and the tracker does not retain it.
func (b *Backend) Calc(image []byte) []int {
	if len(image) == 0 || b.maxPatterns == 0 {
		return nil
	}
	n := int(C.ArtkpCalc(b.handle, (*C.uint8_t)(unsafe.Pointer(&image[0])), &b.ids[0], C.int(len(b.ids))))
	n = min(n, len(b.ids))
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = int(b.ids[i])
	}
	return ids
}

func (b *Backend) SelectBestMarkerByCf() int {
	return int(C.ArtkpSelectBestMarkerByCf(b.handle))
}

func (b *Backend) SelectDetectedMarker(id int) {
	C.ArtkpSelectDetectedMarker(b.handle, C.int(id))
}

func (b *Backend) Confidence() float32 {
	return float32(C.ArtkpConfidence(b.handle))
}

func (b *Backend) ModelViewMatrix() []float32 {
	var m [16]C.float
	if C.ArtkpModelViewMatrix(b.handle, &m[0]) == 0 {
		return nil
	}
	return toFloats(m)
}

func (b *Backend) ProjectionMatrix() []float32 {
	var m [16]C.float
	if C.ArtkpProjectionMatrix(b.handle, &m[0]) == 0 {
		return nil
	}
	return toFloats(m)
}

func toFloats(m [16]C.float) []float32 {
	r := make([]float32, 16)
	for i := range m {
		r[i] = float32(m[i])
	}
	return r
}

func cBool(v bool) C.int {
	if v {
		return 1
	}
	return 0
}

// Consume a C heap allocated char* and return it as a Go error.
// Before returning, free the C char*.
// If the input is NULL, then return nil.
func cError(cerr *C.char) error {
	if cerr != nil {
		err := errors.New(C.GoString(cerr))
		C.free(unsafe.Pointer(cerr))
		return err
	}
	return nil
}
