// Package trackertest provides an in-memory tracker backend, for testing code that drives a
// tracker without the native library.
package trackertest

import (
	"sync"

	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/tracker"
)

// A marker that the fake can "see"
type Marker struct {
	Confidence float32
	ModelView  geom.Matrix4
}

// Fake is a scriptable tracker.Backend.
// Exported fields may be read after the tracker has been used, but must be changed
// through the setter methods while a tracker is running.
type Fake struct {
	lock sync.Mutex

	Setup          tracker.Setup
	RejectCalib    bool // If true, Init fails
	NilMatrices    bool // If true, matrix accessors return nil
	CalibFile      string
	NearClip       float32
	FarClip        float32
	PixelFormat    tracker.PixelFormat
	PoseEstimator  tracker.PoseEstimator
	MarkerMode     tracker.MarkerMode
	ImageProc      tracker.ImageProcessingMode
	Undistortion   tracker.UndistortionMode
	LoadLUT        bool
	ThresholdValue int
	AutoThreshold  bool
	AutoRetries    int
	Vignetting     bool
	PatternWidth   float32
	BorderWidth    float32
	Patterns       []string
	Markers        map[int]Marker
	Visible        []int
	Projection     geom.Matrix4
	CalcCalls      int
	LastImageSize  int
	Closed         bool

	// If not nil, Calc returns the result of Detector instead of Visible
	Detector func(image []byte) []int

	selected int
}

func NewFake(setup tracker.Setup) *Fake {
	return &Fake{
		Setup:          setup,
		Markers:        map[int]Marker{},
		ThresholdValue: 100,
		Projection:     DefaultProjection(),
		selected:       -1,
	}
}

// A simple perspective projection, with the camera looking down -Z
func DefaultProjection() geom.Matrix4 {
	var p geom.Matrix4
	p.Set(0, 0, 2)
	p.Set(1, 1, 2)
	p.Set(2, 2, -1)
	p.Set(2, 3, -2)
	p.Set(3, 2, -1)
	return p
}

// Add a marker, and make it visible
func (f *Fake) Show(id int, confidence float32, modelView geom.Matrix4) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Markers[id] = Marker{Confidence: confidence, ModelView: modelView}
	for _, v := range f.Visible {
		if v == id {
			return
		}
	}
	f.Visible = append(f.Visible, id)
}

// Make a marker invisible
func (f *Fake) Hide(id int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i, v := range f.Visible {
		if v == id {
			f.Visible = append(f.Visible[:i], f.Visible[i+1:]...)
			return
		}
	}
}

func (f *Fake) SetNilMatrices(v bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.NilMatrices = v
}

func (f *Fake) Init(calibFile string, nearClip, farClip float32) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.RejectCalib || calibFile == "" {
		return false
	}
	f.CalibFile = calibFile
	f.NearClip = nearClip
	f.FarClip = farClip
	return true
}

func (f *Fake) ChangeCameraSize(width, height int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Setup.Width = width
	f.Setup.Height = height
}

func (f *Fake) SetPixelFormat(format tracker.PixelFormat) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if format.BytesPerPixel() == 0 {
		return false
	}
	f.PixelFormat = format
	return true
}

func (f *Fake) BitsPerPixel() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.PixelFormat.BytesPerPixel() * 8
}

func (f *Fake) SetPoseEstimator(estimator tracker.PoseEstimator) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.PoseEstimator = estimator
	return true
}

func (f *Fake) SetMarkerMode(mode tracker.MarkerMode) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.MarkerMode = mode
}

func (f *Fake) SetImageProcessingMode(mode tracker.ImageProcessingMode) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ImageProc = mode
}

func (f *Fake) SetThreshold(threshold int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ThresholdValue = threshold
}

func (f *Fake) Threshold() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.ThresholdValue
}

func (f *Fake) ActivateAutoThreshold(enable bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.AutoThreshold = enable
}

func (f *Fake) IsAutoThresholdActivated() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.AutoThreshold
}

func (f *Fake) SetNumAutoThresholdRetries(retries int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.AutoRetries = retries
}

func (f *Fake) ActivateVignettingCompensation(enable bool, corners, leftRight, topBottom int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Vignetting = enable
}

func (f *Fake) SetUndistortionMode(mode tracker.UndistortionMode) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Undistortion = mode
}

func (f *Fake) SetLoadUndistortionLUT(enable bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.LoadLUT = enable
}

func (f *Fake) SetPatternWidth(width float32) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.PatternWidth = width
}

func (f *Fake) SetBorderWidth(width float32) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.BorderWidth = width
}

func (f *Fake) AddPattern(filename string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	if filename == "" || len(f.Patterns) >= max(f.Setup.MaxLoadPatterns, 1) {
		return -1
	}
	f.Patterns = append(f.Patterns, filename)
	return len(f.Patterns) - 1
}

func (f *Fake) Calc(image []byte) []int {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.CalcCalls++
	f.LastImageSize = len(image)
	var ids []int
	if f.Detector != nil {
		ids = f.Detector(image)
	} else {
		ids = append(ids, f.Visible...)
	}
	if len(ids) != 0 {
		f.selected = ids[0]
	} else {
		f.selected = -1
	}
	return ids
}

func (f *Fake) SelectBestMarkerByCf() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	best := -1
	bestCf := float32(-1)
	for _, id := range f.Visible {
		if m, ok := f.Markers[id]; ok && m.Confidence > bestCf {
			best = id
			bestCf = m.Confidence
		}
	}
	f.selected = best
	return best
}

func (f *Fake) SelectDetectedMarker(id int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.selected = id
}

func (f *Fake) Selected() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.selected
}

func (f *Fake) Confidence() float32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.Markers[f.selected].Confidence
}

func (f *Fake) ModelViewMatrix() []float32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	m, ok := f.Markers[f.selected]
	if f.NilMatrices || !ok {
		return nil
	}
	return append([]float32{}, m.ModelView[:]...)
}

func (f *Fake) ProjectionMatrix() []float32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.NilMatrices {
		return nil
	}
	return append([]float32{}, f.Projection[:]...)
}

func (f *Fake) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Closed = true
}

// Factory opens Fake backends, and remembers each one
type Factory struct {
	lock      sync.Mutex
	opened    []*Fake
	Configure func(f *Fake) // Optional, called on every new Fake
}

func (fa *Factory) Open(setup tracker.Setup) (tracker.Backend, error) {
	f := NewFake(setup)
	if fa.Configure != nil {
		fa.Configure(f)
	}
	fa.lock.Lock()
	fa.opened = append(fa.opened, f)
	fa.lock.Unlock()
	return f, nil
}

func (fa *Factory) Opened() []*Fake {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return append([]*Fake{}, fa.opened...)
}

func (fa *Factory) Last() *Fake {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	if len(fa.opened) == 0 {
		return nil
	}
	return fa.opened[len(fa.opened)-1]
}
