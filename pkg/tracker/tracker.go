package tracker

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/implant/pkg/gen"
	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/logs"
)

// Tracker owns one native marker tracker.
// Trackers are independent of each other, so a process may run as many as it likes.
// All methods are safe to call from multiple goroutines, but calls are serialized,
// because the native tracker is not reentrant.
type Tracker struct {
	Log logs.Log

	lock        sync.Mutex
	backend     Backend
	setup       Setup
	options     InitOptions
	initialized bool
	closed      bool
	detected    []int
}

// The pose of one detected marker
type MarkerPose struct {
	ID         int          `json:"id"`
	Confidence float32      `json:"confidence"`
	ModelView  geom.Matrix4 `json:"modelView"`
	Projection geom.Matrix4 `json:"projection"`
}

// Open a new tracker.
// The tracker must be initialized with Init before it can detect markers.
func Open(log logs.Log, open Opener, setup Setup) (*Tracker, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	backend, err := open(setup)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	return &Tracker{
		Log:     log,
		backend: backend,
		setup:   setup,
	}, nil
}

// Close releases the native tracker. It is safe to call Close more than once.
func (t *Tracker) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.backend.Close()
	t.backend = nil
	t.detected = nil
}

func (t *Tracker) Setup() Setup {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.setup
}

// Options returns the options of the most recent successful Init
func (t *Tracker) Options() InitOptions {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.options
}

func (t *Tracker) IsInitialized() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.initialized && !t.closed
}

// Init loads the camera calibration file and configures the tracker.
// If the native tracker rejects the calibration, the error wraps ErrInitFailed.
func (t *Tracker) Init(calibFile string, opt InitOptions) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return err
	}
	if !t.backend.Init(calibFile, opt.NearClip, opt.FarClip) {
		return fmt.Errorf("%w: unable to load camera calibration '%v'", ErrInitFailed, calibFile)
	}
	if !t.backend.SetPixelFormat(opt.PixelFormat) {
		return fmt.Errorf("%w: pixel format %v is not supported", ErrInitFailed, opt.PixelFormat)
	}
	t.backend.SetPatternWidth(opt.PatternWidth)
	t.backend.SetBorderWidth(opt.BorderWidth)
	t.backend.SetThreshold(opt.Threshold)
	t.backend.ActivateAutoThreshold(opt.AutoThreshold)
	if opt.AutoThreshold {
		t.backend.SetNumAutoThresholdRetries(max(1, opt.AutoThresholdRetries))
	}
	t.backend.SetUndistortionMode(opt.Undistortion)
	if opt.Undistortion == UndistortionLUT {
		t.backend.SetLoadUndistortionLUT(opt.LoadUndistortionLUT)
	}
	if !t.backend.SetPoseEstimator(opt.PoseEstimator) {
		t.Log.Warnf("Tracker rejected pose estimator %v", opt.PoseEstimator)
	}
	t.backend.SetImageProcessingMode(opt.ImageProcessing)
	t.backend.SetMarkerMode(opt.MarkerMode)
	if opt.Vignetting != nil {
		t.backend.ActivateVignettingCompensation(true, opt.Vignetting.Corners, opt.Vignetting.LeftRight, opt.Vignetting.TopBottom)
	}
	t.options = opt
	t.initialized = true
	t.Log.Debugf("Tracker initialized (%v x %v, %v markers, %v)", t.setup.Width, t.setup.Height, opt.MarkerMode, opt.PixelFormat)
	return nil
}

// Register a template pattern file, and return its pattern id
func (t *Tracker) AddPattern(filename string) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return 0, err
	}
	id := t.backend.AddPattern(filename)
	if id < 0 {
		return 0, fmt.Errorf("Failed to load marker pattern '%v'", filename)
	}
	return id, nil
}

// Change the camera resolution. Subsequent images must have the new size.
func (t *Tracker) ChangeCameraSize(width, height int) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: camera size %v x %v is invalid", ErrSetup, width, height)
	}
	t.backend.ChangeCameraSize(width, height)
	t.setup.Width = width
	t.setup.Height = height
	return nil
}

// Size in bytes of one image that DetectMarkers accepts
func (t *Tracker) ImageSize() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.imageSize()
}

func (t *Tracker) imageSize() int {
	return t.setup.Width * t.setup.Height * t.options.PixelFormat.BytesPerPixel()
}

// DetectMarkers runs marker detection on image, and returns the number of markers found.
// The image is only borrowed for the duration of the call.
func (t *Tracker) DetectMarkers(image []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.detect(image); err != nil {
		return 0, err
	}
	return len(t.detected), nil
}

func (t *Tracker) detect(image []byte) error {
	if err := t.check(true); err != nil {
		return err
	}
	if need := t.imageSize(); len(image) < need {
		return fmt.Errorf("%w (%v bytes, but need %v)", ErrBadFrame, len(image), need)
	}
	t.detected = append(t.detected[:0], t.backend.Calc(image)...)
	return nil
}

// Returns a copy of the ids found by the most recent DetectMarkers
func (t *Tracker) DetectedMarkers() []int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return gen.CopySlice(t.detected)
}

// Select the detected marker with the highest confidence, and return its id
func (t *Tracker) SelectBestMarkerByConfidence() (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return 0, err
	}
	return t.backend.SelectBestMarkerByCf(), nil
}

// Select the marker whose confidence and model-view matrix are returned next
func (t *Tracker) SelectDetectedMarker(id int) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	t.backend.SelectDetectedMarker(id)
	return nil
}

func (t *Tracker) Confidence() (float32, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return 0, err
	}
	return t.backend.Confidence(), nil
}

func (t *Tracker) ModelViewMatrix() (geom.Matrix4, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return geom.Matrix4{}, err
	}
	return toMatrix("model view", t.backend.ModelViewMatrix())
}

func (t *Tracker) ProjectionMatrix() (geom.Matrix4, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(true); err != nil {
		return geom.Matrix4{}, err
	}
	return toMatrix("projection", t.backend.ProjectionMatrix())
}

func toMatrix(name string, m []float32) (geom.Matrix4, error) {
	if m == nil {
		return geom.Matrix4{}, fmt.Errorf("%w: failed to allocate %v matrix", ErrSetup, name)
	}
	r, err := geom.Matrix4FromSlice(m)
	if err != nil {
		return r, fmt.Errorf("%w: %v matrix: %w", ErrSetup, name, err)
	}
	return r, nil
}

// Detect runs marker detection, then reads the confidence and pose of every detected marker.
// The whole sequence holds the tracker lock, so the poses are consistent with one image.
func (t *Tracker) Detect(image []byte) ([]MarkerPose, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.detect(image); err != nil {
		return nil, err
	}
	if len(t.detected) == 0 {
		return nil, nil
	}
	proj, err := toMatrix("projection", t.backend.ProjectionMatrix())
	if err != nil {
		return nil, err
	}
	poses := make([]MarkerPose, 0, len(t.detected))
	for _, id := range t.detected {
		t.backend.SelectDetectedMarker(id)
		mv, err := toMatrix("model view", t.backend.ModelViewMatrix())
		if err != nil {
			return nil, fmt.Errorf("Marker %v: %w", id, err)
		}
		poses = append(poses, MarkerPose{
			ID:         id,
			Confidence: t.backend.Confidence(),
			ModelView:  mv,
			Projection: proj,
		})
	}
	return poses, nil
}

func (t *Tracker) Threshold() (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return 0, err
	}
	return t.backend.Threshold(), nil
}

func (t *Tracker) SetThreshold(threshold int) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return err
	}
	if threshold < 0 || threshold > 255 {
		return fmt.Errorf("Threshold %v is outside of [0, 255]", threshold)
	}
	t.backend.SetThreshold(threshold)
	t.options.Threshold = threshold
	return nil
}

// Enable or disable automatic thresholding. retries is clamped to at least 1.
func (t *Tracker) SetAutoThreshold(enable bool, retries int) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return err
	}
	t.backend.ActivateAutoThreshold(enable)
	t.options.AutoThreshold = enable
	if enable {
		retries = max(1, retries)
		t.backend.SetNumAutoThresholdRetries(retries)
		t.options.AutoThresholdRetries = retries
	}
	return nil
}

func (t *Tracker) IsAutoThresholdActivated() (bool, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return false, err
	}
	return t.backend.IsAutoThresholdActivated(), nil
}

// Enable vignetting compensation, or disable it if v is nil
func (t *Tracker) ActivateVignettingCompensation(v *Vignetting) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return err
	}
	if v == nil {
		t.backend.ActivateVignettingCompensation(false, 0, 0, 0)
	} else {
		t.backend.ActivateVignettingCompensation(true, v.Corners, v.LeftRight, v.TopBottom)
	}
	t.options.Vignetting = v
	return nil
}

func (t *Tracker) BitsPerPixel() (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.check(false); err != nil {
		return 0, err
	}
	return t.backend.BitsPerPixel(), nil
}

// Caller must hold the lock
func (t *Tracker) check(needInit bool) error {
	if t.closed {
		return ErrClosed
	}
	if needInit && !t.initialized {
		return ErrNotInitialized
	}
	return nil
}
