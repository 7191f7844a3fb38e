package tracker

// Backend is the narrow contract of the external marker tracker.
// Implementations wrap one native tracker instance, and are not safe for concurrent use.
// Tracker serializes all calls.
type Backend interface {
	// Load the camera calibration file, and set the clip planes of the projection matrix
	Init(calibFile string, nearClip, farClip float32) bool
	ChangeCameraSize(width, height int)
	SetPixelFormat(format PixelFormat) bool
	BitsPerPixel() int
	SetPoseEstimator(estimator PoseEstimator) bool
	SetMarkerMode(mode MarkerMode)
	SetImageProcessingMode(mode ImageProcessingMode)
	SetThreshold(threshold int)
	Threshold() int
	ActivateAutoThreshold(enable bool)
	IsAutoThresholdActivated() bool
	SetNumAutoThresholdRetries(retries int)
	ActivateVignettingCompensation(enable bool, corners, leftRight, topBottom int)
	SetUndistortionMode(mode UndistortionMode)
	SetLoadUndistortionLUT(enable bool)
	SetPatternWidth(width float32)
	SetBorderWidth(width float32)
	// Register a template pattern file, returning its id (negative on failure)
	AddPattern(filename string) int
	// Detect markers in image. The image is borrowed for the duration of the call only.
	Calc(image []byte) []int
	SelectBestMarkerByCf() int
	SelectDetectedMarker(id int)
	Confidence() float32
	// Column-major 4x4 matrices. nil if the tracker has none.
	ModelViewMatrix() []float32
	ProjectionMatrix() []float32
	Close()
}

// Opener creates a new native tracker for the given setup
type Opener func(setup Setup) (Backend, error)
