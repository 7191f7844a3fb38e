package tracker_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/tracker/trackertest"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func openTracker(t *testing.T, factory *trackertest.Factory, width, height int) *tracker.Tracker {
	tr, err := tracker.Open(logs.NewTestingLog(t), factory.Open, tracker.DefaultSetup(width, height))
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr
}

func TestSetupValidate(t *testing.T) {
	s := tracker.DefaultSetup(320, 240)
	require.NoError(t, s.Validate())
	require.Equal(t, 8, s.MaxPatterns)
	require.Equal(t, 6, s.PatternWidth)
	require.Equal(t, 6, s.PatternHeight)
	require.Equal(t, 6, s.PatternSamples)
	require.Equal(t, 0, s.MaxLoadPatterns)

	bad := s
	bad.PatternHeight = 8
	require.ErrorIs(t, bad.Validate(), tracker.ErrSetup)

	bad = s
	bad.PatternWidth = 8
	bad.PatternHeight = 8
	require.ErrorIs(t, bad.Validate(), tracker.ErrSetup)

	ok := s
	ok.PatternWidth = 12
	ok.PatternHeight = 12
	require.NoError(t, ok.Validate())

	bad = s
	bad.Width = 0
	require.ErrorIs(t, bad.Validate(), tracker.ErrSetup)

	bad = s
	bad.PatternSamples = 0
	require.ErrorIs(t, bad.Validate(), tracker.ErrSetup)
}

func TestOpenRejectsBadSetup(t *testing.T) {
	factory := &trackertest.Factory{}
	s := tracker.DefaultSetup(320, 240)
	s.PatternHeight = 7
	_, err := tracker.Open(logs.NewTestingLog(t), factory.Open, s)
	require.ErrorIs(t, err, tracker.ErrSetup)
	require.Equal(t, 0, len(factory.Opened()))

	failing := func(setup tracker.Setup) (tracker.Backend, error) {
		return nil, errors.New("no camera")
	}
	_, err = tracker.Open(logs.NewTestingLog(t), failing, tracker.DefaultSetup(320, 240))
	require.ErrorIs(t, err, tracker.ErrSetup)
}

func TestInitDefaults(t *testing.T) {
	factory := &trackertest.Factory{}
	tr := openTracker(t, factory, 320, 240)
	f := factory.Last()

	_, err := tr.DetectMarkers(make([]byte, 320*240*3))
	require.ErrorIs(t, err, tracker.ErrNotInitialized)

	require.NoError(t, tr.Init("camera.cal", tracker.DefaultInitOptions()))
	require.True(t, tr.IsInitialized())
	require.Equal(t, "camera.cal", f.CalibFile)
	require.Equal(t, float32(1), f.NearClip)
	require.Equal(t, float32(1000), f.FarClip)
	require.Equal(t, tracker.PixelFormatRGB, f.PixelFormat)
	require.Equal(t, tracker.MarkerModeIDBCH, f.MarkerMode)
	require.Equal(t, tracker.PoseEstimatorRPP, f.PoseEstimator)
	require.Equal(t, tracker.ImageProcessingHalfRes, f.ImageProc)
	require.Equal(t, tracker.UndistortionStd, f.Undistortion)
	require.Equal(t, float32(2), f.PatternWidth)
	require.Equal(t, float32(0.125), f.BorderWidth)
	require.Equal(t, 150, f.ThresholdValue)
	require.True(t, f.AutoThreshold)
	require.Equal(t, 2, f.AutoRetries)
	require.False(t, f.Vignetting)

	bpp, err := tr.BitsPerPixel()
	require.NoError(t, err)
	require.Equal(t, 24, bpp)
	require.Equal(t, 320*240*3, tr.ImageSize())
}

func TestInitFailure(t *testing.T) {
	factory := &trackertest.Factory{Configure: func(f *trackertest.Fake) { f.RejectCalib = true }}
	tr := openTracker(t, factory, 320, 240)
	require.ErrorIs(t, tr.Init("missing.cal", tracker.DefaultInitOptions()), tracker.ErrInitFailed)
	require.False(t, tr.IsInitialized())
}

func TestDetect(t *testing.T) {
	factory := &trackertest.Factory{}
	tr := openTracker(t, factory, 4, 2)
	require.NoError(t, tr.Init("camera.cal", tracker.DefaultInitOptions()))
	f := factory.Last()
	img := make([]byte, tr.ImageSize())

	// Nothing visible
	n, err := tr.DetectMarkers(img)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, []int{}, tr.DetectedMarkers())
	poses, err := tr.Detect(img)
	require.NoError(t, err)
	require.Equal(t, 0, len(poses))

	f.Show(5, 0.5, geom.Translation(0, 0, -100))
	f.Show(9, 0.9, geom.Translation(10, 0, -200))
	n, err = tr.DetectMarkers(img)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	ids := tr.DetectedMarkers()
	require.Equal(t, []int{5, 9}, ids)
	// The returned slice is a copy
	ids[0] = 77
	require.Equal(t, []int{5, 9}, tr.DetectedMarkers())

	best, err := tr.SelectBestMarkerByConfidence()
	require.NoError(t, err)
	require.Equal(t, 9, best)
	cf, err := tr.Confidence()
	require.NoError(t, err)
	require.Equal(t, float32(0.9), cf)

	require.NoError(t, tr.SelectDetectedMarker(5))
	mv, err := tr.ModelViewMatrix()
	require.NoError(t, err)
	require.Equal(t, geom.Translation(0, 0, -100), mv)
	proj, err := tr.ProjectionMatrix()
	require.NoError(t, err)
	require.Equal(t, trackertest.DefaultProjection(), proj)

	poses, err = tr.Detect(img)
	require.NoError(t, err)
	require.Equal(t, 2, len(poses))
	require.Equal(t, 5, poses[0].ID)
	require.Equal(t, float32(0.5), poses[0].Confidence)
	require.Equal(t, 9, poses[1].ID)
	require.Equal(t, geom.Translation(10, 0, -200), poses[1].ModelView)
	require.Equal(t, proj, poses[1].Projection)

	_, err = tr.DetectMarkers(img[:5])
	require.ErrorIs(t, err, tracker.ErrBadFrame)
}

func TestNilMatrix(t *testing.T) {
	factory := &trackertest.Factory{}
	tr := openTracker(t, factory, 4, 2)
	require.NoError(t, tr.Init("camera.cal", tracker.DefaultInitOptions()))
	f := factory.Last()
	f.Show(1, 1, geom.Identity())
	f.SetNilMatrices(true)

	_, err := tr.ModelViewMatrix()
	require.ErrorIs(t, err, tracker.ErrSetup)
	_, err = tr.ProjectionMatrix()
	require.ErrorIs(t, err, tracker.ErrSetup)
	_, err = tr.Detect(make([]byte, tr.ImageSize()))
	require.ErrorIs(t, err, tracker.ErrSetup)
}

func TestThreshold(t *testing.T) {
	factory := &trackertest.Factory{}
	tr := openTracker(t, factory, 4, 2)
	require.NoError(t, tr.SetThreshold(90))
	th, err := tr.Threshold()
	require.NoError(t, err)
	require.Equal(t, 90, th)
	require.Error(t, tr.SetThreshold(300))

	require.NoError(t, tr.SetAutoThreshold(true, 0))
	on, err := tr.IsAutoThresholdActivated()
	require.NoError(t, err)
	require.True(t, on)
	require.Equal(t, 1, factory.Last().AutoRetries)

	require.NoError(t, tr.SetAutoThreshold(false, 5))
	on, _ = tr.IsAutoThresholdActivated()
	require.False(t, on)

	require.NoError(t, tr.ActivateVignettingCompensation(&tracker.Vignetting{Corners: 10}))
	require.True(t, factory.Last().Vignetting)
	require.NoError(t, tr.ActivateVignettingCompensation(nil))
	require.False(t, factory.Last().Vignetting)
}

func TestPatternsAndResize(t *testing.T) {
	factory := &trackertest.Factory{}
	s := tracker.DefaultSetup(4, 2)
	s.MaxLoadPatterns = 2
	tr, err := tracker.Open(logs.NewTestingLog(t), factory.Open, s)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.AddPattern("a.patt")
	require.ErrorIs(t, err, tracker.ErrNotInitialized)

	opt := tracker.DefaultInitOptions()
	opt.MarkerMode = tracker.MarkerModeTemplate
	require.NoError(t, tr.Init("camera.cal", opt))
	id, err := tr.AddPattern("a.patt")
	require.NoError(t, err)
	require.Equal(t, 0, id)
	id, err = tr.AddPattern("b.patt")
	require.NoError(t, err)
	require.Equal(t, 1, id)
	_, err = tr.AddPattern("c.patt")
	require.Error(t, err)

	require.NoError(t, tr.ChangeCameraSize(8, 4))
	require.Equal(t, 8, factory.Last().Setup.Width)
	require.Equal(t, 8*4*3, tr.ImageSize())
	require.ErrorIs(t, tr.ChangeCameraSize(0, 4), tracker.ErrSetup)
}

func TestClose(t *testing.T) {
	factory := &trackertest.Factory{}
	tr := openTracker(t, factory, 4, 2)
	require.NoError(t, tr.Init("camera.cal", tracker.DefaultInitOptions()))
	tr.Close()
	tr.Close()
	require.True(t, factory.Last().Closed)
	require.False(t, tr.IsInitialized())
	_, err := tr.DetectMarkers(make([]byte, 24))
	require.ErrorIs(t, err, tracker.ErrClosed)
	_, err = tr.ModelViewMatrix()
	require.ErrorIs(t, err, tracker.ErrClosed)
	require.ErrorIs(t, tr.SetThreshold(10), tracker.ErrClosed)
}

func TestIndependentTrackers(t *testing.T) {
	factory := &trackertest.Factory{}
	a := openTracker(t, factory, 4, 2)
	b := openTracker(t, factory, 4, 2)
	require.NoError(t, a.Init("a.cal", tracker.DefaultInitOptions()))
	require.NoError(t, b.Init("b.cal", tracker.DefaultInitOptions()))
	fa := factory.Opened()[0]
	fb := factory.Opened()[1]
	fa.Show(1, 1, geom.Identity())
	fb.Show(2, 1, geom.Identity())

	var wg sync.WaitGroup
	for _, tr := range []*tracker.Tracker{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img := make([]byte, tr.ImageSize())
			for i := 0; i < 50; i++ {
				if _, err := tr.Detect(img); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, []int{1}, a.DetectedMarkers())
	require.Equal(t, []int{2}, b.DetectedMarkers())

	a.Close()
	_, err := b.DetectMarkers(make([]byte, b.ImageSize()))
	require.NoError(t, err)
}

func TestModeNames(t *testing.T) {
	require.Equal(t, "ID_BCH", tracker.MarkerModeIDBCH.String())
	require.Equal(t, "RGB565", tracker.PixelFormatRGB565.String())
	require.Equal(t, "42", tracker.PixelFormat(42).String())

	m, err := tracker.ParseMarkerMode("id-simple")
	require.NoError(t, err)
	require.Equal(t, tracker.MarkerModeIDSimple, m)
	pf, err := tracker.ParsePixelFormat("lum")
	require.NoError(t, err)
	require.Equal(t, tracker.PixelFormatLUM, pf)
	require.Equal(t, 1, pf.BytesPerPixel())
	u, err := tracker.ParseUndistortionMode("LUT")
	require.NoError(t, err)
	require.Equal(t, tracker.UndistortionLUT, u)
	p, err := tracker.ParsePoseEstimator("original_cont")
	require.NoError(t, err)
	require.Equal(t, tracker.PoseEstimatorOriginalCont, p)
	ip, err := tracker.ParseImageProcessingMode("FULL_RES")
	require.NoError(t, err)
	require.Equal(t, tracker.ImageProcessingFullRes, ip)
	_, err = tracker.ParseMarkerMode("qr")
	require.Error(t, err)
}
