package monitor

import (
	"testing"
	"time"

	"github.com/cyclopcam/implant/pkg/accel"
	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/tracker/trackertest"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

const testWidth = 16
const testHeight = 12

func newTestMonitor(t *testing.T, opt Options) (*Monitor, *trackertest.Fake) {
	log := logs.NewTestingLog(t)
	factory := &trackertest.Factory{}
	trk, err := tracker.Open(log, factory.Open, tracker.DefaultSetup(testWidth, testHeight))
	require.NoError(t, err)
	require.NoError(t, trk.Init("camera.cal", tracker.DefaultInitOptions()))
	m, err := New(log, trk, opt)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, factory.Last()
}

func blackFrame() []byte {
	return accel.NewNV21Image(testWidth, testHeight).Bytes()
}

func TestRequiresInitializedTracker(t *testing.T) {
	log := logs.NewTestingLog(t)
	factory := &trackertest.Factory{}
	trk, err := tracker.Open(log, factory.Open, tracker.DefaultSetup(testWidth, testHeight))
	require.NoError(t, err)
	defer trk.Close()
	_, err = New(log, trk, DefaultOptions())
	require.ErrorIs(t, err, tracker.ErrNotInitialized)

	opt := tracker.DefaultInitOptions()
	opt.PixelFormat = tracker.PixelFormatBGRA
	require.NoError(t, trk.Init("camera.cal", opt))
	_, err = New(log, trk, DefaultOptions())
	require.Error(t, err)
}

func TestProcessFrame(t *testing.T) {
	m, fake := newTestMonitor(t, DefaultOptions())

	// Nothing visible
	res, err := m.ProcessFrame(blackFrame())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Frame)
	require.NotNil(t, res.Markers)
	require.Len(t, res.Markers, 0)
	require.Equal(t, accel.RGBSize(testWidth, testHeight), fake.LastImageSize)

	fake.Show(4, 0.75, geom.Translation(1, 2, -10))
	fake.Show(2, 0.5, geom.Translation(0, 0, -5))
	res, err = m.ProcessFrame(blackFrame())
	require.NoError(t, err)
	require.Len(t, res.Markers, 2)
	require.Equal(t, 4, res.Markers[0].ID)
	require.Equal(t, float32(0.75), res.Markers[0].Confidence)
	require.Equal(t, trackertest.DefaultProjection(), res.Markers[0].Projection)

	states := m.State()
	require.Len(t, states, 2)
	require.Equal(t, 2, states[0].ID)
	require.Equal(t, 4, states[1].ID)
	require.True(t, states[1].Visible)
	require.Equal(t, int64(1), states[1].Detections)
	require.Equal(t, geom.Vec3{X: 1, Y: 2, Z: -10}, states[1].Position)
	require.Equal(t, 0.0, states[1].Jitter)

	// The converted image of a black frame is black
	img, last := m.LastRGB()
	require.NotNil(t, img)
	require.Equal(t, res, last)
	require.Equal(t, byte(0), img.Pixels[0])

	// Too small
	_, err = m.ProcessFrame(make([]byte, 10))
	require.ErrorIs(t, err, accel.ErrFrameTooSmall)

	stats := m.Stats()
	require.Equal(t, int64(2), stats.Frames)
	require.Equal(t, int64(2), stats.Convert.Samples)
	require.Equal(t, int64(2), stats.Detect.Samples)
}

func TestPoseHistory(t *testing.T) {
	opt := DefaultOptions()
	opt.HistorySize = 3 // rounded up to 4
	m, fake := newTestMonitor(t, opt)
	for i := 0; i < 6; i++ {
		fake.Show(1, 0.9, geom.Translation(float32(i), 0, -10))
		_, err := m.ProcessFrame(blackFrame())
		require.NoError(t, err)
	}
	history := m.PoseHistory(1)
	require.Len(t, history, 4)
	require.Equal(t, float32(2), history[0].ModelView.At(0, 3))
	require.Equal(t, float32(5), history[3].ModelView.At(0, 3))
	require.Nil(t, m.PoseHistory(99))

	states := m.State()
	require.Equal(t, int64(6), states[0].Detections)
	require.Equal(t, float32(3.5), states[0].Position.X)
	// Origins at x = 2,3,4,5 are 1.5,0.5,0.5,1.5 from the average
	require.InDelta(t, 0.5, states[0].Jitter, 1e-6)
	require.Equal(t, float32(5), states[0].ModelView.At(0, 3))
}

func TestForget(t *testing.T) {
	opt := DefaultOptions()
	opt.ForgetAfter = 30 * time.Millisecond
	m, fake := newTestMonitor(t, opt)
	fake.Show(7, 0.9, geom.Translation(0, 0, -10))
	_, err := m.ProcessFrame(blackFrame())
	require.NoError(t, err)
	require.True(t, m.State()[0].Visible)

	fake.Hide(7)
	time.Sleep(50 * time.Millisecond)
	_, err = m.ProcessFrame(blackFrame())
	require.NoError(t, err)
	require.False(t, m.State()[0].Visible)
}

func TestSubmitFrame(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxFPS = 0
	m, fake := newTestMonitor(t, opt)
	fake.Show(3, 0.8, geom.Translation(0, 0, -10))

	ch := m.Watch()
	frame := blackFrame()
	require.NoError(t, m.SubmitFrame(frame))
	// The caller may reuse its buffer immediately
	for i := range frame {
		frame[i] = 0xff
	}

	select {
	case res := <-ch:
		require.Len(t, res.Markers, 1)
		require.Equal(t, 3, res.Markers[0].ID)
	case <-time.After(5 * time.Second):
		require.Fail(t, "Timed out waiting for frame result")
	}
	img, _ := m.LastRGB()
	require.Equal(t, byte(0), img.Pixels[0])
	m.Unwatch(ch)

	require.ErrorIs(t, m.SubmitFrame(make([]byte, 5)), accel.ErrFrameTooSmall)
}

func TestMaxFPS(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxFPS = 20
	m, _ := newTestMonitor(t, opt)
	ch := m.Watch()
	defer m.Unwatch(ch)

	start := time.Now()
	received := 0
	for received < 3 {
		require.NoError(t, m.SubmitFrame(blackFrame()))
		select {
		case <-ch:
			received++
		case <-time.After(20 * time.Millisecond):
		}
		require.Less(t, time.Since(start), 5*time.Second)
	}
	// Three frames at 20 fps need at least two full intervals
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestClose(t *testing.T) {
	log := logs.NewTestingLog(t)
	factory := &trackertest.Factory{}
	trk, err := tracker.Open(log, factory.Open, tracker.DefaultSetup(testWidth, testHeight))
	require.NoError(t, err)
	require.NoError(t, trk.Init("camera.cal", tracker.DefaultInitOptions()))
	m, err := New(log, trk, DefaultOptions())
	require.NoError(t, err)

	img, res := m.LastRGB()
	require.Nil(t, img)
	require.Nil(t, res)

	select {
	case <-m.Done():
		require.Fail(t, "Done before Close")
	default:
	}
	m.Close()
	m.Close()
	_, open := <-m.Done()
	require.False(t, open)
	require.True(t, factory.Last().Closed)
	require.ErrorIs(t, m.SubmitFrame(blackFrame()), ErrClosed)
	_, err = m.ProcessFrame(blackFrame())
	require.ErrorIs(t, err, tracker.ErrClosed)
}
