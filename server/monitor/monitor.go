package monitor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/implant/pkg/accel"
	"github.com/cyclopcam/implant/pkg/logx"
	"github.com/cyclopcam/implant/pkg/perfstats"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/logs"
)

// monitor runs the marker tracker on a stream of camera frames

var ErrClosed = errors.New("Monitor is closed")

type Options struct {
	MaxFPS      float64       // Frames processed per second by the loop. Zero means no limit.
	ForgetAfter time.Duration // A marker that has not been seen for this long is no longer visible
	HistorySize int           // Number of poses remembered per marker (rounded up to a power of 2)
	NV12        bool          // Frames have U before V
}

func DefaultOptions() Options {
	return Options{
		MaxFPS:      10,
		ForgetAfter: time.Second,
		HistorySize: 16,
	}
}

// Result of running the tracker on one frame
// SYNC-FRAME-RESULT
type FrameResult struct {
	Frame        int64                `json:"frame"` // Sequence number of the processed frame
	Time         time.Time            `json:"time"`
	Width        int                  `json:"width"`
	Height       int                  `json:"height"`
	Markers      []tracker.MarkerPose `json:"markers"`
	ProcessingMS float64              `json:"processingMS"`
}

type Monitor struct {
	Log logs.Log

	tracker       *tracker.Tracker
	options       Options
	width         int
	height        int
	mustStop      atomic.Bool // True if Close() has been called
	looperStopped chan bool   // Closed when the looper has stopped
	closed        chan struct{}
	wake          chan bool
	errThrottle   *logx.Throttle

	// Single slot queue. A newer frame replaces an older unprocessed one.
	pendingLock sync.Mutex
	pending     []byte
	hasPending  bool
	spare       []byte
	dropped     int64

	processLock sync.Mutex // Serializes frame processing
	rgb         *cimg.Image
	frameCount  int64

	stateLock   sync.Mutex
	markers     map[int]*markerTrack
	lastRGB     *cimg.Image
	last        *FrameResult
	convertTime perfstats.TimeAccumulator
	detectTime  perfstats.TimeAccumulator

	watchersLock sync.RWMutex
	watchers     []chan *FrameResult
}

// New creates a monitor around an initialized tracker, and starts its loop.
// The monitor owns the tracker, and closes it when the monitor is closed.
func New(log logs.Log, trk *tracker.Tracker, options Options) (*Monitor, error) {
	if !trk.IsInitialized() {
		return nil, tracker.ErrNotInitialized
	}
	if trk.Options().PixelFormat != tracker.PixelFormatRGB {
		return nil, fmt.Errorf("Monitor requires an RGB tracker, but tracker is %v", trk.Options().PixelFormat)
	}
	if options.HistorySize <= 0 {
		options.HistorySize = DefaultOptions().HistorySize
	}
	setup := trk.Setup()
	m := &Monitor{
		Log:         log,
		tracker:     trk,
		options:     options,
		width:       setup.Width,
		height:      setup.Height,
		wake:        make(chan bool, 1),
		closed:      make(chan struct{}),
		errThrottle: logx.NewThrottle(15 * time.Second),
		rgb:         cimg.NewImage(setup.Width, setup.Height, cimg.PixelFormatRGB),
		markers:     map[int]*markerTrack{},
	}
	m.start()
	return m, nil
}

// Close stops the loop and releases the tracker
func (m *Monitor) Close() {
	if m.mustStop.Swap(true) {
		return
	}
	m.Log.Infof("Monitor shutting down")
	close(m.closed)
	m.signal()
	<-m.looperStopped
	m.processLock.Lock()
	m.tracker.Close()
	m.processLock.Unlock()
	m.Log.Infof("Monitor is closed")
}

// Done is closed when Close is called
func (m *Monitor) Done() <-chan struct{} {
	return m.closed
}

func (m *Monitor) FrameSize() (width, height int) {
	return m.width, m.height
}

func (m *Monitor) Tracker() *tracker.Tracker {
	return m.tracker
}

// Number of submitted frames that were replaced before the loop got to them
func (m *Monitor) DroppedFrames() int64 {
	m.pendingLock.Lock()
	defer m.pendingLock.Unlock()
	return m.dropped
}

func (m *Monitor) start() {
	m.looperStopped = make(chan bool)
	go m.loop()
}

func (m *Monitor) signal() {
	select {
	case m.wake <- true:
	default:
	}
}

// SubmitFrame queues an NV21 frame for the loop.
// The frame is copied, so the caller may reuse it as soon as SubmitFrame returns.
func (m *Monitor) SubmitFrame(frame []byte) error {
	if m.mustStop.Load() {
		return ErrClosed
	}
	if err := accel.CheckNV21Frame(frame, m.width, m.height); err != nil {
		return err
	}
	size := accel.NV21FrameSize(m.width, m.height)
	m.pendingLock.Lock()
	if m.hasPending {
		m.dropped++
	} else {
		buf := m.spare
		m.spare = nil
		if cap(buf) < size {
			buf = make([]byte, size)
		}
		m.pending = buf[:size]
	}
	copy(m.pending, frame[:size])
	m.hasPending = true
	m.pendingLock.Unlock()
	m.signal()
	return nil
}

// Take the pending frame, if any. The caller returns the buffer with giveBack.
func (m *Monitor) takePending() []byte {
	m.pendingLock.Lock()
	defer m.pendingLock.Unlock()
	if !m.hasPending {
		return nil
	}
	f := m.pending
	m.pending = nil
	m.hasPending = false
	return f
}

func (m *Monitor) giveBack(buf []byte) {
	m.pendingLock.Lock()
	if m.spare == nil {
		m.spare = buf
	}
	m.pendingLock.Unlock()
}

// Loop runs until Close()
func (m *Monitor) loop() {
	var minInterval time.Duration
	if m.options.MaxFPS > 0 {
		minInterval = time.Duration(float64(time.Second) / m.options.MaxFPS)
	}
	lastFrameAt := time.Time{}

	for !m.mustStop.Load() {
		select {
		case <-m.wake:
		case <-time.After(100 * time.Millisecond):
		}
		if m.mustStop.Load() {
			break
		}
		if wait := minInterval - time.Since(lastFrameAt); wait > 0 {
			time.Sleep(wait)
		}
		frame := m.takePending()
		if frame == nil {
			m.expire(time.Now())
			continue
		}
		lastFrameAt = time.Now()
		_, err := m.ProcessFrame(frame)
		m.giveBack(frame)
		if err != nil && !m.mustStop.Load() {
			m.errThrottle.Errorf(m.Log, "Error processing frame: %v", err)
		}
	}
	close(m.looperStopped)
}

// ProcessFrame converts and analyzes an NV21 frame synchronously.
// The frame is only read for the duration of the call.
func (m *Monitor) ProcessFrame(frame []byte) (*FrameResult, error) {
	m.processLock.Lock()
	defer m.processLock.Unlock()
	start := time.Now()
	var err error
	if m.options.NV12 {
		err = accel.ConvertNV12(frame, m.width, m.height, m.rgb.Pixels)
	} else {
		err = accel.ConvertNV21(frame, m.width, m.height, m.rgb.Pixels)
	}
	if err != nil {
		return nil, err
	}
	converted := time.Now()

	poses, err := m.tracker.Detect(m.rgb.Pixels)
	if err != nil {
		return nil, err
	}
	if poses == nil {
		poses = []tracker.MarkerPose{}
	}
	m.frameCount++

	now := time.Now()
	result := &FrameResult{
		Frame:        m.frameCount,
		Time:         now,
		Width:        m.width,
		Height:       m.height,
		Markers:      poses,
		ProcessingMS: float64(now.Sub(start).Microseconds()) / 1000,
	}

	m.stateLock.Lock()
	m.convertTime.AddSample(converted.Sub(start))
	m.detectTime.AddSample(now.Sub(converted))
	m.update(poses, now)
	if m.lastRGB == nil {
		m.lastRGB = cimg.NewImage(m.width, m.height, cimg.PixelFormatRGB)
	}
	copy(m.lastRGB.Pixels, m.rgb.Pixels)
	m.last = result
	m.stateLock.Unlock()

	m.sendToWatchers(result)
	return result, nil
}

// SYNC-MONITOR-STATS
type Stats struct {
	Frames  int64             `json:"frames"`  // Frames processed
	Dropped int64             `json:"dropped"` // Submitted frames replaced before they were processed
	Convert perfstats.Summary `json:"convert"` // YUV to RGB
	Detect  perfstats.Summary `json:"detect"`  // Marker detection and pose readout
}

func (m *Monitor) Stats() Stats {
	dropped := m.DroppedFrames()
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	frames := int64(0)
	if m.last != nil {
		frames = m.last.Frame
	}
	return Stats{
		Frames:  frames,
		Dropped: dropped,
		Convert: m.convertTime.Summary(),
		Detect:  m.detectTime.Summary(),
	}
}

// LastRGB returns a copy of the most recently processed frame, or nil if no frame has been processed
func (m *Monitor) LastRGB() (*cimg.Image, *FrameResult) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	if m.lastRGB == nil {
		return nil, nil
	}
	img := cimg.NewImage(m.lastRGB.Width, m.lastRGB.Height, m.lastRGB.Format)
	copy(img.Pixels, m.lastRGB.Pixels)
	return img, m.last
}
