package monitor

import (
	"slices"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/stats"
	"github.com/cyclopcam/implant/pkg/tracker"
)

type timeAndPose struct {
	time time.Time
	pose tracker.MarkerPose
}

// Internal state of a marker that we have seen at least once
type markerTrack struct {
	id         int
	firstSeen  time.Time
	lastSeen   time.Time
	visible    bool
	detections int64
	history    ringbuffer.RingP[timeAndPose]
}

// Public state of a marker
// SYNC-MARKER-STATE
type MarkerState struct {
	ID         int          `json:"id"`
	Visible    bool         `json:"visible"`
	FirstSeen  time.Time    `json:"firstSeen"`
	LastSeen   time.Time    `json:"lastSeen"`
	Detections int64        `json:"detections"` // Number of frames in which the marker was found
	Confidence float32      `json:"confidence"` // Confidence of the most recent detection
	ModelView  geom.Matrix4 `json:"modelView"`  // Most recent pose
	Position   geom.Vec3    `json:"position"`   // Marker origin in camera space, averaged over the pose history
	Jitter     float64      `json:"jitter"`     // Standard deviation of the origin's distance from Position
}

func (t *markerTrack) mostRecent() timeAndPose {
	return t.history.Peek(t.history.Len() - 1)
}

// Average of the translation column over the remembered poses
func (t *markerTrack) averagePosition() geom.Vec3 {
	var sum geom.Vec3
	n := t.history.Len()
	if n == 0 {
		return sum
	}
	for i := 0; i < n; i++ {
		mv := t.history.Peek(i).pose.ModelView
		sum = sum.Add(geom.Vec3{X: mv.At(0, 3), Y: mv.At(1, 3), Z: mv.At(2, 3)})
	}
	return sum.Scale(1 / float32(n))
}

// Standard deviation of the distance between each remembered origin and avg
func (t *markerTrack) jitter(avg geom.Vec3) float64 {
	dist := make([]float32, t.history.Len())
	for i := range dist {
		mv := t.history.Peek(i).pose.ModelView
		dist[i] = geom.Vec3{X: mv.At(0, 3), Y: mv.At(1, 3), Z: mv.At(2, 3)}.Sub(avg).Length()
	}
	return stats.StdDev(dist)
}

func (t *markerTrack) state() MarkerState {
	avg := t.averagePosition()
	s := MarkerState{
		ID:         t.id,
		Visible:    t.visible,
		FirstSeen:  t.firstSeen,
		LastSeen:   t.lastSeen,
		Detections: t.detections,
		Position:   avg,
		Jitter:     t.jitter(avg),
	}
	if t.history.Len() != 0 {
		recent := t.mostRecent().pose
		s.Confidence = recent.Confidence
		s.ModelView = recent.ModelView
	}
	return s
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// Record the poses found in one frame. Caller must hold stateLock.
func (m *Monitor) update(poses []tracker.MarkerPose, now time.Time) {
	for _, pose := range poses {
		t := m.markers[pose.ID]
		if t == nil {
			t = &markerTrack{
				id:        pose.ID,
				firstSeen: now,
				history:   ringbuffer.NewRingP[timeAndPose](nextPowerOf2(m.options.HistorySize)),
			}
			m.markers[pose.ID] = t
			m.Log.Infof("Marker %v found", pose.ID)
		}
		t.lastSeen = now
		t.visible = true
		t.detections++
		t.history.Add(timeAndPose{time: now, pose: pose})
	}
	m.expireLocked(now)
}

func (m *Monitor) expire(now time.Time) {
	m.stateLock.Lock()
	m.expireLocked(now)
	m.stateLock.Unlock()
}

func (m *Monitor) expireLocked(now time.Time) {
	for _, t := range m.markers {
		if t.visible && now.Sub(t.lastSeen) > m.options.ForgetAfter {
			t.visible = false
			m.Log.Debugf("Marker %v lost", t.id)
		}
	}
}

// State of every marker that has been seen, ordered by id
func (m *Monitor) State() []MarkerState {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	m.expireLocked(time.Now())
	states := make([]MarkerState, 0, len(m.markers))
	for _, t := range m.markers {
		states = append(states, t.state())
	}
	slices.SortFunc(states, func(a, b MarkerState) int {
		return a.ID - b.ID
	})
	return states
}

// Remembered poses of one marker, oldest first
func (m *Monitor) PoseHistory(id int) []tracker.MarkerPose {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()
	t := m.markers[id]
	if t == nil {
		return nil
	}
	poses := make([]tracker.MarkerPose, 0, t.history.Len())
	for i := 0; i < t.history.Len(); i++ {
		poses = append(poses, t.history.Peek(i).pose)
	}
	return poses
}
