package server

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/cyclopcam/implant/pkg/logx"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/wavefront"
	"github.com/cyclopcam/implant/server/markerdb"
	"github.com/cyclopcam/implant/server/monitor"
	"github.com/google/uuid"
)

var ErrTooManySessions = errors.New("Too many tracker sessions")
var ErrSessionNotFound = errors.New("Session not found")

// A Session is one client's camera stream, with its own tracker
type Session struct {
	ID        string
	CreatedAt time.Time
	Monitor   *monitor.Monitor
	markers   map[int]markerdb.Marker  // By tracker id
	models    map[int]*wavefront.Model // By tracker id
}

// SYNC-SESSION-JSON
type sessionJSON struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Markers int    `json:"markers"` // Number of registered markers
}

func (x *Session) toJSON() *sessionJSON {
	w, h := x.Monitor.FrameSize()
	return &sessionJSON{
		ID:      x.ID,
		Width:   w,
		Height:  h,
		Markers: len(x.markers),
	}
}

// SYNC-SESSION-MARKER-JSON
type sessionMarkerJSON struct {
	monitor.MarkerState
	Name string `json:"name"`
}

func (x *Session) markerStates() []sessionMarkerJSON {
	out := []sessionMarkerJSON{}
	for _, st := range x.Monitor.State() {
		out = append(out, sessionMarkerJSON{
			MarkerState: st,
			Name:        x.markers[st.ID].Name,
		})
	}
	return out
}

// OpenSession creates a tracker for frames of the given size, initializes it from the
// configuration, and registers every marker in the database.
func (s *Server) OpenSession(width, height int) (*Session, error) {
	// Reserve a slot, so that concurrent opens cannot exceed MaxSessions
	s.sessionsLock.Lock()
	if len(s.sessions)+s.sessionsOpening >= s.Config.MaxSessions {
		s.sessionsLock.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessionsOpening++
	s.sessionsLock.Unlock()
	reserved := true
	defer func() {
		if reserved {
			s.sessionsLock.Lock()
			s.sessionsOpening--
			s.sessionsLock.Unlock()
		}
	}()

	opt, err := s.Config.InitOptions()
	if err != nil {
		return nil, err
	}
	all, err := s.MarkerDB.All()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := logx.NewPrefixLogger(s.Log, fmt.Sprintf("Session %v", id[:8]))
	setup := tracker.DefaultSetup(width, height)
	if opt.MarkerMode == tracker.MarkerModeTemplate {
		setup.MaxLoadPatterns = max(1, len(all))
	}
	trk, err := tracker.Open(log, s.opener, setup)
	if err != nil {
		return nil, err
	}
	if err := trk.Init(s.Config.Calibration, opt); err != nil {
		trk.Close()
		return nil, err
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		markers:   map[int]markerdb.Marker{},
		models:    map[int]*wavefront.Model{},
	}
	for _, m := range all {
		trackerID := m.PatternID
		if opt.MarkerMode == tracker.MarkerModeTemplate {
			if m.PatternFile == "" {
				continue
			}
			if trackerID, err = trk.AddPattern(m.PatternFile); err != nil {
				log.Warnf("Marker %v: %v", m.Name, err)
				continue
			}
		}
		sess.markers[trackerID] = m
		if m.ModelFile != "" {
			model, err := s.loadModel(m.ModelFile)
			if err != nil {
				log.Warnf("Marker %v model: %v", m.Name, err)
			} else {
				sess.models[trackerID] = scaledModel(model, m.ModelScale)
			}
		}
	}

	monOpt := monitor.DefaultOptions()
	monOpt.MaxFPS = s.Config.MaxFPS
	monOpt.ForgetAfter = time.Duration(s.Config.ForgetAfterMS) * time.Millisecond
	monOpt.NV12 = s.Config.NV12()
	mon, err := monitor.New(log, trk, monOpt)
	if err != nil {
		trk.Close()
		return nil, err
	}
	sess.Monitor = mon

	s.sessionsLock.Lock()
	s.sessions[id] = sess
	s.sessionsOpening--
	reserved = false
	s.sessionsLock.Unlock()
	log.Infof("Opened (%v x %v, %v markers)", width, height, len(sess.markers))
	return sess, nil
}

func (s *Server) GetSession(id string) *Session {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	return s.sessions[id]
}

// CloseSession releases the session's tracker before returning
func (s *Server) CloseSession(id string) error {
	s.sessionsLock.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.sessionsLock.Unlock()
	if sess == nil {
		return ErrSessionNotFound
	}
	sess.Monitor.Close()
	return nil
}

func (s *Server) SessionIDs() []string {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Server) closeAllSessions() {
	for _, id := range s.SessionIDs() {
		s.CloseSession(id)
	}
}

// Returns a copy of model with every vertex scaled. Zero and one return model unchanged.
func scaledModel(model *wavefront.Model, scale float32) *wavefront.Model {
	if scale == 0 || scale == 1 {
		return model
	}
	cp := *model
	cp.Vertices = make([]geom.Vec3, len(model.Vertices))
	for i, v := range model.Vertices {
		cp.Vertices[i] = v.Scale(scale)
	}
	return &cp
}
