package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/cyclopcam/implant/pkg/poi"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/pkg/wavefront"
	"github.com/cyclopcam/implant/server/config"
	"github.com/cyclopcam/implant/server/markerdb"
	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log      logs.Log
	Config   *config.Config
	MarkerDB *markerdb.MarkerDB

	opener     tracker.Opener
	pois       []*poi.Group
	httpServer *http.Server
	httpRouter *httprouter.Router

	// Cancelled on shutdown, which ends long running requests such as websockets
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	sessionsLock    sync.Mutex
	sessions        map[string]*Session
	sessionsOpening int // Slots reserved by OpenSession calls that are in progress

	modelsLock sync.Mutex
	models     map[string]*wavefront.Model // Loaded models, by filename
}

// NewServer opens the marker database and loads the POI file.
// New tracker sessions are created with opener.
func NewServer(log logs.Log, cfg *config.Config, opener tracker.Opener) (*Server, error) {
	s := &Server{
		Log:      log,
		Config:   cfg,
		opener:   opener,
		sessions: map[string]*Session{},
		models:   map[string]*wavefront.Model{},
	}
	s.shutdownCtx, s.shutdownCancel = context.WithCancel(context.Background())

	if cfg.Calibration != "" {
		if _, err := os.Stat(cfg.Calibration); err != nil {
			log.Warnf("Camera calibration file %v: %v", cfg.Calibration, err)
		}
	}

	db, err := markerdb.Open(log, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.MarkerDB = db

	if cfg.POIFile != "" {
		groups, err := poi.LoadKMLFile(cfg.POIFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("Failed to load POI file: %w", err)
		}
		n := 0
		for _, g := range groups {
			n += len(g.POIs)
		}
		log.Infof("Loaded %v points of interest from %v", n, cfg.POIFile)
		s.pois = groups
	}

	s.setupHTTP()
	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: s.httpRouter,
	}
	return s, nil
}

// ListenHTTP serves until Shutdown is called.
// If Shutdown has already been called, ListenHTTP returns immediately.
func (s *Server) ListenHTTP() error {
	s.Log.Infof("Listening on %v", s.Config.Listen)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler exposes the router, for tests and for embedding
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Shutdown stops the HTTP server, closes every session, and closes the marker database
func (s *Server) Shutdown(ctx context.Context) {
	s.Log.Infof("Shutting down")
	s.shutdownCancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("HTTP server shutdown: %v", err)
	}
	s.closeAllSessions()
	s.MarkerDB.Close()
	s.Log.Infof("Shutdown complete")
}

// Load a model, or return the cached copy
func (s *Server) loadModel(filename string) (*wavefront.Model, error) {
	path := s.Config.ResolveModel(filename)
	s.modelsLock.Lock()
	defer s.modelsLock.Unlock()
	if m, ok := s.models[path]; ok {
		return m, nil
	}
	m, err := wavefront.Load(path)
	if err != nil {
		return nil, err
	}
	s.models[path] = m
	return m, nil
}
