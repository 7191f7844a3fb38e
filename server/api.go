package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHTTP() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Each endpoint gets its own limiter, keyed by client IP
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	ratelimited("POST", "/api/session", s.httpSessionOpen, 10, time.Minute)
	handle("GET", "/api/sessions", s.httpSessionList)
	handle("DELETE", "/api/session/:id", s.httpSessionClose)
	ratelimited("POST", "/api/session/:id/frame", s.httpSessionFrame, 30, time.Second)
	ratelimited("POST", "/api/session/:id/submit", s.httpSessionSubmit, 30, time.Second)
	handle("GET", "/api/session/:id/markers", s.httpSessionMarkers)
	handle("GET", "/api/session/:id/history/:marker", s.httpSessionHistory)
	handle("GET", "/api/session/:id/stats", s.httpSessionStats)
	handle("GET", "/api/session/:id/overlay.jpg", s.httpSessionOverlay)
	handle("GET", "/api/session/:id/ws", s.httpSessionWebSocket)
	ratelimited("POST", "/api/convert", s.httpConvert, 10, time.Second)
	handle("GET", "/api/markers", s.httpMarkersList)
	handle("POST", "/api/markers", s.httpMarkersCreate)
	handle("DELETE", "/api/markers/:id", s.httpMarkersDelete)
	handle("GET", "/api/pois", s.httpPOIs)

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, map[string]any{
		"sessions": len(s.SessionIDs()),
		"pois":     len(s.pois) != 0,
	})
}
