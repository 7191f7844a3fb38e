package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/implant/pkg/accel"
	"github.com/cyclopcam/implant/pkg/overlay"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/cyclopcam/implant/server/streamer"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4096,
}

// Returns the requested frame size, falling back to the configured size
func (s *Server) frameSizeFromQuery(r *http.Request) (int, int) {
	width := www.QueryInt(r, "width")
	height := www.QueryInt(r, "height")
	if width == 0 && height == 0 {
		return s.Config.FrameWidth, s.Config.FrameHeight
	}
	if width <= 0 || height <= 0 || width > 8192 || height > 8192 {
		www.PanicBadRequestf("Invalid frame size %v x %v", width, height)
	}
	return width, height
}

func (s *Server) getSessionOrNotFound(w http.ResponseWriter, params httprouter.Params) *Session {
	sess := s.GetSession(params.ByName("id"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
	}
	return sess
}

// Read a width x height NV21 frame from the request body.
// A body that is too large or too small is a bad request.
func readFrameBody(r *http.Request, width, height int) []byte {
	size := int64(accel.NV21FrameSize(width, height))
	if r.Body == nil {
		www.PanicBadRequestf("Request body is empty")
	}
	defer r.Body.Close()
	frame, err := io.ReadAll(io.LimitReader(r.Body, size+1))
	www.Check(err)
	if int64(len(frame)) > size {
		www.PanicBadRequestf("Frame is larger than a %v x %v NV21 frame (%v bytes)", width, height, size)
	}
	www.CheckClient(accel.CheckNV21Frame(frame, width, height))
	return frame
}

func readFrame(r *http.Request, sess *Session) []byte {
	width, height := sess.Monitor.FrameSize()
	return readFrameBody(r, width, height)
}

func (s *Server) httpSessionOpen(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	width, height := s.frameSizeFromQuery(r)
	sess, err := s.OpenSession(width, height)
	if errors.Is(err, ErrTooManySessions) || errors.Is(err, tracker.ErrSetup) || errors.Is(err, tracker.ErrInitFailed) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)
	www.SendJSON(w, sess.toJSON())
}

func (s *Server) httpSessionList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	list := []*sessionJSON{}
	for _, id := range s.SessionIDs() {
		if sess := s.GetSession(id); sess != nil {
			list = append(list, sess.toJSON())
		}
	}
	www.SendJSON(w, list)
}

func (s *Server) httpSessionClose(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if err := s.CloseSession(params.ByName("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	www.SendOK(w)
}

func (s *Server) httpSessionFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	frame := readFrame(r, sess)
	result, err := sess.Monitor.ProcessFrame(frame)
	www.Check(err)
	www.SendJSON(w, result)
}

func (s *Server) httpSessionSubmit(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	frame := readFrame(r, sess)
	www.Check(sess.Monitor.SubmitFrame(frame))
	www.SendOK(w)
}

func (s *Server) httpSessionMarkers(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	www.SendJSON(w, sess.markerStates())
}

func (s *Server) httpSessionHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	id, err := strconv.Atoi(params.ByName("marker"))
	www.CheckClient(err)
	history := sess.Monitor.PoseHistory(id)
	if history == nil {
		http.Error(w, fmt.Sprintf("Marker %v has not been seen", id), http.StatusNotFound)
		return
	}
	www.SendJSON(w, history)
}

func (s *Server) httpSessionStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	www.SendJSON(w, sess.Monitor.Stats())
}

// Most recent frame, with the detected markers drawn on top
func (s *Server) httpSessionOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	img, result := sess.Monitor.LastRGB()
	if img == nil {
		http.Error(w, "No frame has been processed yet", http.StatusNotFound)
		return
	}
	opt := overlay.DefaultOptions()
	opt.MarkerSize = s.Config.PatternWidth
	drawn, err := overlay.Draw(img, result.Markers, sess.models, opt)
	www.Check(err)
	quality := www.QueryInt(r, "quality")
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	jpg, err := overlay.EncodeJPEG(drawn, quality)
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(jpg)
}

func (s *Server) httpSessionWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSessionOrNotFound(w, params)
	if sess == nil {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	streamer.RunFrameWebSocketStreamer(s.shutdownCtx, sess.ID[:8], s.Log, conn, sess.Monitor)
}

// Convert a single NV21 frame into a JPEG, without any tracking.
// Example: curl --data-binary @frame.nv21 -o frame.jpg 'localhost:8080/api/convert?width=320&height=240'
func (s *Server) httpConvert(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	width, height := s.frameSizeFromQuery(r)
	frame := readFrameBody(r, width, height)
	nv12 := s.Config.NV12()
	if order := www.QueryValue(r, "order"); order != "" {
		nv12 = order == "nv12"
	}
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	var err error
	if nv12 {
		err = accel.ConvertNV12(frame, width, height, img.Pixels)
	} else {
		err = accel.ConvertNV21(frame, width, height, img.Pixels)
	}
	www.CheckClient(err)
	jpg, err := overlay.EncodeJPEG(img, 90)
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}
