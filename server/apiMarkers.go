package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cyclopcam/implant/server/markerdb"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpMarkersList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	markers, err := s.MarkerDB.All()
	www.Check(err)
	www.SendJSON(w, markers)
}

// New markers are only registered with sessions that are opened afterwards
func (s *Server) httpMarkersCreate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	marker := markerdb.Marker{}
	www.ReadJSON(w, r, &marker, 64*1024)
	if marker.ModelFile != "" {
		_, err := s.loadModel(marker.ModelFile)
		www.CheckClient(err)
	}
	err := s.MarkerDB.Create(&marker)
	if errors.Is(err, markerdb.ErrDuplicate) {
		www.PanicBadRequestf("%v", err)
	}
	www.CheckClient(err)
	www.SendJSON(w, &marker)
}

func (s *Server) httpMarkersDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	www.CheckClient(err)
	err = s.MarkerDB.Delete(id)
	if errors.Is(err, markerdb.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	www.Check(err)
	www.SendOK(w)
}
