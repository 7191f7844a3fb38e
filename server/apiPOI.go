package server

import (
	"net/http"
	"strconv"

	"github.com/cyclopcam/implant/pkg/poi"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func queryFloat(r *http.Request, key string, required bool, def float64) float64 {
	v := www.QueryValue(r, key)
	if v == "" {
		if required {
			www.PanicBadRequestf("Must specify %v", key)
		}
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		www.PanicBadRequestf("Invalid number for %v: '%v'", key, v)
	}
	return f
}

// Points of interest near a location, nearest first.
// Example: curl 'localhost:8080/api/pois?lat=-33.92&lon=18.42&radius=2000'
func (s *Server) httpPOIs(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	origin := poi.Location{
		Latitude:  queryFloat(r, "lat", true, 0),
		Longitude: queryFloat(r, "lon", true, 0),
		Altitude:  queryFloat(r, "alt", false, 0),
	}
	if origin.Latitude < -90 || origin.Latitude > 90 || origin.Longitude < -180 || origin.Longitude > 180 {
		www.PanicBadRequestf("Location %v,%v is out of range", origin.Latitude, origin.Longitude)
	}
	radius := queryFloat(r, "radius", false, 5000)
	www.SendJSON(w, poi.Nearby(s.pois, origin, radius))
}
