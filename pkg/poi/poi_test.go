package poi

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const testKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
<Document>
	<name>Pharmacies</name>
	<Placemark>
		<name>Central</name>
		<description><![CDATA[Open <b>24h</b>]]></description>
		<Point><coordinates>-9.1393,38.7223,15</coordinates></Point>
	</Placemark>
	<Folder>
		<name>North</name>
		<Placemark>
			<name>Avenida</name>
			<Point><coordinates> -9.1450,38.7400 </coordinates></Point>
			<ExtendedData><Data name="phone"><value>213 000 000</value></Data></ExtendedData>
		</Placemark>
	</Folder>
	<Placemark>
		<name>Just a line</name>
		<LineString><coordinates>0,0 1,1</coordinates></LineString>
	</Placemark>
</Document>
</kml>`

func TestReadKML(t *testing.T) {
	groups, err := ReadKML(strings.NewReader(testKML))
	require.NoError(t, err)
	require.Equal(t, 1, len(groups))
	g := groups[0]
	require.Equal(t, DefaultGroup, g.Name)

	expect := []*POI{
		{
			ID:          1,
			Name:        "Central",
			Description: "Open <b>24h</b>",
			Location:    Location{Latitude: 38.7223, Longitude: -9.1393, Altitude: 15},
		},
		{
			ID:       2,
			Name:     "Avenida",
			Location: Location{Latitude: 38.7400, Longitude: -9.1450},
			Metadata: map[string]string{"phone": "213 000 000"},
		},
	}
	if diff := cmp.Diff(expect, g.POIs); diff != "" {
		t.Fatalf("KML mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKMLLatin1(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?><kml><Document><Placemark><name>Farmácia</name><Point><coordinates>1,2,3</coordinates></Point></Placemark></Document></kml>`
	encoded, err := charmap.ISO8859_1.NewEncoder().String(doc)
	require.NoError(t, err)
	groups, err := ReadKML(bytes.NewReader([]byte(encoded)))
	require.NoError(t, err)
	require.Equal(t, "Farmácia", groups[0].POIs[0].Name)
}

func TestReadKMLErrors(t *testing.T) {
	_, err := ReadKML(strings.NewReader(`<kml><Document><Placemark><name>Bad</name><Point><coordinates>abc,1</coordinates></Point></Placemark></Document></kml>`))
	require.ErrorContains(t, err, "Bad")
	_, err = ReadKML(strings.NewReader(`<kml><Document>`))
	require.Error(t, err)
	_, err = LoadKMLFile("/nonexistent/file.kml")
	require.Error(t, err)
}

func TestParseCoordinates(t *testing.T) {
	loc, err := ParseCoordinates("10.5,-20.25")
	require.NoError(t, err)
	require.Equal(t, Location{Longitude: 10.5, Latitude: -20.25}, loc)
	_, err = ParseCoordinates("1")
	require.Error(t, err)
	_, err = ParseCoordinates("1,2,3,4")
	require.Error(t, err)
	_, err = ParseCoordinates("1,95")
	require.Error(t, err)
}

func TestGroupAdd(t *testing.T) {
	g := NewGroup("g", "")
	g.Add(&POI{Name: "a"})
	g.Add(&POI{ID: 42, Name: "b"})
	g.Add(&POI{Name: "c"})
	require.Equal(t, 1, g.POIs[0].ID)
	require.Equal(t, 42, g.POIs[1].ID)
	require.Equal(t, 3, g.POIs[2].ID)
}

func TestDistanceBearing(t *testing.T) {
	a := Location{Latitude: 0, Longitude: 0}
	b := Location{Latitude: 0, Longitude: 1}
	// One degree of longitude at the equator
	require.InDelta(t, EarthRadius*math.Pi/180, Distance(a, b), 1)
	require.InDelta(t, 90, Bearing(a, b), 1e-6)
	require.InDelta(t, 270, Bearing(b, a), 1e-6)
	require.InDelta(t, 0, Bearing(a, Location{Latitude: 1}), 1e-6)
	require.InDelta(t, 180, Bearing(Location{Latitude: 1}, a), 1e-6)

	lat, lon := Destination(0, 0, 90, Distance(a, b))
	require.InDelta(t, 0, lat, 1e-9)
	require.InDelta(t, 1, lon, 1e-9)
}

func TestLocationToVector(t *testing.T) {
	origin := Location{Latitude: 38.7, Longitude: -9.1, Altitude: 100}

	north := Location{Latitude: 38.71, Longitude: -9.1, Altitude: 110}
	v := LocationToVector(origin, north)
	require.Less(t, v.Z, float32(0))
	require.InDelta(t, 0, v.X, 1e-3)
	require.InDelta(t, 10, v.Y, 1e-3)
	require.InDelta(t, 1112, -v.Z, 2)

	west := Location{Latitude: 38.7, Longitude: -9.11, Altitude: 100}
	v = LocationToVector(origin, west)
	require.Less(t, v.X, float32(0))
	require.InDelta(t, 0, v.Z, 1e-3)

	// Round trip
	p := Location{Latitude: 38.695, Longitude: -9.09, Altitude: 80}
	back := VectorToLocation(LocationToVector(origin, p), origin)
	require.InDelta(t, p.Latitude, back.Latitude, 1e-5)
	require.InDelta(t, p.Longitude, back.Longitude, 1e-5)
	require.InDelta(t, p.Altitude, back.Altitude, 1e-3)
}

func TestGeoreference(t *testing.T) {
	g := NewGeoreference(Location{Latitude: 1, Longitude: 1})
	// Identity rotation looks along +X, which is east
	require.Equal(t, float32(0), g.Azimuth())
	require.InDelta(t, 0, g.Pitch(), 1e-4)

	// Quarter turn about Y
	g.SetRotation(geom.Matrix3{
		0, 0, 1,
		0, 1, 0,
		-1, 0, 0,
	})
	require.Equal(t, float32(90), g.Azimuth())

	d, b := g.DistanceTo(Location{Latitude: 1, Longitude: 1.001})
	require.InDelta(t, 111, d, 1)
	require.InDelta(t, 90, b, 0.01)
	require.Equal(t, Location{Latitude: 1, Longitude: 1}, g.Location())
	g.SetLocation(Location{Latitude: 2})
	require.Equal(t, 2.0, g.Location().Latitude)
}

func TestNearby(t *testing.T) {
	g := NewGroup(DefaultGroup, "")
	g.Add(&POI{Name: "far", Location: Location{Latitude: 0.1}})
	g.Add(&POI{Name: "near", Location: Location{Latitude: 0.001}})
	g.Add(&POI{Name: "mid", Location: Location{Longitude: 0.01}})
	origin := Location{}

	all := Nearby([]*Group{g}, origin, 0)
	require.Equal(t, 3, len(all))
	require.Equal(t, "near", all[0].Name)
	require.Equal(t, "mid", all[1].Name)
	require.Equal(t, "far", all[2].Name)
	require.Equal(t, "111m", all[0].DistanceText)
	require.Equal(t, "11km", all[2].DistanceText)
	require.Equal(t, DefaultGroup, all[0].Group)

	within := Nearby([]*Group{g}, origin, 2000)
	require.Equal(t, 2, len(within))
}
