package poi

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// All POIs read from a KML file are placed into a group with this name
const DefaultGroup = "default"

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlPlacemark struct {
	Name         string    `xml:"name"`
	Description  string    `xml:"description"`
	Coordinates  string    `xml:"Point>coordinates"`
	ExtendedData []kmlData `xml:"ExtendedData>Data"`
}

type kmlContainer struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
	Folders     []kmlContainer `xml:"Folder"`
}

type kmlRoot struct {
	Document   *kmlContainer  `xml:"Document"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlContainer `xml:"Folder"`
}

// ReadKML reads the placemarks of a KML document.
// Every placemark with a Point is returned, in document order, inside a single group named "default".
// Placemarks without a Point are skipped.
func ReadKML(r io.Reader) ([]*Group, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	root := kmlRoot{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("Invalid KML: %w", err)
	}

	group := NewGroup(DefaultGroup, "")
	all := []kmlContainer{{Placemarks: root.Placemarks, Folders: root.Folders}}
	if root.Document != nil {
		all = append(all, *root.Document)
	}
	for _, c := range all {
		if err := addContainer(group, &c); err != nil {
			return nil, err
		}
	}
	return []*Group{group}, nil
}

func LoadKMLFile(filename string) ([]*Group, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	groups, err := ReadKML(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return groups, nil
}

func addContainer(group *Group, c *kmlContainer) error {
	for _, pm := range c.Placemarks {
		if strings.TrimSpace(pm.Coordinates) == "" {
			continue
		}
		loc, err := ParseCoordinates(pm.Coordinates)
		if err != nil {
			return fmt.Errorf("Placemark '%v': %w", pm.Name, err)
		}
		p := &POI{
			Name:        strings.TrimSpace(pm.Name),
			Description: strings.TrimSpace(pm.Description),
			Location:    loc,
		}
		for _, d := range pm.ExtendedData {
			p.SetMetadata(d.Name, strings.TrimSpace(d.Value))
		}
		group.Add(p)
	}
	for i := range c.Folders {
		if err := addContainer(group, &c.Folders[i]); err != nil {
			return err
		}
	}
	return nil
}

// ParseCoordinates parses a KML coordinate tuple "longitude,latitude[,altitude]"
func ParseCoordinates(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Location{}, fmt.Errorf("Invalid coordinates '%v'", s)
	}
	vals := [3]float64{}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Location{}, fmt.Errorf("Invalid coordinates '%v': %w", s, err)
		}
		vals[i] = v
	}
	loc := Location{Longitude: vals[0], Latitude: vals[1], Altitude: vals[2]}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return Location{}, fmt.Errorf("Coordinates '%v' are out of range", s)
	}
	return loc, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("Unsupported KML charset '%v'", charset)
}
