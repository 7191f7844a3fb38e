// Package markerdb is the registry of markers that the server knows about.
// Every marker has a pattern id (the id that the tracker reports), and optionally
// a template pattern file and a 3D model to draw on top of it.
package markerdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("Marker not found")
var ErrDuplicate = errors.New("A marker with that pattern id already exists")

// SYNC-RECORD-MARKER
type Marker struct {
	ID          int64       `gorm:"primaryKey" json:"id"`
	PatternID   int         `json:"patternID"`                       // Id reported by the tracker
	Name        string      `json:"name"`                            // Friendly name
	PatternFile string      `json:"patternFile" gorm:"default:null"` // Template pattern, for template markers
	ModelFile   string      `json:"modelFile" gorm:"default:null"`   // Wavefront OBJ file drawn on the marker
	ModelScale  float32     `json:"modelScale" gorm:"default:null"`  // 0 means 1
	CreatedAt   dbh.IntTime `json:"createdAt"`
}

type MarkerDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open the marker database, creating it if necessary
func Open(log logs.Log, cfg dbh.DBConfig) (*MarkerDB, error) {
	migs, err := Migrations(log, cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == dbh.DriverSqlite {
		os.MkdirAll(filepath.Dir(cfg.Database), 0777)
	}
	db, err := dbh.OpenDB(log, cfg, migs, 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open marker database %v: %w", cfg.Database, err)
	}
	return &MarkerDB{
		Log: log,
		DB:  db,
	}, nil
}

func (m *MarkerDB) Close() {
	if sqlDB, err := m.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// Create a new marker. The ID and CreatedAt fields are populated.
func (m *MarkerDB) Create(marker *Marker) error {
	if marker.Name == "" {
		return fmt.Errorf("Marker name may not be empty")
	}
	if marker.PatternID < 0 {
		return fmt.Errorf("Invalid pattern id %v", marker.PatternID)
	}
	var count int64
	if err := m.DB.Model(&Marker{}).Where("pattern_id = ?", marker.PatternID).Count(&count).Error; err != nil {
		return err
	}
	if count != 0 {
		return fmt.Errorf("%w (%v)", ErrDuplicate, marker.PatternID)
	}
	marker.ID = 0
	marker.CreatedAt = dbh.MakeIntTime(time.Now())
	if err := m.DB.Create(marker).Error; err != nil {
		return err
	}
	m.Log.Infof("Created marker %v '%v' (pattern %v)", marker.ID, marker.Name, marker.PatternID)
	return nil
}

// All markers, ordered by pattern id
func (m *MarkerDB) All() ([]Marker, error) {
	markers := []Marker{}
	if err := m.DB.Order("pattern_id").Find(&markers).Error; err != nil {
		return nil, err
	}
	return markers, nil
}

func (m *MarkerDB) ByPatternID(patternID int) (*Marker, error) {
	marker := Marker{}
	res := m.DB.Where("pattern_id = ?", patternID).Limit(1).Find(&marker)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &marker, nil
}

func (m *MarkerDB) Delete(id int64) error {
	res := m.DB.Delete(&Marker{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	m.Log.Infof("Deleted marker %v", id)
	return nil
}
