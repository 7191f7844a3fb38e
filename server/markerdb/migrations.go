package markerdb

import (
	"fmt"

	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

// Schema changes, in order, written for driver
func migrationSQL(driver string) ([]string, error) {
	var idColumn, timeColumn string
	switch driver {
	case dbh.DriverSqlite:
		idColumn = "INTEGER PRIMARY KEY"
		timeColumn = "INT"
	case dbh.DriverPostgres:
		idColumn = "BIGSERIAL PRIMARY KEY"
		timeColumn = "BIGINT"
	default:
		return nil, fmt.Errorf("Unsupported database driver '%v'", driver)
	}
	return []string{
		fmt.Sprintf(`
		CREATE TABLE marker(
			id %v,
			pattern_id INT NOT NULL,
			name TEXT NOT NULL,
			pattern_file TEXT,
			model_file TEXT,
			created_at %v NOT NULL
		);
		CREATE UNIQUE INDEX idx_marker_pattern_id ON marker (pattern_id);
		`, idColumn, timeColumn),
		`
		ALTER TABLE marker ADD COLUMN model_scale REAL;
		`,
	}, nil
}

func Migrations(log logs.Log, driver string) ([]migration.Migrator, error) {
	all, err := migrationSQL(driver)
	if err != nil {
		return nil, err
	}
	migs := []migration.Migrator{}
	idx := 0
	for _, sql := range all {
		migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx, sql))
	}
	return migs, nil
}
