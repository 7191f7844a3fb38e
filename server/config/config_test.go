package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/implant/pkg/tracker"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	fn := filepath.Join(t.TempDir(), "implant.json")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0644))
	return fn
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, dbh.DriverSqlite, cfg.Database.Driver)
	require.Equal(t, filepath.Join("data", "markers.sqlite"), cfg.Database.Database)
	require.Equal(t, 10.0, cfg.MaxFPS)
	require.False(t, cfg.NV12())

	opt, err := cfg.InitOptions()
	require.NoError(t, err)
	require.Equal(t, tracker.DefaultInitOptions(), opt)
}

func TestOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{
		"listen": "127.0.0.1:9000",
		"chromaOrder": "NV12",
		"markerMode": "template",
		"poseEstimator": "original-cont",
		"threshold": 90,
		"disableAutoThreshold": true,
		"autoThresholdRetries": 5,
		"nearClip": 0.5,
		"farClip": 50
	}`))
	require.NoError(t, err)
	require.True(t, cfg.NV12())
	opt, err := cfg.InitOptions()
	require.NoError(t, err)
	require.Equal(t, tracker.MarkerModeTemplate, opt.MarkerMode)
	require.Equal(t, tracker.PoseEstimatorOriginalCont, opt.PoseEstimator)
	require.Equal(t, 90, opt.Threshold)
	require.False(t, opt.AutoThreshold)
	require.Equal(t, 5, opt.AutoThresholdRetries)
	require.Equal(t, float32(0.5), opt.NearClip)
	require.Equal(t, float32(50), opt.FarClip)
}

func TestInvalid(t *testing.T) {
	for _, body := range []string{
		`{"markerMode": "qr"}`,
		`{"chromaOrder": "yuyv"}`,
		`{"threshold": 300}`,
		`{"nearClip": 10, "farClip": 5}`,
		`{not json`,
	} {
		_, err := LoadConfig(writeConfig(t, body))
		require.Error(t, err, body)
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestResolveModel(t *testing.T) {
	cfg := &Config{ModelDir: "models"}
	require.Equal(t, filepath.Join("models", "cube.obj"), cfg.ResolveModel("cube.obj"))
	require.Equal(t, "/abs/cube.obj", cfg.ResolveModel("/abs/cube.obj"))
	require.Equal(t, "", cfg.ResolveModel(""))
}
