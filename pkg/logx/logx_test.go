package logx

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestPrefixLogger(t *testing.T) {
	var log logs.Log = NewPrefixLogger(logs.NewTestingLog(t), "Session 1234:")
	log.Infof("opened %v x %v", 640, 480)
	log.Warnf("warn")
	log.Errorf("error")
	log.Debugf("debug")
	require.Equal(t, "Session 1234: ", log.(*PrefixLogger).Prefix)
}

func TestThrottle(t *testing.T) {
	log := logs.NewTestingLog(t)
	th := NewThrottle(time.Hour)
	require.True(t, th.Errorf(log, "failed %v", 1))
	require.False(t, th.Errorf(log, "failed %v", 2))
	require.False(t, th.Errorf(log, "failed %v", 3))
	require.Equal(t, 2, th.suppressed)

	th.Interval = 0
	require.True(t, th.Errorf(log, "failed %v", 4))
	require.Equal(t, 0, th.suppressed)
}
