package monitor

import "github.com/cyclopcam/implant/pkg/gen"

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 30

// Watch registers to receive the result of every processed frame
func (m *Monitor) Watch() chan *FrameResult {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *FrameResult, WatcherChannelSize)
	m.watchers = append(m.watchers, ch)
	return ch
}

// Unwatch unregisters a channel returned by Watch
func (m *Monitor) Unwatch(ch chan *FrameResult) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	n := len(m.watchers)
	m.watchers = gen.DeleteFirst(m.watchers, ch)
	if len(m.watchers) == n {
		m.Log.Warnf("Monitor.Unwatch failed to find channel")
	}
}

func (m *Monitor) sendToWatchers(result *FrameResult) {
	m.watchersLock.RLock()
	defer m.watchersLock.RUnlock()
	// A stalled watcher must not stall the others, so we drop frames instead of blocking
	for _, ch := range m.watchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			m.errThrottle.Errorf(m.Log, "Monitor watcher is falling behind. Dropping frames.")
		} else {
			ch <- result
		}
	}
}
