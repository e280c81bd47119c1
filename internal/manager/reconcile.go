package manager

import (
	"time"

	"github.com/NithinV404/tui-downloader/internal/aria2"
)

// Run performs a reconcile pass on a fixed tick until Close is called. It is
// meant to run on its own goroutine, independent of any UI cadence.
func (m *Manager) Run() {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Reconcile()
		case <-m.closeC:
			return
		}
	}
}

// Reconcile fetches the three daemon partitions, merges each snapshot into
// the table through the shared merge rule and recomputes the aggregate
// stats. A partition fetch failure skips that partition for this pass; the
// next tick retries naturally.
func (m *Manager) Reconcile() {
	m.passes.Inc(1)

	for _, fetch := range []func() ([]aria2.Status, error){
		m.client.TellActive,
		func() ([]aria2.Status, error) { return m.client.TellWaiting(0, m.config.PageSize) },
		func() ([]aria2.Status, error) { return m.client.TellStopped(0, m.config.PageSize) },
	} {
		snapshots, err := fetch()
		if err != nil {
			m.rpcFailures.Inc(1)
			m.log.Debugln("reconcile fetch:", err)
			continue
		}
		m.merge(snapshots)
	}

	m.updateStats()
}

// merge applies the shared merge rule to one partition's snapshots. All three
// partitions route through here so the semantics cannot drift apart.
func (m *Manager) merge(snapshots []aria2.Status) {
	m.mDownloads.Lock()
	defer m.mDownloads.Unlock()
	for i := range snapshots {
		s := &snapshots[i]
		st, ok := parseState(s.Status)
		if !ok {
			// Daemon-side "removed" and unknown states have no place in
			// the table.
			continue
		}
		if m.isRemoved(s.GID) {
			continue
		}
		if d, exists := m.downloads[s.GID]; exists {
			d.update(s, st)
		} else {
			m.downloads[s.GID] = newDownload(s, st)
		}
	}
}

// updateStats recomputes the aggregates by a full classification pass over
// the table. The table is small; a wholesale recompute eliminates
// partial-update drift.
func (m *Manager) updateStats() {
	var stats Stats

	m.mDownloads.RLock()
	for _, d := range m.downloads {
		switch d.State {
		case Active:
			stats.NumActive++
			if n := len(d.SpeedHistory); n > 0 {
				stats.DownloadSpeed += d.SpeedHistory[n-1]
			}
			if n := len(d.UploadSpeedHistory); n > 0 {
				stats.UploadSpeed += d.UploadSpeedHistory[n-1]
			}
		case Waiting, Paused:
			stats.NumQueued++
		case Complete, Error:
			stats.NumStopped++
		}
	}
	stats.TotalDownloads = len(m.downloads)
	m.mDownloads.RUnlock()

	m.mStats.Lock()
	m.stats = stats
	m.mStats.Unlock()
}
