// Package manager keeps the authoritative local table of transfers.
//
// A background reconcile loop polls the daemon's three partitions and merges
// every snapshot through one shared rule. User operations mutate the table
// synchronously with respect to the caller, independent of the polling
// cadence; a tombstone set guarantees removed transfers never reappear.
package manager

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/NithinV404/tui-downloader/internal/aria2"
	"github.com/NithinV404/tui-downloader/internal/history"
	"github.com/NithinV404/tui-downloader/internal/logger"
	"github.com/NithinV404/tui-downloader/internal/magnet"
	"github.com/NithinV404/tui-downloader/internal/metainfo"
)

var (
	// ErrNotFound means the operation referenced a GID absent from the table.
	ErrNotFound = errors.New("download not found")
	// ErrNoURLAvailable means Retry was attempted on an entry with no
	// recorded source, such as one discovered from the daemon.
	ErrNoURLAvailable = errors.New("no url available for retry")
)

// Client is the daemon surface the manager consumes. *aria2.Client satisfies
// it; tests substitute a fake.
type Client interface {
	AddURI(uri string) (string, error)
	AddTorrent(path string) (string, error)
	AddMetalink(path string) (string, error)
	TellActive() ([]aria2.Status, error)
	TellWaiting(offset, num int) ([]aria2.Status, error)
	TellStopped(offset, num int) ([]aria2.Status, error)
	Pause(gid string) error
	PauseAll() error
	Unpause(gid string) error
	UnpauseAll() error
	ForceRemove(gid string) error
	RemoveDownloadResult(gid string) error
	PurgeDownloadResult() error
	ChangePosition(gid string, pos int, how string) (int, error)
	GetSpeedLimits() (down, up uint64, err error)
	SetDownloadLimit(limit uint64) error
	SetUploadLimit(limit uint64) error
}

// Config for Manager.
type Config struct {
	// PollInterval is the reconcile cadence of the Run loop.
	PollInterval time.Duration
	// PageSize bounds the waiting and stopped partition queries.
	PageSize int
	// SettleDelay is how long Remove waits between forcing a transfer out of
	// the daemon's active set and purging its result record. The daemon
	// offers no acknowledgment to wait on, so this stays a tunable delay.
	SettleDelay time.Duration
}

var DefaultConfig = Config{
	PollInterval: time.Second,
	PageSize:     100,
	SettleDelay:  100 * time.Millisecond,
}

// Stats is the aggregate view over the local table, recomputed wholesale on
// every reconcile pass.
type Stats struct {
	NumActive      int
	NumQueued      int
	NumStopped     int
	TotalDownloads int
	// DownloadSpeed and UploadSpeed sum the latest history sample of every
	// active transfer.
	DownloadSpeed uint64
	UploadSpeed   uint64
}

// Counters are client-side operation counters, exposed for diagnostics.
type Counters struct {
	ReconcilePasses int64
	RPCFailures     int64
}

// Manager is the canonical in-memory store of transfers.
type Manager struct {
	client Client
	config Config
	urls   *history.History // may be nil
	log    logger.Logger

	mDownloads sync.RWMutex
	downloads  map[string]*Download

	mRemoved sync.RWMutex
	removed  map[string]struct{}

	mStats sync.RWMutex
	stats  Stats

	passes      metrics.Counter
	rpcFailures metrics.Counter

	closeC chan struct{}
	closed sync.Once
}

// New returns a Manager polling the given client. urls may be nil to disable
// URL history recording.
func New(client Client, cfg Config, urls *history.History) *Manager {
	return &Manager{
		client:      client,
		config:      cfg,
		urls:        urls,
		log:         logger.New("manager"),
		downloads:   make(map[string]*Download),
		removed:     make(map[string]struct{}),
		passes:      metrics.NewCounter(),
		rpcFailures: metrics.NewCounter(),
		closeC:      make(chan struct{}),
	}
}

// Close stops the Run loop. It does not touch the daemon; callers own the
// transport's shutdown sequencing.
func (m *Manager) Close() {
	m.closed.Do(func() { close(m.closeC) })
}

// Add classifies the source, submits it to the daemon and synthesizes a
// provisional zero-progress entry keyed by the returned GID. The source is
// recorded on the entry for later Retry use.
func (m *Manager) Add(source string) (string, error) {
	source = strings.TrimSpace(source)

	var (
		gid  string
		err  error
		kind Kind
		name string
	)
	switch {
	case strings.HasPrefix(source, "magnet:"):
		kind = KindTorrent
		name = "Magnet Download"
		if mag, merr := magnet.Parse(source); merr == nil && mag.Name != "" {
			name = mag.Name
		}
		gid, err = m.client.AddURI(source)
	case strings.HasSuffix(source, ".torrent"):
		kind = KindTorrent
		name = extractName(source)
		if n, nerr := metainfo.NameFromFile(source); nerr == nil {
			name = n
		}
		gid, err = m.client.AddTorrent(source)
	case strings.HasSuffix(source, ".metalink") || strings.HasSuffix(source, ".meta4"):
		kind = KindMetalink
		name = extractName(source)
		gid, err = m.client.AddMetalink(source)
	default:
		kind = KindHTTP
		name = extractName(source)
		gid, err = m.client.AddURI(source)
	}
	if err != nil {
		return "", err
	}

	now := time.Now()
	d := &Download{
		GID:                gid,
		Name:               name,
		URL:                source,
		State:              Waiting,
		Kind:               kind,
		SpeedHistory:       []uint64{0},
		UploadSpeedHistory: []uint64{0},
		AddedAt:            now,
	}
	m.mDownloads.Lock()
	m.downloads[gid] = d
	m.mDownloads.Unlock()

	if m.urls != nil {
		if herr := m.urls.Add(source); herr != nil {
			m.log.Debugln("url history:", herr)
		}
	}
	return gid, nil
}

// Remove tombstones the GID, drops it from the table and then cleans up the
// daemon side best effort. The tombstone is written before anything else so
// an in-flight reconcile that still reports the GID cannot reinsert it.
func (m *Manager) Remove(gid string) {
	m.mRemoved.Lock()
	m.removed[gid] = struct{}{}
	m.mRemoved.Unlock()

	m.mDownloads.Lock()
	delete(m.downloads, gid)
	m.mDownloads.Unlock()

	// An active transfer must be forced out before its history record can
	// be purged; the settle delay approximates the daemon's processing of
	// the first step. Local state is authoritative regardless of failures
	// here.
	if err := m.client.ForceRemove(gid); err != nil {
		m.log.Debugln("force remove:", err)
	}
	time.Sleep(m.config.SettleDelay)
	if err := m.client.RemoveDownloadResult(gid); err != nil {
		m.log.Debugln("remove result:", err)
	}
}

// DeleteFile removes the download and then deletes its file from disk. The
// two steps are not transactional: a filesystem failure is returned to the
// caller but the table removal stands.
func (m *Manager) DeleteFile(gid string) error {
	d, ok := m.Download(gid)
	if !ok {
		return ErrNotFound
	}
	m.Remove(gid)
	if d.FilePath == "" {
		return nil
	}
	if err := os.Remove(d.FilePath); err != nil {
		return fmt.Errorf("delete %s: %w", d.Name, err)
	}
	return nil
}

// Retry removes the download and re-adds its recorded source, yielding a new
// GID and a fresh zero-progress entry. Entries discovered from the daemon
// have no source and cannot be retried.
func (m *Manager) Retry(gid string) (string, error) {
	d, ok := m.Download(gid)
	if !ok {
		return "", ErrNotFound
	}
	if d.URL == "" {
		return "", ErrNoURLAvailable
	}
	m.Remove(gid)
	return m.Add(d.URL)
}

// PurgeCompleted removes every entry in a terminal state and returns how many
// were removed. The daemon's own result history is purged afterwards, best
// effort.
func (m *Manager) PurgeCompleted() int {
	m.mDownloads.RLock()
	gids := make([]string, 0)
	for gid, d := range m.downloads {
		if d.State.Terminal() {
			gids = append(gids, gid)
		}
	}
	m.mDownloads.RUnlock()

	for _, gid := range gids {
		m.Remove(gid)
	}
	if err := m.client.PurgeDownloadResult(); err != nil {
		m.log.Debugln("purge results:", err)
	}
	return len(gids)
}

// Pause pauses one download.
func (m *Manager) Pause(gid string) error { return m.client.Pause(gid) }

// Resume resumes one paused download.
func (m *Manager) Resume(gid string) error { return m.client.Unpause(gid) }

// PauseAll pauses every download.
func (m *Manager) PauseAll() error { return m.client.PauseAll() }

// ResumeAll resumes every paused download.
func (m *Manager) ResumeAll() error { return m.client.UnpauseAll() }

// MoveUp moves a download one position towards the front of the queue.
func (m *Manager) MoveUp(gid string) error {
	_, err := m.client.ChangePosition(gid, -1, "POS_CUR")
	return err
}

// MoveDown moves a download one position towards the back of the queue.
func (m *Manager) MoveDown(gid string) error {
	_, err := m.client.ChangePosition(gid, 1, "POS_CUR")
	return err
}

// SpeedLimits returns the global download and upload caps, zero meaning
// unlimited.
func (m *Manager) SpeedLimits() (down, up uint64, err error) {
	return m.client.GetSpeedLimits()
}

// SetDownloadLimit sets the global download cap.
func (m *Manager) SetDownloadLimit(limit uint64) error {
	return m.client.SetDownloadLimit(limit)
}

// SetUploadLimit sets the global upload cap.
func (m *Manager) SetUploadLimit(limit uint64) error {
	return m.client.SetUploadLimit(limit)
}

// Download returns a copy of one entry.
func (m *Manager) Download(gid string) (Download, bool) {
	m.mDownloads.RLock()
	defer m.mDownloads.RUnlock()
	d, ok := m.downloads[gid]
	if !ok {
		return Download{}, false
	}
	return d.clone(), true
}

// Downloads returns a copy of every entry.
func (m *Manager) Downloads() []Download {
	return m.filter(func(*Download) bool { return true })
}

// ActiveDownloads returns the entries currently transferring.
func (m *Manager) ActiveDownloads() []Download {
	return m.filter(func(d *Download) bool { return d.State == Active })
}

// QueuedDownloads returns the waiting and paused entries.
func (m *Manager) QueuedDownloads() []Download {
	return m.filter(func(d *Download) bool { return d.State == Waiting || d.State == Paused })
}

// CompletedDownloads returns the entries in a terminal state.
func (m *Manager) CompletedDownloads() []Download {
	return m.filter(func(d *Download) bool { return d.State.Terminal() })
}

func (m *Manager) filter(keep func(*Download) bool) []Download {
	m.mDownloads.RLock()
	defer m.mDownloads.RUnlock()
	out := make([]Download, 0, len(m.downloads))
	for _, d := range m.downloads {
		if keep(d) {
			out = append(out, d.clone())
		}
	}
	return out
}

// Stats returns the aggregate view computed by the last reconcile pass.
func (m *Manager) Stats() Stats {
	m.mStats.RLock()
	defer m.mStats.RUnlock()
	return m.stats
}

// Counters returns client-side operation counters.
func (m *Manager) Counters() Counters {
	return Counters{
		ReconcilePasses: m.passes.Count(),
		RPCFailures:     m.rpcFailures.Count(),
	}
}

func (m *Manager) isRemoved(gid string) bool {
	m.mRemoved.RLock()
	defer m.mRemoved.RUnlock()
	_, ok := m.removed[gid]
	return ok
}
