package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NithinV404/tui-downloader/internal/aria2"
)

// fakeClient is a scriptable daemon. Partition contents are set by tests;
// mutation calls are recorded.
type fakeClient struct {
	m       sync.Mutex
	nextGID int

	active  []aria2.Status
	waiting []aria2.Status
	stopped []aria2.Status

	addedURIs      []string
	forceRemoved   []string
	resultsRemoved []string
	purges         int
	paused         []string
	unpaused       []string

	downLimit, upLimit uint64

	// tellActiveHook runs after the active partition is fetched, before it
	// is returned. Used to interleave operations with a reconcile pass.
	tellActiveHook func()
}

func (f *fakeClient) newGID() string {
	f.nextGID++
	return fmt.Sprintf("gid%04d", f.nextGID)
}

func (f *fakeClient) AddURI(uri string) (string, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.addedURIs = append(f.addedURIs, uri)
	return f.newGID(), nil
}

func (f *fakeClient) AddTorrent(path string) (string, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return f.newGID(), nil
}

func (f *fakeClient) AddMetalink(path string) (string, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return f.newGID(), nil
}

func (f *fakeClient) TellActive() ([]aria2.Status, error) {
	f.m.Lock()
	out := append([]aria2.Status(nil), f.active...)
	hook := f.tellActiveHook
	f.m.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeClient) TellWaiting(offset, num int) ([]aria2.Status, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]aria2.Status(nil), f.waiting...), nil
}

func (f *fakeClient) TellStopped(offset, num int) ([]aria2.Status, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]aria2.Status(nil), f.stopped...), nil
}

func (f *fakeClient) Pause(gid string) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.paused = append(f.paused, gid)
	return nil
}

func (f *fakeClient) PauseAll() error { return nil }

func (f *fakeClient) Unpause(gid string) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.unpaused = append(f.unpaused, gid)
	return nil
}

func (f *fakeClient) UnpauseAll() error { return nil }

func (f *fakeClient) ForceRemove(gid string) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.forceRemoved = append(f.forceRemoved, gid)
	return nil
}

func (f *fakeClient) RemoveDownloadResult(gid string) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.resultsRemoved = append(f.resultsRemoved, gid)
	return nil
}

func (f *fakeClient) PurgeDownloadResult() error {
	f.m.Lock()
	defer f.m.Unlock()
	f.purges++
	return nil
}

func (f *fakeClient) ChangePosition(gid string, pos int, how string) (int, error) {
	return 0, nil
}

func (f *fakeClient) GetSpeedLimits() (uint64, uint64, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return f.downLimit, f.upLimit, nil
}

func (f *fakeClient) SetDownloadLimit(limit uint64) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.downLimit = limit
	return nil
}

func (f *fakeClient) SetUploadLimit(limit uint64) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.upLimit = limit
	return nil
}

func newTestManager(f *fakeClient) *Manager {
	cfg := DefaultConfig
	cfg.PollInterval = 10 * time.Millisecond
	cfg.SettleDelay = 0
	return New(f, cfg, nil)
}

func snapshot(gid, status string, total, completed, speed uint64) aria2.Status {
	return aria2.Status{
		GID:             gid,
		Status:          status,
		TotalLength:     aria2.Uint(total),
		CompletedLength: aria2.Uint(completed),
		DownloadSpeed:   aria2.Uint(speed),
	}
}

func TestAddMagnetSynthesizesEntry(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	gid, err := m.Add("magnet:?xt=urn:btih:ABC&dn=MyFile")
	require.NoError(t, err)

	// The provisional entry exists before any reconcile runs.
	d, ok := m.Download(gid)
	require.True(t, ok)
	assert.Equal(t, "MyFile", d.Name)
	assert.Equal(t, KindTorrent, d.Kind)
	assert.Equal(t, 0.0, d.Progress())
	assert.Equal(t, "magnet:?xt=urn:btih:ABC&dn=MyFile", d.URL)
	assert.Equal(t, Waiting, d.State)
}

func TestAddClassifiesSources(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	gid, err := m.Add("http://example.com/path/movie.mkv?auth=1")
	require.NoError(t, err)
	d, _ := m.Download(gid)
	assert.Equal(t, KindHTTP, d.Kind)
	assert.Equal(t, "movie.mkv", d.Name)

	gid, err = m.Add("http://example.com/mirror.meta4")
	require.NoError(t, err)
	d, _ = m.Download(gid)
	assert.Equal(t, KindMetalink, d.Kind)

	gid, err = m.Add("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)
	d, _ = m.Download(gid)
	assert.Equal(t, "Magnet Download", d.Name)
}

func TestReconcileAggregates(t *testing.T) {
	f := &fakeClient{
		active:  []aria2.Status{snapshot("a1", "active", 10<<20, 5<<20, 1048576)},
		waiting: []aria2.Status{snapshot("w1", "waiting", 1<<20, 0, 0)},
		stopped: []aria2.Status{snapshot("s1", "complete", 1<<20, 1<<20, 0)},
	}
	m := newTestManager(f)

	m.Reconcile()

	stats := m.Stats()
	assert.Equal(t, 1, stats.NumActive)
	assert.Equal(t, 1, stats.NumQueued)
	assert.Equal(t, 1, stats.NumStopped)
	assert.Equal(t, 3, stats.TotalDownloads)
	assert.Equal(t, uint64(1048576), stats.DownloadSpeed)

	assert.Len(t, m.ActiveDownloads(), 1)
	assert.Len(t, m.QueuedDownloads(), 1)
	assert.Len(t, m.CompletedDownloads(), 1)
}

func TestProgressDerivedFromByteCounts(t *testing.T) {
	f := &fakeClient{
		active: []aria2.Status{
			snapshot("a1", "active", 1000, 250, 0),
			snapshot("a2", "active", 0, 0, 0),
		},
	}
	m := newTestManager(f)
	m.Reconcile()

	d, _ := m.Download("a1")
	assert.Equal(t, 0.25, d.Progress())
	d, _ = m.Download("a2")
	assert.Equal(t, 0.0, d.Progress())
}

func TestSpeedHistoryBounded(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	for i := 0; i < maxSpeedHistory+40; i++ {
		f.m.Lock()
		f.active = []aria2.Status{snapshot("a1", "active", 100, 50, uint64(i))}
		f.m.Unlock()
		m.Reconcile()
	}

	d, ok := m.Download("a1")
	require.True(t, ok)
	require.Len(t, d.SpeedHistory, maxSpeedHistory)
	// Oldest first: the last sample is the most recent one.
	assert.Equal(t, uint64(maxSpeedHistory+39), d.SpeedHistory[len(d.SpeedHistory)-1])
	assert.Equal(t, uint64(40), d.SpeedHistory[0])
}

func TestMergePreservesLocalFields(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	gid, err := m.Add("http://example.com/f.iso")
	require.NoError(t, err)

	s := snapshot(gid, "active", 100, 10, 5)
	s.Files = []aria2.File{{Path: "/downloads/f.iso"}}
	f.m.Lock()
	f.active = []aria2.Status{s}
	f.m.Unlock()
	m.Reconcile()

	d, _ := m.Download(gid)
	assert.Equal(t, "http://example.com/f.iso", d.URL)
	assert.Equal(t, "f.iso", d.Name)
	assert.Equal(t, "/downloads/f.iso", d.FilePath)
	assert.Equal(t, Active, d.State)
}

func TestReconcileDiscoversUnknownGIDs(t *testing.T) {
	bt := snapshot("t1", "active", 100, 10, 7)
	bt.BitTorrent = &aria2.BitTorrent{}
	bt.Files = []aria2.File{{Path: "/downloads/linux.iso"}}
	bare := snapshot("h1", "waiting", 0, 0, 0)

	f := &fakeClient{active: []aria2.Status{bt}, waiting: []aria2.Status{bare}}
	m := newTestManager(f)
	m.Reconcile()

	d, ok := m.Download("t1")
	require.True(t, ok)
	assert.Equal(t, "linux.iso", d.Name)
	assert.Equal(t, KindTorrent, d.Kind)
	assert.Empty(t, d.URL)
	// Both rings seeded with the single current sample.
	assert.Equal(t, []uint64{7}, d.SpeedHistory)

	d, ok = m.Download("h1")
	require.True(t, ok)
	assert.Equal(t, "Unknown", d.Name)
	assert.Equal(t, KindHTTP, d.Kind)
}

func TestRemoveTombstonesGID(t *testing.T) {
	f := &fakeClient{active: []aria2.Status{snapshot("a1", "active", 100, 10, 0)}}
	m := newTestManager(f)
	m.Reconcile()

	m.Remove("a1")

	_, ok := m.Download("a1")
	assert.False(t, ok)
	assert.Equal(t, []string{"a1"}, f.forceRemoved)
	assert.Equal(t, []string{"a1"}, f.resultsRemoved)

	// The daemon still reports the GID; the tombstone keeps it out.
	m.Reconcile()
	_, ok = m.Download("a1")
	assert.False(t, ok)
}

func TestRemoveDuringReconcileRace(t *testing.T) {
	f := &fakeClient{active: []aria2.Status{snapshot("a1", "active", 100, 10, 0)}}
	m := newTestManager(f)
	m.Reconcile()

	// Interleave: the remove lands after the active partition was fetched
	// (still reporting a1) but before the merge runs.
	f.m.Lock()
	f.tellActiveHook = func() {
		f.m.Lock()
		f.tellActiveHook = nil
		f.m.Unlock()
		m.Remove("a1")
	}
	f.m.Unlock()

	m.Reconcile()

	_, ok := m.Download("a1")
	assert.False(t, ok)
}

func TestRetry(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	gid, err := m.Add("http://example.com/f.iso")
	require.NoError(t, err)

	// Simulate some progress before the failure.
	f.m.Lock()
	f.stopped = []aria2.Status{snapshot(gid, "error", 100, 60, 0)}
	f.m.Unlock()
	m.Reconcile()

	newGID, err := m.Retry(gid)
	require.NoError(t, err)
	assert.NotEqual(t, gid, newGID)

	_, ok := m.Download(gid)
	assert.False(t, ok)

	d, ok := m.Download(newGID)
	require.True(t, ok)
	assert.Equal(t, 0.0, d.Progress())
	assert.Equal(t, "http://example.com/f.iso", d.URL)
}

func TestRetryErrors(t *testing.T) {
	f := &fakeClient{waiting: []aria2.Status{snapshot("w1", "waiting", 0, 0, 0)}}
	m := newTestManager(f)
	m.Reconcile()

	// Discovered entry has no recorded source.
	_, err := m.Retry("w1")
	assert.ErrorIs(t, err, ErrNoURLAvailable)

	_, err = m.Retry("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeCompleted(t *testing.T) {
	f := &fakeClient{
		active: []aria2.Status{snapshot("a1", "active", 100, 10, 0)},
		stopped: []aria2.Status{
			snapshot("s1", "complete", 100, 100, 0),
			snapshot("s2", "error", 100, 0, 0),
		},
	}
	m := newTestManager(f)
	m.Reconcile()

	count := m.PurgeCompleted()
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, f.purges)

	_, ok := m.Download("a1")
	assert.True(t, ok)
	_, ok = m.Download("s1")
	assert.False(t, ok)
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "f.iso")
	require.NoError(t, os.WriteFile(filePath, []byte("data"), 0o644))

	s := snapshot("a1", "complete", 4, 4, 0)
	s.Files = []aria2.File{{Path: filePath}}
	f := &fakeClient{stopped: []aria2.Status{s}}
	m := newTestManager(f)
	m.Reconcile()

	require.NoError(t, m.DeleteFile("a1"))
	_, err := os.Stat(filePath)
	assert.True(t, os.IsNotExist(err))
	_, ok := m.Download("a1")
	assert.False(t, ok)
}

func TestDeleteFileMissingOnDisk(t *testing.T) {
	s := snapshot("a1", "complete", 4, 4, 0)
	s.Files = []aria2.File{{Path: filepath.Join(t.TempDir(), "gone.iso")}}
	f := &fakeClient{stopped: []aria2.Status{s}}
	m := newTestManager(f)
	m.Reconcile()

	// The filesystem error is reported but the entry is removed regardless.
	err := m.DeleteFile("a1")
	assert.Error(t, err)
	_, ok := m.Download("a1")
	assert.False(t, ok)

	assert.ErrorIs(t, m.DeleteFile("a1"), ErrNotFound)
}

func TestRemovedStateIgnored(t *testing.T) {
	f := &fakeClient{stopped: []aria2.Status{snapshot("r1", "removed", 0, 0, 0)}}
	m := newTestManager(f)
	m.Reconcile()

	_, ok := m.Download("r1")
	assert.False(t, ok)
}

func TestRunLoopStops(t *testing.T) {
	defer leaktest.Check(t)()

	f := &fakeClient{active: []aria2.Status{snapshot("a1", "active", 100, 10, 0)}}
	m := newTestManager(f)

	go m.Run()
	time.Sleep(50 * time.Millisecond)
	m.Close()
	time.Sleep(20 * time.Millisecond)

	assert.Greater(t, m.Counters().ReconcilePasses, int64(0))
	_, ok := m.Download("a1")
	assert.True(t, ok)
}

func TestPauseResumeDelegates(t *testing.T) {
	f := &fakeClient{}
	m := newTestManager(f)

	require.NoError(t, m.Pause("g1"))
	require.NoError(t, m.Resume("g1"))
	assert.Equal(t, []string{"g1"}, f.paused)
	assert.Equal(t, []string{"g1"}, f.unpaused)

	require.NoError(t, m.SetDownloadLimit(1024))
	down, up, err := m.SpeedLimits()
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), down)
	assert.Equal(t, uint64(0), up)
}
