package manager

import (
	"path"
	"strings"
	"time"

	"github.com/NithinV404/tui-downloader/internal/aria2"
)

// maxSpeedHistory is the number of rate samples kept per transfer for
// graphing.
const maxSpeedHistory = 60

// State of a download. Waiting -> Active -> {Complete | Error}, with
// Active <-> Paused reachable any time before a terminal state. Terminal
// states never transition back; Retry mints a new GID instead.
type State int

const (
	Waiting State = iota
	Active
	Paused
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Active:
		return "ACTIVE"
	case Paused:
		return "PAUSED"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool { return s == Complete || s == Error }

// parseState normalizes a daemon status string. The second return value is
// false for states the table must not hold, such as "removed".
func parseState(s string) (State, bool) {
	switch strings.ToLower(s) {
	case "waiting":
		return Waiting, true
	case "active":
		return Active, true
	case "paused":
		return Paused, true
	case "complete":
		return Complete, true
	case "error":
		return Error, true
	default:
		return Waiting, false
	}
}

// Kind classifies how a download moves data.
type Kind int

const (
	KindHTTP Kind = iota
	KindTorrent
	KindMetalink
)

func (k Kind) String() string {
	switch k {
	case KindTorrent:
		return "torrent"
	case KindMetalink:
		return "metalink"
	default:
		return "http"
	}
}

// Download is one entry of the local transfer table.
type Download struct {
	// GID is the daemon-assigned handle, stable once issued.
	GID string
	// Name is for display; derived from the file list, the source string or
	// a magnet dn param. "Unknown" when nothing better is known.
	Name string
	// URL is the original source, known only for locally-initiated
	// additions. Discovered entries have no URL and cannot be retried.
	URL string
	// FilePath is the first file's path on disk as reported by the daemon.
	FilePath string

	State           State
	Kind            Kind
	TotalLength     uint64
	CompletedLength uint64
	DownloadSpeed   uint64
	UploadSpeed     uint64
	Connections     int
	ErrorMessage    string

	// SpeedHistory and UploadSpeedHistory are sliding windows of past rate
	// samples, oldest first, at most maxSpeedHistory long.
	SpeedHistory       []uint64
	UploadSpeedHistory []uint64

	// Torrent diagnostics.
	Seeders   int
	Peers     int
	Bitfield  string
	NumPieces int

	AddedAt time.Time
}

// Progress returns the completion ratio in [0, 1]. It is always derived from
// the byte counts, never copied from the daemon.
func (d *Download) Progress() float64 {
	if d.TotalLength == 0 {
		return 0
	}
	return float64(d.CompletedLength) / float64(d.TotalLength)
}

// update overwrites the daemon-observable fields from a snapshot and appends
// the current rates to the history windows. Locally-known-only fields (URL,
// Kind, AddedAt) are left alone.
func (d *Download) update(s *aria2.Status, st State) {
	d.State = st
	d.TotalLength = uint64(s.TotalLength)
	d.CompletedLength = uint64(s.CompletedLength)
	d.DownloadSpeed = uint64(s.DownloadSpeed)
	d.UploadSpeed = uint64(s.UploadSpeed)
	d.Connections = int(s.Connections)
	d.ErrorMessage = s.ErrorMessage
	d.Seeders = int(s.NumSeeders)
	d.Bitfield = s.Bitfield
	d.NumPieces = int(s.NumPieces)
	if name, filePath, ok := firstFile(s); ok {
		d.Name = name
		d.FilePath = filePath
	}
	if s.BitTorrent != nil {
		d.Kind = KindTorrent
		d.Peers = int(s.Connections)
		if s.BitTorrent.Info.Name != "" {
			d.Name = s.BitTorrent.Info.Name
		}
	}
	d.SpeedHistory = pushSample(d.SpeedHistory, uint64(s.DownloadSpeed))
	d.UploadSpeedHistory = pushSample(d.UploadSpeedHistory, uint64(s.UploadSpeed))
}

// newDownload synthesizes a table entry for a GID the daemon reported but the
// client never added, e.g. one persisted by the daemon across restarts.
func newDownload(s *aria2.Status, st State) *Download {
	d := &Download{
		GID:     s.GID,
		Name:    "Unknown",
		AddedAt: time.Now(),
	}
	d.update(s, st)
	// Seed both windows with the single current sample.
	d.SpeedHistory = []uint64{uint64(s.DownloadSpeed)}
	d.UploadSpeedHistory = []uint64{uint64(s.UploadSpeed)}
	return d
}

// clone returns a deep copy safe to hand to consumers.
func (d *Download) clone() Download {
	c := *d
	c.SpeedHistory = append([]uint64(nil), d.SpeedHistory...)
	c.UploadSpeedHistory = append([]uint64(nil), d.UploadSpeedHistory...)
	return c
}

func pushSample(history []uint64, sample uint64) []uint64 {
	history = append(history, sample)
	if len(history) > maxSpeedHistory {
		history = history[len(history)-maxSpeedHistory:]
	}
	return history
}

// firstFile extracts display name and path from the snapshot's first file
// record. Empty paths and empty basenames are rejected.
func firstFile(s *aria2.Status) (name, filePath string, ok bool) {
	if len(s.Files) == 0 || s.Files[0].Path == "" {
		return "", "", false
	}
	filePath = s.Files[0].Path
	name = path.Base(filePath)
	if name == "" || name == "." || name == "/" {
		return "", "", false
	}
	return name, filePath, true
}

// extractName derives a display name from a source string for the
// provisional entry created at add time.
func extractName(source string) string {
	trimmed := source
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimRight(trimmed, "/")
	name := trimmed
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		name = trimmed[i+1:]
	}
	if name == "" {
		return "Unknown"
	}
	return name
}
