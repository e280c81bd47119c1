package aria2

import (
	"encoding/json"
	"strconv"
)

// Uint is an unsigned integer that the daemon transmits as a decimal string.
type Uint uint64

// UnmarshalJSON implements json.Unmarshaler. Missing and empty values decode
// to zero.
func (u *Uint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint(n)
	return nil
}

// MarshalJSON implements json.Marshaler for symmetry with the wire format.
func (u Uint) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

// Status is one transfer snapshot as reported by the daemon.
type Status struct {
	GID             string      `json:"gid"`
	Status          string      `json:"status"`
	TotalLength     Uint        `json:"totalLength"`
	CompletedLength Uint        `json:"completedLength"`
	DownloadSpeed   Uint        `json:"downloadSpeed"`
	UploadSpeed     Uint        `json:"uploadSpeed"`
	Connections     Uint        `json:"connections"`
	ErrorCode       string      `json:"errorCode,omitempty"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	Files           []File      `json:"files,omitempty"`
	BitTorrent      *BitTorrent `json:"bittorrent,omitempty"`
	NumSeeders      Uint        `json:"numSeeders,omitempty"`
	NumPieces       Uint        `json:"numPieces,omitempty"`
	Bitfield        string      `json:"bitfield,omitempty"`
}

// File is one entry of a transfer's file list.
type File struct {
	Index           Uint   `json:"index"`
	Path            string `json:"path"`
	Length          Uint   `json:"length"`
	CompletedLength Uint   `json:"completedLength"`
	Selected        string `json:"selected"`
	URIs            []URI  `json:"uris,omitempty"`
}

// URI is one source address of a file.
type URI struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

// BitTorrent carries torrent metadata inside a Status. Its presence is what
// marks a transfer as a torrent.
type BitTorrent struct {
	Mode string `json:"mode,omitempty"`
	Info struct {
		Name string `json:"name"`
	} `json:"info,omitempty"`
}

// GlobalStat is the daemon's own aggregate view. The client recomputes its
// statistics from the local table; this is exposed for the stats command only.
type GlobalStat struct {
	DownloadSpeed   Uint `json:"downloadSpeed"`
	UploadSpeed     Uint `json:"uploadSpeed"`
	NumActive       Uint `json:"numActive"`
	NumWaiting      Uint `json:"numWaiting"`
	NumStopped      Uint `json:"numStopped"`
	NumStoppedTotal Uint `json:"numStoppedTotal"`
}

// VersionInfo is the daemon's version response, also used as the probe call.
type VersionInfo struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

// statusKeys is the fixed field set requested on every tell* call. Requesting
// an explicit list keeps the daemon's response shape predictable.
var statusKeys = []string{
	"gid",
	"status",
	"totalLength",
	"completedLength",
	"downloadSpeed",
	"uploadSpeed",
	"connections",
	"errorCode",
	"errorMessage",
	"files",
	"bittorrent",
	"numSeeders",
	"numPieces",
	"bitfield",
}
