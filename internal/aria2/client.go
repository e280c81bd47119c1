// Package aria2 provides typed access to an aria2c daemon's JSON-RPC surface
// and owns the daemon's process lifecycle.
package aria2

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/powerman/rpc-codec/jsonrpc2"

	"github.com/NithinV404/tui-downloader/internal/logger"
)

// Config for Client.
type Config struct {
	// RPCHost and RPCPort locate the daemon's JSON-RPC endpoint.
	RPCHost string
	RPCPort int
	// Secret is the shared token prepended to every call's parameter list.
	Secret string
	// DownloadDir overrides the resolved platform download directory.
	DownloadDir string
	// HTTPTimeout bounds every RPC call. There is no per-call cancellation;
	// a hung daemon blocks the caller for at most this long.
	HTTPTimeout time.Duration
	// StartupTimeout is the total wait budget for the daemon to become
	// reachable after it is spawned.
	StartupTimeout time.Duration

	MaxConnectionsPerServer int
	MaxConcurrentDownloads  int
	MinSplitSize            string
	BTMaxPeers              int
	SeedTime                int
}

var DefaultConfig = Config{
	RPCHost:                 "127.0.0.1",
	RPCPort:                 6800,
	Secret:                  "tui-downloader-secret",
	HTTPTimeout:             30 * time.Second,
	StartupTimeout:          15 * time.Second,
	MaxConnectionsPerServer: 16,
	MaxConcurrentDownloads:  5,
	MinSplitSize:            "1M",
	BTMaxPeers:              50,
	SeedTime:                0,
}

// Client issues typed JSON-RPC calls to one aria2c daemon. If the daemon was
// spawned by this client, Shutdown kills and reaps it.
type Client struct {
	config Config
	url    string
	httpc  *http.Client
	proc   *process
	log    logger.Logger
}

// New returns a new Client. It does not touch the network; call
// EnsureAvailable before issuing RPC calls.
func New(cfg Config) *Client {
	return &Client{
		config: cfg,
		url:    fmt.Sprintf("http://%s:%d/jsonrpc", cfg.RPCHost, cfg.RPCPort),
		httpc:  &http.Client{Timeout: cfg.HTTPTimeout},
		proc:   &process{},
		log:    logger.New("aria2"),
	}
}

// call issues one JSON-RPC request with the secret token prepended.
// A fresh codec is created per call; the underlying TCP connections are
// pooled by the shared HTTP client.
func (c *Client) call(method string, params []interface{}, reply interface{}) error {
	args := make([]interface{}, 0, len(params)+1)
	args = append(args, "token:"+c.config.Secret)
	args = append(args, params...)

	clt := jsonrpc2.NewCustomHTTPClient(c.url, c.httpc)
	defer clt.Close()

	err := clt.Call(method, args, reply)
	if err == nil {
		return nil
	}
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return &RPCError{Method: method, Err: rpcErr}
	}
	return err
}

// EnsureAvailable probes the daemon and spawns one if nothing answers.
// It is idempotent: a reachable daemon makes it a no-op.
func (c *Client) EnsureAvailable() error {
	_, err := c.GetVersion()
	if err == nil {
		return nil
	}
	if !IsTransportError(err) {
		// The daemon answered, even if with an error. Likely a secret
		// mismatch; spawning another instance would not help.
		return err
	}

	c.log.Infoln("daemon not running, spawning aria2c")
	if err := c.proc.spawn(c.spawnArgs()); err != nil {
		return &StartupError{Err: err}
	}
	if err := c.waitReachable(); err != nil {
		return &StartupError{Err: err}
	}
	c.log.Infoln("daemon is up")
	return nil
}

// GetVersion returns the daemon version. It doubles as the availability probe.
func (c *Client) GetVersion() (*VersionInfo, error) {
	var reply VersionInfo
	return &reply, c.call("aria2.getVersion", nil, &reply)
}

// AddURI submits a plain URI (HTTP/FTP/magnet) and returns the new GID.
func (c *Client) AddURI(uri string) (string, error) {
	var gid string
	err := c.call("aria2.addUri", []interface{}{[]string{uri}}, &gid)
	return gid, err
}

// AddTorrent reads the torrent file at path and submits it as an encoded
// blob, returning the new GID.
func (c *Client) AddTorrent(path string) (string, error) {
	return c.addBlob("aria2.addTorrent", path)
}

// AddMetalink reads the metalink file at path and submits it as an encoded
// blob, returning the GID of the first resulting download.
func (c *Client) AddMetalink(path string) (string, error) {
	return c.addBlob("aria2.addMetalink", path)
}

func (c *Client) addBlob(method, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(b)
	if method == "aria2.addMetalink" {
		// addMetalink returns a list of GIDs, one per file in the metalink.
		var gids []string
		if err := c.call(method, []interface{}{encoded}, &gids); err != nil {
			return "", err
		}
		if len(gids) == 0 {
			return "", errors.New("daemon returned no gid")
		}
		return gids[0], nil
	}
	var gid string
	return gid, c.call(method, []interface{}{encoded}, &gid)
}

// TellStatus returns the snapshot for one transfer.
func (c *Client) TellStatus(gid string) (*Status, error) {
	var reply Status
	return &reply, c.call("aria2.tellStatus", []interface{}{gid, statusKeys}, &reply)
}

// GetFiles returns the file list of one transfer.
func (c *Client) GetFiles(gid string) ([]File, error) {
	var reply []File
	return reply, c.call("aria2.getFiles", []interface{}{gid}, &reply)
}

// TellActive returns the active partition.
func (c *Client) TellActive() ([]Status, error) {
	var reply []Status
	return reply, c.call("aria2.tellActive", []interface{}{statusKeys}, &reply)
}

// TellWaiting returns a page of the waiting partition.
func (c *Client) TellWaiting(offset, num int) ([]Status, error) {
	var reply []Status
	return reply, c.call("aria2.tellWaiting", []interface{}{offset, num, statusKeys}, &reply)
}

// TellStopped returns a page of the stopped partition.
func (c *Client) TellStopped(offset, num int) ([]Status, error) {
	var reply []Status
	return reply, c.call("aria2.tellStopped", []interface{}{offset, num, statusKeys}, &reply)
}

// Pause pauses one transfer.
func (c *Client) Pause(gid string) error {
	var reply string
	return c.call("aria2.pause", []interface{}{gid}, &reply)
}

// PauseAll pauses every transfer.
func (c *Client) PauseAll() error {
	var reply string
	return c.call("aria2.pauseAll", nil, &reply)
}

// Unpause resumes one paused transfer.
func (c *Client) Unpause(gid string) error {
	var reply string
	return c.call("aria2.unpause", []interface{}{gid}, &reply)
}

// UnpauseAll resumes every paused transfer.
func (c *Client) UnpauseAll() error {
	var reply string
	return c.call("aria2.unpauseAll", nil, &reply)
}

// Remove removes one transfer from the daemon's active set.
func (c *Client) Remove(gid string) error {
	var reply string
	return c.call("aria2.remove", []interface{}{gid}, &reply)
}

// ForceRemove removes one transfer without waiting for in-flight work.
func (c *Client) ForceRemove(gid string) error {
	var reply string
	return c.call("aria2.forceRemove", []interface{}{gid}, &reply)
}

// RemoveDownloadResult drops one transfer from the daemon's stopped history.
func (c *Client) RemoveDownloadResult(gid string) error {
	var reply string
	return c.call("aria2.removeDownloadResult", []interface{}{gid}, &reply)
}

// PurgeDownloadResult drops every completed/errored/removed result from the
// daemon's history.
func (c *Client) PurgeDownloadResult() error {
	var reply string
	return c.call("aria2.purgeDownloadResult", nil, &reply)
}

// ChangePosition repositions a transfer in the daemon's queue and returns the
// resulting position.
func (c *Client) ChangePosition(gid string, pos int, how string) (int, error) {
	var reply int
	return reply, c.call("aria2.changePosition", []interface{}{gid, pos, how}, &reply)
}

// GetGlobalStat returns the daemon's aggregate counters.
func (c *Client) GetGlobalStat() (*GlobalStat, error) {
	var reply GlobalStat
	return &reply, c.call("aria2.getGlobalStat", nil, &reply)
}

// GetGlobalOptions returns the daemon's global option map.
func (c *Client) GetGlobalOptions() (map[string]string, error) {
	var reply map[string]string
	return reply, c.call("aria2.getGlobalOption", nil, &reply)
}

// SetGlobalOption sets one global daemon option.
func (c *Client) SetGlobalOption(name, value string) error {
	var reply string
	return c.call("aria2.changeGlobalOption", []interface{}{map[string]string{name: value}}, &reply)
}

// GetSpeedLimits returns the global download and upload caps in bytes per
// second. Zero means unlimited.
func (c *Client) GetSpeedLimits() (down, up uint64, err error) {
	opts, err := c.GetGlobalOptions()
	if err != nil {
		return 0, 0, err
	}
	down, _ = strconv.ParseUint(opts["max-overall-download-limit"], 10, 64)
	up, _ = strconv.ParseUint(opts["max-overall-upload-limit"], 10, 64)
	return down, up, nil
}

// SetDownloadLimit sets the global download cap. Zero means unlimited.
func (c *Client) SetDownloadLimit(limit uint64) error {
	return c.SetGlobalOption("max-overall-download-limit", strconv.FormatUint(limit, 10))
}

// SetUploadLimit sets the global upload cap. Zero means unlimited.
func (c *Client) SetUploadLimit(limit uint64) error {
	return c.SetGlobalOption("max-overall-upload-limit", strconv.FormatUint(limit, 10))
}

// Shutdown asks the daemon to exit, then unconditionally kills and reaps the
// process handle if this client spawned it. The RPC step is best effort; no
// orphan survives a normal exit.
func (c *Client) Shutdown() {
	var reply string
	if err := c.call("aria2.shutdown", nil, &reply); err != nil {
		c.log.Debugln("shutdown rpc:", err)
	}
	c.proc.kill()
}
