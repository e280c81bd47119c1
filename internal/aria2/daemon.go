package aria2

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/mitchellh/go-homedir"
)

// process is the owned daemon process handle. It stays empty when an already
// running daemon answered the probe; then shutdown is the daemon's own
// business.
type process struct {
	m   sync.Mutex
	cmd *exec.Cmd
}

func (p *process) spawn(args []string) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.cmd != nil {
		return nil
	}
	cmd := exec.Command("aria2c", args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd = cmd
	return nil
}

func (p *process) kill() {
	p.m.Lock()
	defer p.m.Unlock()
	if p.cmd == nil {
		return
	}
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	p.cmd = nil
}

// spawnArgs is the fixed argument set for the daemon. This is a static
// policy: only the port, secret, download dir and a few tuning values come
// from config; everything else is pinned.
func (c *Client) spawnArgs() []string {
	dir := c.config.DownloadDir
	if dir == "" {
		dir = downloadDir()
	}
	_ = os.MkdirAll(dir, 0o755)

	return []string{
		"--enable-rpc",
		"--rpc-listen-all=false",
		"--rpc-listen-port=" + strconv.Itoa(c.config.RPCPort),
		"--rpc-secret=" + c.config.Secret,
		"--dir=" + dir,
		"--continue=true",
		"--max-connection-per-server=" + strconv.Itoa(c.config.MaxConnectionsPerServer),
		"--min-split-size=" + c.config.MinSplitSize,
		"--split=" + strconv.Itoa(c.config.MaxConnectionsPerServer),
		"--max-concurrent-downloads=" + strconv.Itoa(c.config.MaxConcurrentDownloads),
		"--disable-ipv6=false",
		"--seed-time=" + strconv.Itoa(c.config.SeedTime),
		"--bt-max-peers=" + strconv.Itoa(c.config.BTMaxPeers),
		"--follow-torrent=true",
		"--enable-dht=true",
		"--bt-enable-lpd=true",
		"--enable-peer-exchange=true",
		"--auto-file-renaming=false",
		"--allow-overwrite=true",
		"--summary-interval=0",
	}
}

// downloadDir resolves where the daemon writes files: the user's Downloads
// directory, falling back to ./Downloads when no home is known.
func downloadDir() string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return "./Downloads"
	}
	return filepath.Join(home, "Downloads")
}

// waitReachable re-probes the freshly spawned daemon under a bounded
// exponential backoff.
func (c *Client) waitReachable() error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.config.StartupTimeout
	return backoff.Retry(func() error {
		_, err := c.GetVersion()
		return err
	}, bo)
}
