package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cenkalti/log"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"

	"github.com/NithinV404/tui-downloader/internal/aria2"
	"github.com/NithinV404/tui-downloader/internal/config"
	"github.com/NithinV404/tui-downloader/internal/console"
	"github.com/NithinV404/tui-downloader/internal/history"
	"github.com/NithinV404/tui-downloader/internal/jsonutil"
	"github.com/NithinV404/tui-downloader/internal/logger"
	"github.com/NithinV404/tui-downloader/internal/manager"
	"github.com/NithinV404/tui-downloader/internal/units"
)

// Version is set by the build.
var Version = "0.1.0"

const defaultConfigPath = "~/.tui-downloader/config.yaml"

var (
	app = cli.NewApp()
	cfg *config.Config
	clt *aria2.Client
)

func main() {
	app.Name = "tui-downloader"
	app.Usage = "terminal client for the aria2c download daemon"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: defaultConfigPath,
			Usage: "read configuration from `FILE`",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug log",
		},
	}
	app.Before = handleBeforeCommand
	app.Action = handleConsole
	app.Commands = []cli.Command{
		{
			Name:      "add",
			Usage:     "add a download by URL, magnet link, torrent or metalink file",
			ArgsUsage: "<source>",
			Action:    handleAdd,
		},
		{
			Name:   "list",
			Usage:  "list known downloads",
			Action: handleList,
		},
		{
			Name:   "stats",
			Usage:  "print global transfer statistics",
			Action: handleStats,
		},
		{
			Name:      "pause",
			Usage:     "pause a download",
			ArgsUsage: "<gid>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "all, a", Usage: "pause all downloads"},
			},
			Action: handlePause,
		},
		{
			Name:      "resume",
			Usage:     "resume a paused download",
			ArgsUsage: "<gid>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "all, a", Usage: "resume all downloads"},
			},
			Action: handleResume,
		},
		{
			Name:      "rm",
			Usage:     "remove a download, keeping the file on disk",
			ArgsUsage: "<gid>",
			Action:    handleRemove,
		},
		{
			Name:      "retry",
			Usage:     "remove a failed download and add it again from its URL",
			ArgsUsage: "<gid>",
			Action:    handleRetry,
		},
		{
			Name:   "purge",
			Usage:  "drop all completed and errored downloads from the list",
			Action: handlePurge,
		},
		{
			Name:      "limit",
			Usage:     "show or set global speed limits",
			ArgsUsage: "[down <rate>|up <rate>]",
			Action:    handleLimit,
		},
		{
			Name:      "history",
			Usage:     "list previously added URLs",
			ArgsUsage: "[filter]",
			Action:    handleHistory,
		},
		{
			Name:   "version",
			Usage:  "print daemon version info",
			Action: handleVersion,
		},
		{
			Name:   "shutdown",
			Usage:  "shut down the daemon",
			Action: handleShutdown,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func handleBeforeCommand(c *cli.Context) error {
	if c.GlobalBool("debug") {
		logger.SetLevel(log.DEBUG)
	}
	var err error
	cfg, err = config.Load(c.GlobalString("config"))
	if err != nil {
		return err
	}
	clt = aria2.New(aria2.Config{
		RPCHost:                 aria2.DefaultConfig.RPCHost,
		RPCPort:                 cfg.RPCPort,
		Secret:                  cfg.RPCSecret,
		DownloadDir:             cfg.DownloadDir,
		HTTPTimeout:             aria2.DefaultConfig.HTTPTimeout,
		StartupTimeout:          aria2.DefaultConfig.StartupTimeout,
		MaxConnectionsPerServer: cfg.MaxConnectionsPerServer,
		MaxConcurrentDownloads:  cfg.MaxConcurrentDownloads,
		MinSplitSize:            cfg.MinSplitSize,
		BTMaxPeers:              cfg.BTMaxPeers,
		SeedTime:                cfg.SeedTime,
	})
	return nil
}

func openHistory() (*history.History, error) {
	path, err := homedir.Expand(cfg.HistoryFile)
	if err != nil {
		return nil, err
	}
	return history.Open(path, cfg.HistorySize)
}

func newManager(urls *history.History) *manager.Manager {
	mcfg := manager.DefaultConfig
	mcfg.PollInterval = cfg.PollInterval.Std()
	mcfg.PageSize = cfg.PageSize
	return manager.New(clt, mcfg, urls)
}

func handleConsole(c *cli.Context) error {
	// The UI owns the terminal from here on; log output goes to the file.
	logPath, err := homedir.Expand(cfg.LogFile)
	if err != nil {
		return err
	}
	if err = logger.UseFile(logPath); err != nil {
		return err
	}
	if err = clt.EnsureAvailable(); err != nil {
		return err
	}
	urls, err := openHistory()
	if err != nil {
		return err
	}
	defer urls.Close()

	m := newManager(urls)
	go m.Run()

	err = console.New(m).Run()
	m.Close()
	clt.Shutdown()
	return err
}

func handleAdd(c *cli.Context) error {
	source := c.Args().First()
	if source == "" {
		return errors.New("give a URL, magnet link, torrent or metalink file")
	}
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	urls, err := openHistory()
	if err != nil {
		return err
	}
	defer urls.Close()

	gid, err := newManager(urls).Add(source)
	if err != nil {
		return err
	}
	fmt.Println(gid)
	return nil
}

func handleList(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	m := newManager(nil)
	m.Reconcile()
	for _, d := range m.Downloads() {
		fmt.Printf("%-18s %-8s %5.1f%% %12s %10s  %s\n",
			d.GID, d.State, d.Progress()*100,
			units.FormatRate(d.DownloadSpeed), units.FormatSize(d.TotalLength), d.Name)
	}
	return nil
}

func handleStats(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	stat, err := clt.GetGlobalStat()
	if err != nil {
		return err
	}
	b, err := jsonutil.MarshalPretty(stat)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func handlePause(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	if c.Bool("all") {
		return clt.PauseAll()
	}
	gid := c.Args().First()
	if gid == "" {
		return errors.New("give a GID or --all")
	}
	return clt.Pause(gid)
}

func handleResume(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	if c.Bool("all") {
		return clt.UnpauseAll()
	}
	gid := c.Args().First()
	if gid == "" {
		return errors.New("give a GID or --all")
	}
	return clt.Unpause(gid)
}

func handleRemove(c *cli.Context) error {
	gid := c.Args().First()
	if gid == "" {
		return errors.New("give a GID")
	}
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	m := newManager(nil)
	m.Reconcile()
	m.Remove(gid)
	return nil
}

func handleRetry(c *cli.Context) error {
	gid := c.Args().First()
	if gid == "" {
		return errors.New("give a GID")
	}
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	m := newManager(nil)
	m.Reconcile()
	newGID, err := m.Retry(gid)
	if err != nil {
		return err
	}
	fmt.Println(newGID)
	return nil
}

func handlePurge(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	m := newManager(nil)
	m.Reconcile()
	fmt.Printf("purged %d downloads\n", m.PurgeCompleted())
	return nil
}

func handleLimit(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	args := c.Args()
	if len(args) == 0 {
		down, up, err := clt.GetSpeedLimits()
		if err != nil {
			return err
		}
		fmt.Printf("down: %s\nup:   %s\n", units.FormatLimit(down), units.FormatLimit(up))
		return nil
	}
	if len(args) != 2 {
		return errors.New("usage: limit down|up <rate>")
	}
	limit, err := units.ParseLimit(args.Get(1))
	if err != nil {
		return err
	}
	switch strings.ToLower(args.Get(0)) {
	case "down":
		return clt.SetDownloadLimit(limit)
	case "up":
		return clt.SetUploadLimit(limit)
	}
	return errors.New("usage: limit down|up <rate>")
}

func handleHistory(c *cli.Context) error {
	urls, err := openHistory()
	if err != nil {
		return err
	}
	defer urls.Close()
	var list []string
	if filter := c.Args().First(); filter != "" {
		list, err = urls.Filter(filter, cfg.HistorySize)
	} else {
		list, err = urls.List()
	}
	if err != nil {
		return err
	}
	for _, u := range list {
		fmt.Println(u)
	}
	return nil
}

func handleVersion(c *cli.Context) error {
	if err := clt.EnsureAvailable(); err != nil {
		return err
	}
	info, err := clt.GetVersion()
	if err != nil {
		return err
	}
	b, err := jsonutil.MarshalPretty(info)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func handleShutdown(c *cli.Context) error {
	clt.Shutdown()
	return nil
}
