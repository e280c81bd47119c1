// Package console is a thin terminal front-end over the download manager.
// It renders snapshots and maps keys onto manager operations; all transfer
// state lives in the manager.
package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"github.com/NithinV404/tui-downloader/internal/logger"
	"github.com/NithinV404/tui-downloader/internal/manager"
	"github.com/NithinV404/tui-downloader/internal/units"
)

const (
	downloadsView = "downloads"
	statusView    = "status"
	promptView    = "prompt"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptAdd
	promptDownLimit
	promptUpLimit
)

// Console drives a gocui main loop over the manager's snapshot accessors.
type Console struct {
	manager *manager.Manager
	log     logger.Logger

	selected  int
	sortField manager.SortField
	sortDir   manager.SortDirection
	prompt    promptKind
	message   string
}

// New returns a Console rendering the given manager.
func New(m *manager.Manager) *Console {
	return &Console{
		manager: m,
		log:     logger.New("console"),
	}
}

// Run blocks until the user quits. The caller owns the shutdown sequencing
// that follows.
func (c *Console) Run() error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	g.SetManagerFunc(c.layout)
	if err := c.keybindings(g); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go c.refreshLoop(g, done)

	err = g.MainLoop()
	if err == gocui.ErrQuit {
		err = nil
	}
	return err
}

func (c *Console) refreshLoop(g *gocui.Gui, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Update(func(*gocui.Gui) error { return nil })
		case <-done:
			return
		}
	}
}

func (c *Console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	v, err := g.SetView(downloadsView, 0, 0, maxX-1, maxY-3)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Title = fmt.Sprintf(" Downloads (sort: %s %s) ", c.sortField, c.sortDir)
	v.Clear()
	c.renderDownloads(v)

	s, err := g.SetView(statusView, 0, maxY-3, maxX-1, maxY-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	s.Frame = false
	s.Clear()
	c.renderStatus(s)

	if c.prompt == promptNone {
		if _, err := g.SetCurrentView(downloadsView); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) renderDownloads(v *gocui.View) {
	downloads := c.sorted()
	if c.selected >= len(downloads) {
		c.selected = len(downloads) - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
	for i, d := range downloads {
		cursor := "  "
		if i == c.selected {
			cursor = "> "
		}
		fmt.Fprintf(v, "%s%-8s %5.1f%% %12s %10s  %s\n",
			cursor,
			d.State,
			d.Progress()*100,
			units.FormatRate(d.DownloadSpeed),
			units.FormatSize(d.TotalLength),
			d.Name)
	}
}

func (c *Console) renderStatus(v *gocui.View) {
	stats := c.manager.Stats()
	line := fmt.Sprintf("active %d  queued %d  done %d | down %s up %s",
		stats.NumActive, stats.NumQueued, stats.NumStopped,
		units.FormatRate(stats.DownloadSpeed), units.FormatRate(stats.UploadSpeed))
	if c.message != "" {
		line += " | " + c.message
	}
	fmt.Fprintln(v, line)
	fmt.Fprint(v, "a:add p:pause r:resume d:remove R:retry x:delete-file c:purge s/S:sort +/-:move L/l:limits q:quit")
}

func (c *Console) sorted() []manager.Download {
	downloads := c.manager.Downloads()
	manager.Sort(downloads, c.sortField, c.sortDir)
	return downloads
}

func (c *Console) selectedGID() (string, bool) {
	downloads := c.sorted()
	if c.selected < 0 || c.selected >= len(downloads) {
		return "", false
	}
	return downloads[c.selected].GID, true
}

func (c *Console) keybindings(g *gocui.Gui) error {
	type binding struct {
		view    string
		key     interface{}
		handler func(*gocui.Gui, *gocui.View) error
	}
	quit := func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }
	bindings := []binding{
		{"", gocui.KeyCtrlC, quit},
		{downloadsView, 'q', quit},
		{downloadsView, gocui.KeyArrowUp, c.moveSelection(-1)},
		{downloadsView, gocui.KeyArrowDown, c.moveSelection(1)},
		{downloadsView, 'k', c.moveSelection(-1)},
		{downloadsView, 'j', c.moveSelection(1)},
		{downloadsView, 'a', c.openPrompt(promptAdd, " Add URL / torrent / metalink ")},
		{downloadsView, 'L', c.openPrompt(promptDownLimit, " Download limit (0 = unlimited) ")},
		{downloadsView, 'l', c.openPrompt(promptUpLimit, " Upload limit (0 = unlimited) ")},
		{downloadsView, 'p', c.withSelected(func(gid string) error { return c.manager.Pause(gid) })},
		{downloadsView, 'r', c.withSelected(func(gid string) error { return c.manager.Resume(gid) })},
		{downloadsView, 'P', c.do(func() error { return c.manager.PauseAll() })},
		{downloadsView, 'U', c.do(func() error { return c.manager.ResumeAll() })},
		{downloadsView, 'd', c.withSelected(func(gid string) error { c.manager.Remove(gid); return nil })},
		{downloadsView, 'x', c.withSelected(func(gid string) error { return c.manager.DeleteFile(gid) })},
		{downloadsView, 'R', c.withSelected(func(gid string) error {
			_, err := c.manager.Retry(gid)
			return err
		})},
		{downloadsView, 'c', c.do(func() error {
			n := c.manager.PurgeCompleted()
			c.message = fmt.Sprintf("purged %d downloads", n)
			return nil
		})},
		{downloadsView, '+', c.withSelected(func(gid string) error { return c.manager.MoveUp(gid) })},
		{downloadsView, '-', c.withSelected(func(gid string) error { return c.manager.MoveDown(gid) })},
		{downloadsView, 's', c.do(func() error { c.sortField = c.sortField.Next(); return nil })},
		{downloadsView, 'S', c.do(func() error { c.sortDir = c.sortDir.Toggle(); return nil })},
		{promptView, gocui.KeyEnter, c.submitPrompt},
		{promptView, gocui.KeyEsc, c.closePrompt},
	}
	for _, b := range bindings {
		if err := g.SetKeybinding(b.view, b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) moveSelection(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		c.selected += delta
		return nil
	}
}

// do runs a manager operation and surfaces its error in the status bar.
func (c *Console) do(fn func() error) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if err := fn(); err != nil {
			c.message = err.Error()
			c.log.Errorln(err)
		} else {
			c.message = ""
		}
		return nil
	}
}

func (c *Console) withSelected(fn func(gid string) error) func(*gocui.Gui, *gocui.View) error {
	return c.do(func() error {
		gid, ok := c.selectedGID()
		if !ok {
			return nil
		}
		return fn(gid)
	})
}

func (c *Console) openPrompt(kind promptKind, title string) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, _ *gocui.View) error {
		maxX, maxY := g.Size()
		v, err := g.SetView(promptView, maxX/8, maxY/2-1, maxX*7/8, maxY/2+1)
		if err != nil && err != gocui.ErrUnknownView {
			return err
		}
		v.Title = title
		v.Editable = true
		v.Clear()
		c.prompt = kind
		g.Cursor = true
		_, err = g.SetCurrentView(promptView)
		return err
	}
}

func (c *Console) submitPrompt(g *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	kind := c.prompt
	if err := c.closePrompt(g, v); err != nil {
		return err
	}
	if input == "" {
		return nil
	}
	// Manager calls block on network I/O; keep the main loop responsive.
	go func() {
		err := c.dispatchPrompt(kind, input)
		g.Update(func(*gocui.Gui) error {
			if err != nil {
				c.message = err.Error()
				c.log.Errorln(err)
			}
			return nil
		})
	}()
	return nil
}

func (c *Console) dispatchPrompt(kind promptKind, input string) error {
	switch kind {
	case promptAdd:
		_, err := c.manager.Add(input)
		return err
	case promptDownLimit:
		limit, err := units.ParseLimit(input)
		if err != nil {
			return err
		}
		return c.manager.SetDownloadLimit(limit)
	case promptUpLimit:
		limit, err := units.ParseLimit(input)
		if err != nil {
			return err
		}
		return c.manager.SetUploadLimit(limit)
	}
	return nil
}

func (c *Console) closePrompt(g *gocui.Gui, _ *gocui.View) error {
	c.prompt = promptNone
	g.Cursor = false
	if err := g.DeleteView(promptView); err != nil && err != gocui.ErrUnknownView {
		return err
	}
	_, err := g.SetCurrentView(downloadsView)
	return err
}
