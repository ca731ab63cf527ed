package run

import (
	"fmt"
	goSync "sync"
	"text/tabwriter"
	"time"

	"github.com/buger/goterm"
	"github.com/jroimartin/gocui"
	"github.com/sirupsen/logrus"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/errors"
	syncPkg "github.com/driftsync/driftsync/pkg/sync"
)

const (
	statusWidgetName = "status"
	logWidgetName    = "log"
)

// statusRefreshInterval is how often the GUI re-reads the daemon's progress.
const statusRefreshInterval = 1 * time.Second

type driftGUI interface {
	// Run implements the main GUI loop. It blocks until the user quits.
	Run(daemon *syncPkg.RemoteDaemon) error

	// GetLogger returns a logrus Logger that can be used to display
	// messages on the user's screen.
	GetLogger() *logrus.Logger
}

// driftGUIImpl contains the GUI implementation for normal user usage.
type driftGUIImpl struct {
	logger    *logrus.Logger
	loggerOut chanWriter
}

func newDriftGUI() driftGUI {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.Kitchen,
	})

	// Allow 256 `Write`s without a corresponding `Read`. We give a generous
	// buffer here because if the channel becomes full, calls to write log
	// messages will block until there's space in the channel.
	loggerOut := chanWriter(make(chan []byte, 256))
	logger.SetOutput(loggerOut)

	return &driftGUIImpl{logger, loggerOut}
}

func (gui *driftGUIImpl) GetLogger() *logrus.Logger {
	return gui.logger
}

func (gui *driftGUIImpl) Run(daemon *syncPkg.RemoteDaemon) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	status := &statusWidget{}
	go func() {
		defer util.HandlePanic()
		status.syncUpdates(g, daemon)
	}()

	// Stream the logrus output to the log view.
	logView := &logWidget{}
	go func() {
		defer util.HandlePanic()
		copyToView(g, logWidgetName, gui.loggerOut)
	}()

	g.SetManager(status, logView)
	ctrlCHandler := func(_ *gocui.Gui, _ *gocui.View) error {
		return gocui.ErrQuit
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, ctrlCHandler); err != nil {
		return errors.WithContext(err, "bind GUI Ctrl-C")
	}

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// statusWidget displays the sync daemon's progress at the top of the GUI.
type statusWidget struct {
	status syncPkg.Status
	lock   goSync.Mutex
}

// syncUpdates redraws the UI with a fresh status snapshot on a fixed
// interval.
func (w *statusWidget) syncUpdates(g *gocui.Gui, daemon *syncPkg.RemoteDaemon) {
	for {
		update := daemon.Status()

		w.lock.Lock()
		w.status = update
		w.lock.Unlock()

		g.Update(w.Layout)
		time.Sleep(statusRefreshInterval)
	}
}

func (w *statusWidget) Layout(g *gocui.Gui) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	maxWidth, _ := g.Size()
	height := 5

	v, err := g.SetView(statusWidgetName, 0, 0, maxWidth-1, height+1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Sync"
	v.Wrap = true
	v.Clear()

	out := tabwriter.NewWriter(v, 0, 10, 5, ' ', 0)
	defer out.Flush()

	lastCycle := "never"
	if !w.status.LastCycle.IsZero() {
		lastCycle = w.status.LastCycle.Format(time.Kitchen)
	}

	fmt.Fprintf(out, "State\t%s\n", w.stateString())
	fmt.Fprintf(out, "Cycles\t%d (last at %s)\n", w.status.Cycles, lastCycle)
	fmt.Fprintf(out, "Downloaded\t%d\n", w.status.Downloads)
	fmt.Fprintf(out, "Removed\t%d\n", w.status.Deletes)
	fmt.Fprintf(out, "Moved\t%d\n", w.status.Renames)

	return nil
}

func (w *statusWidget) stateString() string {
	switch w.status.State {
	case syncPkg.StateSleeping:
		return goterm.Color("Up to date", goterm.GREEN)
	case syncPkg.StateFatal:
		return goterm.Color("Failed", goterm.RED)
	default:
		return goterm.Color(string(w.status.State), goterm.YELLOW)
	}
}

// logWidget is an empty view that streams log output. It's placed under the
// status view.
type logWidget struct{}

func (w *logWidget) Layout(g *gocui.Gui) error {
	maxWidth, maxHeight := g.Size()

	_, _, _, origin, err := g.ViewPosition(statusWidgetName)
	if err != nil {
		return err
	}

	v, err := g.SetView(logWidgetName, 0, origin+1, maxWidth-1, maxHeight-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}

	v.Title = "Log"
	v.Wrap = true
	v.Autoscroll = true

	return nil
}

// copyToView writes the messages in `stream` into the desired `view` in
// `gui`. It guarantees writes occur in the order of messages in `stream`.
func copyToView(gui *gocui.Gui, view string, stream chanWriter) {
	for b := range stream {
		b := b
		done := make(chan struct{})
		gui.Update(func(gui *gocui.Gui) error {
			defer close(done)
			v, err := gui.View(view)
			if err != nil {
				return err
			}

			if _, err := v.Write(b); err != nil {
				return err
			}
			return nil
		})
		<-done
	}
}
