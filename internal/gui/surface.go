// Package gui is the desktop surface of gest: a window that offers the run
// modes and then shows the session's progress.
package gui

import (
	"context"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/bft-labs/gest/internal/modes"
	"github.com/bft-labs/gest/pkg/mode"
)

const exitLabel = "Exit"

// Surface is a fyne window acting as the mode selector. Closing the window
// cancels a pending selection and is reported on Closed.
type Surface struct {
	app fyne.App
	win fyne.Window

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	buttons map[string]*widget.Button
	status  *widget.Label
	gesture *widget.Label
}

var _ mode.Selector = (*Surface)(nil)

// New builds the main window of a. It is not shown until Run.
func New(a fyne.App, title string, width, height int) *Surface {
	s := &Surface{
		app:     a,
		win:     a.NewWindow(title),
		closed:  make(chan struct{}),
		buttons: make(map[string]*widget.Button),
		status:  widget.NewLabel("Starting..."),
		gesture: widget.NewLabel(""),
	}
	s.win.Resize(fyne.NewSize(float32(width), float32(height)))
	s.win.SetContent(container.NewCenter(s.status))
	s.win.SetCloseIntercept(s.requestClose)
	return s
}

// Choose shows one button per mode plus Exit and blocks until one is
// pressed, the window is closed or ctx is done.
func (s *Surface) Choose(ctx context.Context, modes []mode.Mode) (mode.Choice, error) {
	if len(modes) == 0 {
		return mode.Choice{}, mode.ErrNoModes
	}

	picked := make(chan mode.Choice, 1)
	pick := func(c mode.Choice) {
		select {
		case picked <- c:
		default:
		}
	}

	fyne.Do(func() { s.win.SetContent(s.menu(modes, pick)) })

	select {
	case c := <-picked:
		return c, nil
	case <-s.closed:
		return mode.Cancelled(), nil
	case <-ctx.Done():
		return mode.Choice{}, ctx.Err()
	}
}

func (s *Surface) menu(all []mode.Mode, pick func(mode.Choice)) fyne.CanvasObject {
	title := widget.NewLabelWithStyle("Select a mode", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	box := container.NewVBox(title, widget.NewSeparator())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons = make(map[string]*widget.Button, len(all)+1)

	for _, m := range all {
		m := m
		b := widget.NewButton(m.Name, func() { pick(mode.Chose(m)) })
		s.buttons[m.Name] = b
		box.Add(b)
		if m.Description != "" {
			box.Add(widget.NewLabel(m.Description))
		}
	}

	exit := widget.NewButton(exitLabel, func() { pick(mode.Cancelled()) })
	exit.Importance = widget.DangerImportance
	s.buttons[exitLabel] = exit
	box.Add(widget.NewSeparator())
	box.Add(exit)

	return container.NewCenter(box)
}

// ShowRunning replaces the menu with the session view for name.
func (s *Surface) ShowRunning(name string) {
	fyne.Do(func() {
		s.status.SetText(fmt.Sprintf("Running: %s", name))
		s.gesture.SetText("Waiting for gestures...")
		s.win.SetContent(container.NewCenter(container.NewVBox(s.status, s.gesture)))
	})
}

// Observe shows the latest gesture; it has the modes.Deps Observer
// signature.
func (s *Surface) Observe(ev modes.Event) {
	text := fmt.Sprintf("%s (%.0f%%)", ev.Gesture, ev.Score*100)
	if ev.Action != "" {
		text += " -> " + ev.Action
	}
	if ev.Sample != "" {
		text += " saved " + ev.Sample
	}
	fyne.Do(func() { s.gesture.SetText(text) })
}

// Closed is closed once the user asks to close the window.
func (s *Surface) Closed() <-chan struct{} { return s.closed }

// Run shows the window and runs the fyne event loop on the calling
// goroutine until Quit.
func (s *Surface) Run() { s.win.ShowAndRun() }

// Quit stops the event loop. It is safe to call from any goroutine.
func (s *Surface) Quit() { fyne.Do(s.app.Quit) }

func (s *Surface) requestClose() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Surface) button(label string) (*widget.Button, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buttons[label]
	return b, ok
}
