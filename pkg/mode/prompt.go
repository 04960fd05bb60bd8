package mode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompt asks on a terminal. The user answers with a number or a mode name;
// "q", "exit" or end of input cancel.
type Prompt struct {
	In    io.Reader
	Out   io.Writer
	Title string
}

type promptLine struct {
	text string
	err  error
}

func (p Prompt) Choose(ctx context.Context, modes []Mode) (Choice, error) {
	if len(modes) == 0 {
		return Choice{}, ErrNoModes
	}

	// Reading blocks without regard to ctx, so it happens on its own
	// goroutine. After Choose returns it exits at the next line or EOF.
	lines := make(chan promptLine)
	done := make(chan struct{})
	defer close(done)
	go func() {
		sc := bufio.NewScanner(p.In)
		for sc.Scan() {
			select {
			case lines <- promptLine{text: sc.Text()}:
			case <-done:
				return
			}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		select {
		case lines <- promptLine{err: err}:
		case <-done:
		}
	}()

	p.menu(modes)
	for {
		fmt.Fprint(p.Out, "> ")
		select {
		case <-ctx.Done():
			return Choice{}, ctx.Err()
		case l := <-lines:
			if l.err == io.EOF {
				return Cancelled(), nil
			}
			if l.err != nil {
				return Choice{}, fmt.Errorf("read selection: %w", l.err)
			}
			choice, ok := parseAnswer(l.text, modes)
			if ok {
				return choice, nil
			}
			fmt.Fprintf(p.Out, "unrecognized choice %q\n", strings.TrimSpace(l.text))
		}
	}
}

func (p Prompt) menu(modes []Mode) {
	title := p.Title
	if title == "" {
		title = "Select a mode"
	}
	fmt.Fprintln(p.Out, title)
	for i, m := range modes {
		if m.Description != "" {
			fmt.Fprintf(p.Out, "  %d) %s - %s\n", i+1, m.Name, m.Description)
		} else {
			fmt.Fprintf(p.Out, "  %d) %s\n", i+1, m.Name)
		}
	}
	fmt.Fprintln(p.Out, "  q) exit")
}

func parseAnswer(answer string, modes []Mode) (Choice, bool) {
	answer = strings.TrimSpace(answer)
	switch strings.ToLower(answer) {
	case "q", "quit", ExitName:
		return Cancelled(), true
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(modes) {
			return Chose(modes[n-1]), true
		}
		return Choice{}, false
	}
	if m, ok := Find(modes, answer); ok {
		return Chose(m), true
	}
	return Choice{}, false
}
