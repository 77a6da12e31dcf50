package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	spinnerInterval = 80 * time.Millisecond
	// A braille frame is about two columns wide; the pad covers terminals
	// that measure it differently.
	spinnerPad = 7
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner animates a progress line on a terminal. On plain output it prints
// the message once.
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	wg      sync.WaitGroup
}

func startSpinner(w io.Writer, message string) *spinner {
	s := &spinner{w: w, message: message, stop: make(chan struct{})}
	if !isTTY() {
		fmt.Fprintf(w, "%s...\n", message)
		return s
	}

	style := lipgloss.NewStyle().Foreground(colorPrimary)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", style.Render(spinnerFrames[i%len(spinnerFrames)]), s.message)
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// Stop ends the animation and clears the line.
func (s *spinner) Stop() {
	close(s.stop)
	s.wg.Wait()
	if isTTY() {
		fmt.Fprint(s.w, "\r"+strings.Repeat(" ", len(s.message)+spinnerPad)+"\r")
	}
}

// runWithSpinner shows message while operation runs.
func runWithSpinner(w io.Writer, message string, operation func() error) error {
	s := startSpinner(w, message)
	defer s.Stop()
	return operation()
}
