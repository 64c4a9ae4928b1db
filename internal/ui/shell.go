package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/gnomeskillet/kiosk/internal/event"
	"github.com/gnomeskillet/kiosk/internal/protocol"
	"github.com/gnomeskillet/kiosk/internal/roster"
)

var (
	accentGood = color.New(color.FgGreen).SprintFunc()
	accentWarn = color.New(color.FgYellow).SprintFunc()
	accentBad  = color.New(color.FgRed).SprintFunc()
	accentDim  = color.New(color.Faint).SprintFunc()
)

// Shell is the interactive tag-writer loop: search the roster, pick a
// student, write their tag. It doubles as the confirmation gate for the
// write protocol, asking y/n questions on the same terminal.
type Shell struct {
	roster *roster.Roster
	in     *bufio.Scanner
	out    io.Writer

	runner  *protocol.Runner
	results []roster.Student
}

// NewShell builds a shell over the given roster. The runner is created by
// the caller with the shell itself as its Confirmer.
func NewShell(r *roster.Roster, in io.Reader, out io.Writer) *Shell {
	// Event rendering happens on a goroutine while confirmation prompts
	// write from the caller's; serialize the writer.
	return &Shell{roster: r, in: bufio.NewScanner(in), out: &syncWriter{w: out}}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

// SetRunner attaches the protocol runner once it exists. NewShell cannot
// take it directly because the runner needs the shell as its Confirmer.
func (s *Shell) SetRunner(r *protocol.Runner) { s.runner = r }

// Run reads commands until EOF or quit. Search terms list matching
// students, a bare number selects one from the last listing.
func (s *Shell) Run() error {
	fmt.Fprintf(s.out, "%d students loaded. Type a name or id to search, 'q' to quit.\n", s.roster.Len())
	for {
		fmt.Fprint(s.out, "search> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		switch {
		case line == "":
			continue
		case line == "q" || line == "quit" || line == "exit":
			return nil
		}

		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(s.results) {
			s.writeFor(s.results[n-1])
			continue
		}

		s.results = s.roster.Search(line)
		if len(s.results) == 0 {
			fmt.Fprintln(s.out, "no matches")
			continue
		}
		for i, st := range s.results {
			fmt.Fprintf(s.out, "%3d. %-12s %-28s grade %s\n", i+1, st.ID, st.Name, st.Grade)
		}
		fmt.Fprintf(s.out, "matches: %d  %s\n", len(s.results), accentDim("(enter a number to write that tag)"))
	}
}

// writeFor drives one protocol run for the chosen student, rendering the
// run's events as they arrive.
func (s *Shell) writeFor(st roster.Student) {
	if !s.ask(fmt.Sprintf("Write tag for %s (%s)? [y/N] ", st.Name, st.ID)) {
		fmt.Fprintln(s.out, accentWarn("cancelled"))
		return
	}
	if _, err := s.WriteOnce(protocol.Identity{ID: st.ID, Name: st.Name}); err != nil {
		fmt.Fprintf(s.out, "%s %v\n", accentBad("error:"), err)
	}
}

// WriteOnce runs the write protocol for one identity and renders its events.
// It returns the terminal outcome; call errors mean the run never started.
func (s *Shell) WriteOnce(id protocol.Identity) (protocol.Outcome, error) {
	events := make(chan event.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			s.render(ev)
		}
	}()

	out, err := s.runner.RunWith(id, events)
	close(events)
	<-done
	return out, err
}

func (s *Shell) render(ev event.Event) {
	switch ev.Type {
	case event.RunStarted:
		fmt.Fprintf(s.out, "writing tag for %s (%s)\n", ev.Path, ev.Payload)
	case event.ReadPrompt:
		fmt.Fprintln(s.out, "place the tag on the reader...")
	case event.TagRead:
		if ev.Payload == "" {
			fmt.Fprintf(s.out, "tag %s is blank\n", ev.UID)
		} else {
			fmt.Fprintf(s.out, "tag %s currently holds %q\n", ev.UID, ev.Payload)
		}
	case event.WriteStarted:
		fmt.Fprintf(s.out, "writing %q...\n", ev.Payload)
	case event.WriteDone:
		fmt.Fprintln(s.out, "write complete")
	case event.VerifyPrompt:
		fmt.Fprintln(s.out, "place the same tag again to verify...")
	case event.Verified:
		fmt.Fprintf(s.out, "%s tag %s verified as %q\n", accentGood("✓"), ev.UID, ev.Payload)
	case event.VerifyMismatch:
		fmt.Fprintf(s.out, "%s tag %s reads %q, not what was written\n", accentBad("MISMATCH:"), ev.UID, ev.Payload)
	case event.RunCancelled:
		fmt.Fprintln(s.out, accentWarn("cancelled, nothing written"))
	case event.RunFailed:
		fmt.Fprintf(s.out, "%s %v\n", accentBad("failed:"), ev.Err)
	}
}

// ConfirmWriteAnyway implements protocol.Confirmer for ids that are not
// plain digits.
func (s *Shell) ConfirmWriteAnyway(id string) bool {
	return s.ask(fmt.Sprintf("%s %q is not numeric. Write anyway? [y/N] ", accentWarn("warning:"), id))
}

// ConfirmOverwrite implements protocol.Confirmer for tags that already hold
// a different payload.
func (s *Shell) ConfirmOverwrite(existing, target string) bool {
	return s.ask(fmt.Sprintf("%s tag holds %q, overwrite with %q? [y/N] ", accentWarn("warning:"), existing, target))
}

func (s *Shell) ask(prompt string) bool {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return answer == "y" || answer == "yes"
}
