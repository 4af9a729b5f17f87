package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Reporter receives events from a running Job.
type Reporter interface {
	Progress(done, total int, stage string)
	Dive(r Result)
}

// Job is the work shown on the download screen. It must return soon after
// ctx is cancelled.
type Job func(ctx context.Context, r Reporter) error

type programReporter struct {
	p *tea.Program
}

func (r programReporter) Progress(done, total int, stage string) {
	r.p.Send(progressUpdateMsg{done: done, total: total, stage: stage})
}

func (r programReporter) Dive(res Result) {
	r.p.Send(diveResultMsg{result: res})
}

// Run shows the download screen while job runs on its own goroutine. It
// returns the job's error, or context.Canceled if the user stopped it.
func Run(ctx context.Context, title string, job Job) (Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(title, cancel)
	p := tea.NewProgram(m)

	done := make(chan error, 1)
	go func() {
		err := job(ctx, programReporter{p: p})
		done <- err
		p.Send(jobDoneMsg{err: err})
	}()

	final, err := p.Run()
	// The job checks ctx between dives, so this waits at most one dive.
	cancel()
	jobErr := <-done
	if err != nil {
		return m, fmt.Errorf("error running TUI: %w", err)
	}

	fm := final.(Model)
	return fm, jobErr
}
