package main

import (
	"fmt"
	"io"
	"strings"
)

// watch tracks the last state of every id the user asked about.
type watch struct {
	states map[string]jobState
}

func newWatch(ids []string) *watch {
	w := &watch{states: make(map[string]jobState, len(ids))}
	for _, id := range ids {
		w.states[id] = jobState{ID: id}
	}
	return w
}

// update records job for id and reports whether id is being watched.
func (w *watch) update(id string, job jobState) bool {
	if _, ok := w.states[id]; !ok {
		return false
	}
	w.states[id] = job
	return true
}

// finished reports whether every id reached a state that will not change:
// done, error, or none (no job exists).
func (w *watch) finished() bool {
	for _, s := range w.states {
		switch s.Status {
		case "done", "error", "none":
		default:
			return false
		}
	}
	return true
}

func (w *watch) failed() bool {
	for _, s := range w.states {
		if s.Status == "error" {
			return true
		}
	}
	return false
}

type renderer struct {
	out     io.Writer
	width   int
	lastID  string
	pending bool
}

func newRenderer(out io.Writer, width int) *renderer {
	return &renderer{out: out, width: width}
}

func (r *renderer) render(id string, job jobState) {
	line := describe(id, job)
	if r.width == 0 {
		fmt.Fprintln(r.out, line)
		return
	}
	if r.pending && r.lastID != id {
		fmt.Fprintln(r.out)
	}
	if len(line) > r.width-1 {
		line = line[:r.width-1]
	}
	fmt.Fprintf(r.out, "\r%-*s", r.width-1, line)
	r.lastID = id
	r.pending = true
	if job.Status == "done" || job.Status == "error" || job.Status == "none" {
		fmt.Fprintln(r.out)
		r.pending = false
	}
}

func (r *renderer) done() {
	if r.pending {
		fmt.Fprintln(r.out)
		r.pending = false
	}
}

const barWidth = 24

func describe(id string, job jobState) string {
	switch job.Status {
	case "none":
		return fmt.Sprintf("%s  no conversion", id)
	case "error":
		return fmt.Sprintf("%s  failed: %s", id, job.Message)
	case "done":
		return fmt.Sprintf("%s  [%s] 100%%  done", id, bar(100))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s] %3d%%", id, bar(job.Progress), job.Progress)
	if job.Estimated {
		b.WriteString("~")
	}
	if job.ETASeconds != nil {
		fmt.Fprintf(&b, "  eta %s", formatETA(*job.ETASeconds))
	}
	if job.Message != "" {
		fmt.Fprintf(&b, "  %s", job.Message)
	}
	return b.String()
}

func bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * barWidth / 100
	return strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
}

func formatETA(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
