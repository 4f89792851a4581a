package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"board-tiler/internal/logger"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Status is one progress update of a long-running operation.
type Status struct {
	Text      string
	Completed int
	Total     int
	ETA       time.Duration
	HasETA    bool
}

func (s Status) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return min(100, s.Completed*100/s.Total)
}

func (s Status) etaText() string {
	if !s.HasETA {
		return "ETA --"
	}
	return "ETA " + s.ETA.Round(time.Second).String()
}

// Sink receives progress updates. Done is called once at the end.
type Sink interface {
	Update(Status)
	Done()
}

// ProgressBar draws a terminal progress bar.
type ProgressBar struct {
	p   *mpb.Progress
	bar *mpb.Bar

	mu   sync.Mutex
	last Status
}

func NewProgressBar(w io.Writer, title string, total int) *ProgressBar {
	pb := &ProgressBar{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))}
	pb.bar = pb.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(title, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Any(func(decor.Statistics) string {
				pb.mu.Lock()
				defer pb.mu.Unlock()
				if pb.last.Text == "" {
					return " " + pb.last.etaText()
				}
				return fmt.Sprintf(" %s  %s", pb.last.etaText(), pb.last.Text)
			}),
		),
	)
	return pb
}

func (b *ProgressBar) Update(s Status) {
	b.mu.Lock()
	b.last = s
	b.mu.Unlock()
	if s.Total > 0 {
		b.bar.SetTotal(int64(s.Total), false)
	}
	b.bar.SetCurrent(int64(s.Completed))
}

// Done finishes the bar and waits for the last frame. A bar that stopped
// short of its total is aborted in place so Wait can return.
func (b *ProgressBar) Done() {
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.p.Wait()
}

// LogSink writes every update as an info line. Meant to sit behind a
// Throttle for non-interactive runs.
type LogSink struct{}

func (LogSink) Update(s Status) {
	logger.Info.Printf("[%3d%%] %d/%d %s %s", s.Percent(), s.Completed, s.Total, s.etaText(), s.Text)
}

func (LogSink) Done() {}

// Throttle forwards at most one update per interval to the wrapped sink.
// Updates arriving in between are coalesced and the latest one is
// delivered when the interval ends.
type Throttle struct {
	sink     Sink
	interval time.Duration

	mu      sync.Mutex
	last    time.Time
	pending *Status
	timer   *time.Timer
}

func NewThrottle(sink Sink, interval time.Duration) *Throttle {
	return &Throttle{sink: sink, interval: interval}
}

func (t *Throttle) Update(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.timer == nil && now.Sub(t.last) >= t.interval {
		t.last = now
		t.sink.Update(s)
		return
	}
	t.pending = &s
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval-now.Sub(t.last), t.fire)
	}
}

func (t *Throttle) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = nil
	t.emitPending()
}

func (t *Throttle) emitPending() {
	if t.pending == nil {
		return
	}
	t.last = time.Now()
	t.sink.Update(*t.pending)
	t.pending = nil
}

// Flush delivers a held-back update immediately.
func (t *Throttle) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.emitPending()
}

// Done flushes and finishes the wrapped sink.
func (t *Throttle) Done() {
	t.Flush()
	t.sink.Done()
}
