package ui

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []int
	done bool
}

func (r *recorder) Update(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s.Completed)
}

func (r *recorder) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func TestThrottle_CoalescesBursts(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec, 50*time.Millisecond)

	for i := 1; i <= 10; i++ {
		th.Update(Status{Completed: i, Total: 10})
	}
	assert.Equal(t, []int{1}, rec.snapshot(), "first update passes straight through")

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 10}, rec.snapshot(), "trailing update is the latest")
}

func TestThrottle_Flush(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec, time.Hour)

	th.Update(Status{Completed: 1})
	th.Update(Status{Completed: 2})
	th.Update(Status{Completed: 3})
	assert.Equal(t, []int{1}, rec.snapshot())

	th.Done()
	assert.Equal(t, []int{1, 3}, rec.snapshot())
	assert.True(t, rec.done)

	th.Flush()
	assert.Equal(t, []int{1, 3}, rec.snapshot(), "nothing left to flush")
}

func TestThrottle_SpacedUpdatesPassThrough(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec, 10*time.Millisecond)

	th.Update(Status{Completed: 1})
	time.Sleep(20 * time.Millisecond)
	th.Update(Status{Completed: 2})
	assert.Equal(t, []int{1, 2}, rec.snapshot())
}

func TestStatus_Percent(t *testing.T) {
	assert.Equal(t, 0, Status{}.Percent())
	assert.Equal(t, 50, Status{Completed: 5, Total: 10}.Percent())
	assert.Equal(t, 100, Status{Completed: 12, Total: 10}.Percent())
	assert.Equal(t, "ETA --", Status{}.etaText())
	assert.Equal(t, "ETA 1m5s", Status{ETA: 65 * time.Second, HasETA: true}.etaText())
}

func waitDone(t *testing.T, s Sink) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		s.Done()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("progress bar did not finish")
	}
}

func TestProgressBar_Done(t *testing.T) {
	tests := []struct {
		name    string
		updates []Status
	}{
		{"stopped short", []Status{{Completed: 1, Total: 3, Text: "tile 1"}, {Completed: 2, Total: 4}}},
		{"complete", []Status{{Completed: 1, Total: 2}, {Completed: 2, Total: 2}}},
		{"no updates", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			pb := NewProgressBar(&buf, "Uploading", 3)
			for _, s := range tt.updates {
				pb.Update(s)
			}
			waitDone(t, pb)
		})
	}
}

func TestProgressBar_BehindThrottle(t *testing.T) {
	var buf bytes.Buffer
	th := NewThrottle(NewProgressBar(&buf, "Classifying", 8), time.Hour)
	for i := 1; i <= 7; i++ {
		th.Update(Status{Completed: i, Total: 8})
	}
	waitDone(t, th)
}
