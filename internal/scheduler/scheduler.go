package scheduler

import (
	"context"
	"sync"
	"time"

	"board-tiler/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Outcome is what a task reports back: how often it retried and whether it
// finally failed.
type Outcome struct {
	Retries int
	Err     error
}

// Task runs the i-th unit of work.
type Task func(ctx context.Context, i int) Outcome

// Progress is passed to the progress callback after every finished task.
type Progress struct {
	Completed   int
	Failed      int
	Total       int
	BytesDone   int64
	BytesTotal  int64
	Concurrency int
	Elapsed     time.Duration
}

type Report struct {
	Errors    []error // per task, nil on success
	Succeeded int
	Failed    int
	Retries   int
	Bytes     int64 // bytes of succeeded tasks
	History   []int // concurrency of every batch, in order
	Elapsed   time.Duration
}

// Err returns the first task error, if any.
func (r Report) Err() error {
	for _, err := range r.Errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Scheduler struct {
	cfg        Config
	onProgress func(Progress)
}

type Option func(*Scheduler)

func WithProgress(fn func(Progress)) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{cfg: cfg.normalized()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes tasks 0..n-1 in batches of max(4, 2c), where c is the current
// concurrency. Tasks are started in index order but may finish in any order.
// A failing task never stops its siblings. When ctx is done no new batch is
// started and the remaining tasks are reported with ctx's error.
func (s *Scheduler) Run(ctx context.Context, n int, size func(i int) int64, work Task) Report {
	start := time.Now()
	rep := Report{Errors: make([]error, n)}

	var bytesTotal int64
	if size != nil {
		for i := range n {
			bytesTotal += size(i)
		}
	}

	ctl := newController(s.cfg)
	var (
		mu       sync.Mutex
		done     int
		bytesAll int64
	)

	for next := 0; next < n; {
		if err := ctx.Err(); err != nil {
			for i := next; i < n; i++ {
				rep.Errors[i] = err
				rep.Failed++
			}
			break
		}

		c := ctl.level()
		end := min(n, next+max(4, 2*c))
		rep.History = append(rep.History, c)

		var (
			batchRetries int
			batchBytes   int64
			batchLatency time.Duration
		)
		batchStart := time.Now()

		g := new(errgroup.Group)
		g.SetLimit(c)
		for i := next; i < end; i++ {
			g.Go(func() error {
				t0 := time.Now()
				out := work(ctx, i)
				took := time.Since(t0)

				var sz int64
				if size != nil {
					sz = size(i)
				}

				mu.Lock()
				defer mu.Unlock()
				done++
				batchRetries += out.Retries
				batchLatency += took
				rep.Retries += out.Retries
				if out.Err != nil {
					rep.Errors[i] = out.Err
					rep.Failed++
					logger.Warn.Printf("Task %d failed after %d retries: %v", i, out.Retries, out.Err)
				} else {
					rep.Succeeded++
					rep.Bytes += sz
					batchBytes += sz
				}
				bytesAll += sz
				if s.onProgress != nil {
					s.onProgress(Progress{
						Completed:   done,
						Failed:      rep.Failed,
						Total:       n,
						BytesDone:   bytesAll,
						BytesTotal:  bytesTotal,
						Concurrency: c,
						Elapsed:     time.Since(start),
					})
				}
				return nil
			})
		}
		_ = g.Wait()

		items := end - next
		ctl.observe(batchStats{
			items:   items,
			retries: batchRetries,
			bytes:   batchBytes,
			elapsed: time.Since(batchStart),
			latency: batchLatency / time.Duration(items),
		})
		next = end
	}

	rep.Elapsed = time.Since(start)
	return rep
}

type batchStats struct {
	items   int
	retries int
	bytes   int64
	elapsed time.Duration
	latency time.Duration // mean per item
}

// throughput is bytes per second when the batch moved bytes, items per
// second otherwise.
func (b batchStats) throughput() float64 {
	secs := b.elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-6
	}
	if b.bytes > 0 {
		return float64(b.bytes) / secs
	}
	return float64(b.items) / secs
}

// controller is the feedback loop that picks the concurrency of the next
// batch. The EWMA is restarted whenever the level changes, so a probed
// level is judged only by batches that ran at it. Backing off or reverting
// a probe caps the ceiling and starts a cooldown; once the cooldown is over
// the ceiling is lifted to Max again.
type controller struct {
	cfg Config

	c        int
	ceiling  int
	cooldown int

	ewma   float64
	seeded bool

	probing  int // probe batches still to run, 0 when not probing
	prev     int // level before the probe
	baseline float64
}

func newController(cfg Config) *controller {
	return &controller{cfg: cfg, c: cfg.Initial, ceiling: cfg.Max}
}

func (ct *controller) level() int { return ct.c }

func (ct *controller) setLevel(c int) {
	if c != ct.c {
		ct.c = c
		ct.seeded = false
	}
}

func (ct *controller) observe(b batchStats) {
	if b.items == 0 {
		return
	}
	tp := b.throughput()
	if ct.seeded {
		ct.ewma = ct.cfg.Alpha*tp + (1-ct.cfg.Alpha)*ct.ewma
	} else {
		ct.ewma, ct.seeded = tp, true
	}

	retryRate := float64(b.retries) / float64(b.items)

	if retryRate > ct.cfg.UnstableRetryRate || b.latency > ct.cfg.UnstableLatency {
		next := max(ct.cfg.Min, ct.c-1)
		logger.Debug.Printf("Unstable batch (%.2f retries/item, %s latency), concurrency %d -> %d",
			retryRate, b.latency.Round(time.Millisecond), ct.c, next)
		ct.probing = 0
		ct.setLevel(next)
		ct.ceiling = next
		ct.cooldown = ct.cfg.CooldownBatches
		return
	}

	if ct.probing > 0 {
		ct.probing--
		if ct.probing > 0 {
			return
		}
		if ct.ewma >= ct.baseline*(1+ct.cfg.MinGain) {
			logger.Debug.Printf("Concurrency %d kept (%.1f/s vs %.1f/s)", ct.c, ct.ewma, ct.baseline)
			return
		}
		logger.Debug.Printf("Concurrency %d reverted to %d (%.1f/s vs %.1f/s)", ct.c, ct.prev, ct.ewma, ct.baseline)
		ct.ceiling = ct.prev
		ct.cooldown = ct.cfg.CooldownBatches
		ct.setLevel(ct.prev)
		return
	}

	if ct.cooldown > 0 {
		ct.cooldown--
		return
	}
	if ct.ceiling < ct.cfg.Max {
		logger.Debug.Printf("Cooldown over, ceiling %d lifted to %d", ct.ceiling, ct.cfg.Max)
		ct.ceiling = ct.cfg.Max
	}

	if retryRate < ct.cfg.StableRetryRate && b.latency < ct.cfg.StableLatency && ct.c < ct.ceiling {
		ct.prev = ct.c
		ct.baseline = ct.ewma
		ct.probing = ct.cfg.ProbeBatches
		ct.setLevel(ct.c + 1)
	}
}
