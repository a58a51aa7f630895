package threadpool

import (
	"sync"

	"go.uber.org/zap"
)

// message is the shared-queue's internal unit of work: either a Task to
// run, or a Shutdown signal telling the receiving worker to exit. This
// mirrors the Rust original's Message::Task/Message::Shutdown enum.
type message struct {
	task     func()
	shutdown bool
}

// SharedQueue is a fixed-size pool of workers pulling jobs off one bounded
// channel (spec §7: "a fixed-size pool of worker goroutines reading from a
// single shared, bounded queue"). The channel capacity is 4*numWorkers,
// the same headroom the original Rust implementation gives the MPMC queue
// before Spawn blocks.
type SharedQueue struct {
	ch         chan message
	numWorkers int
	log        *zap.SugaredLogger

	closeOnce sync.Once
}

// NewSharedQueue starts numWorkers workers immediately. numWorkers must be
// at least 1.
func NewSharedQueue(numWorkers int, log *zap.SugaredLogger) *SharedQueue {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	p := &SharedQueue{
		ch:         make(chan message, 4*numWorkers),
		numWorkers: numWorkers,
		log:        log,
	}
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

// Spawn enqueues job, blocking if the queue is full. job runs on some
// worker goroutine, not necessarily the caller's, and not necessarily in
// submission order relative to other jobs.
func (p *SharedQueue) Spawn(job func()) {
	p.ch <- message{task: job}
}

// Shutdown sends one Shutdown message per worker and returns once the
// channel has accepted all of them; it does not wait for in-flight jobs to
// finish. Safe to call more than once.
func (p *SharedQueue) Shutdown() {
	p.closeOnce.Do(func() {
		for i := 0; i < p.numWorkers; i++ {
			p.ch <- message{shutdown: true}
		}
	})
}

// worker pulls messages until it receives Shutdown. A job that panics is
// caught by runTask, which respawns a replacement worker on the same
// channel before returning — the Go analogue of the Rust TaskHandler's
// Drop impl spawning a replacement thread when it unwinds from a panic.
// A worker that exits because of Shutdown, rather than a panic, does not
// respawn.
func (p *SharedQueue) worker() {
	for msg := range p.ch {
		if msg.shutdown {
			return
		}
		if p.runTask(msg.task) {
			return
		}
	}
}

// runTask executes task, recovering any panic. It reports whether the
// worker that called it should stop (true) because a replacement worker
// has already been spawned to take its place.
func (p *SharedQueue) runTask(task func()) (respawned bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("panic recovered in worker pool task; respawning worker", "panic", r)
			go p.worker()
			respawned = true
		}
	}()
	task()
	return false
}
