package threadpool

// Naive spawns one goroutine per job and waits for it to finish before
// Spawn returns, matching the Rust original's NaiveThreadPool: it is a
// thread pool in name only, kept around as the spec's baseline/comparison
// implementation rather than something a real deployment should pick.
type Naive struct{}

// NewNaive returns a Naive pool. numWorkers is accepted for interface
// symmetry with NewSharedQueue but otherwise ignored, same as the
// original's NaiveThreadPool::new.
func NewNaive(numWorkers int) *Naive {
	return &Naive{}
}

// Spawn runs job on its own goroutine and blocks until it returns. A
// panic in job is recovered and discarded.
func (p *Naive) Spawn(job func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = recover() }()
		job()
	}()
	<-done
}

// Shutdown is a no-op: Naive holds no background goroutines between calls
// to Spawn.
func (p *Naive) Shutdown() {}
