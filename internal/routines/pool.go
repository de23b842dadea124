// Package routines provides a fixed size pool of goroutines.
package routines

import "sync"

// Pool executes queued functions concurrently in a fixed number of
// goroutines.
type Pool struct {
	workCh   chan func()
	wg       sync.WaitGroup
	waitOnce sync.Once
}

// NewPool creates a pool and starts workers go-routines.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := Pool{workCh: make(chan func())}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return &p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for fn := range p.workCh {
		fn()
	}
}

// Queue schedules fn for execution. It blocks until a worker is available.
// Calling Queue after Wait panics.
func (p *Pool) Queue(fn func()) {
	p.workCh <- fn
}

// Wait waits until all queued functions finished and terminates the workers.
func (p *Pool) Wait() {
	p.waitOnce.Do(func() {
		close(p.workCh)
		p.wg.Wait()
	})
}
