package routing

import "sync"

// serialQueue runs submitted jobs one at a time per key, in submission
// order. Distinct keys run concurrently. A key's worker goroutine exits
// as soon as its backlog is empty.
type serialQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

func newSerialQueue() *serialQueue {
	return &serialQueue{pending: make(map[string][]func())}
}

// Submit appends job to key's backlog, starting a worker if none is running.
func (q *serialQueue) Submit(key string, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	backlog, running := q.pending[key]
	q.pending[key] = append(backlog, job)
	if !running {
		q.wg.Add(1)
		go q.drain(key)
	}
}

func (q *serialQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		backlog := q.pending[key]
		if len(backlog) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		job := backlog[0]
		q.pending[key] = backlog[1:]
		q.mu.Unlock()

		job()
	}
}

// Active returns the number of keys with a running worker.
func (q *serialQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every worker has drained.
func (q *serialQueue) Wait() {
	q.wg.Wait()
}
