package auth

import (
	"context"
	"sync"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// LoginFunc is invoked after a user signs in.
type LoginFunc func(ctx context.Context, u *schedule.User)

// Callbacks is a registry of login listeners. The zero value is ready to use.
type Callbacks struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]LoginFunc
	order  []int
}

// Register adds fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (cb *Callbacks) Register(fn LoginFunc) func() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.fns == nil {
		cb.fns = make(map[int]LoginFunc)
	}
	id := cb.nextID
	cb.nextID++
	cb.fns[id] = fn
	cb.order = append(cb.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			cb.mu.Lock()
			defer cb.mu.Unlock()
			delete(cb.fns, id)
			for i, v := range cb.order {
				if v == id {
					cb.order = append(cb.order[:i], cb.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Fire calls every registered function in registration order.
func (cb *Callbacks) Fire(ctx context.Context, u *schedule.User) {
	cb.mu.Lock()
	fns := make([]LoginFunc, 0, len(cb.order))
	for _, id := range cb.order {
		fns = append(fns, cb.fns[id])
	}
	cb.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, u)
	}
}

// Len returns the number of registered functions.
func (cb *Callbacks) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.order)
}
