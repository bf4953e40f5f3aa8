// Package feed fans out per-user change notifications to live subscribers.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Kind describes a mutation.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Event notifies subscribers that one of a user's items changed.
type Event struct {
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
	Kind   Kind   `json:"kind"`
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Broker delivers events to the subscribers of the event's user.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

// NewBroker creates a broker. buffer < 1 uses DefaultBuffer.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for a user's events. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish sends ev to every subscriber of ev.UserID without blocking.
// Returns the number of subscribers that received it.
func (b *Broker) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for a user.
func (b *Broker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// NotifyingRepository publishes an Event after each successful mutation
// of the wrapped repository.
type NotifyingRepository struct {
	schedule.Repository
	broker *Broker
}

// Wrap decorates repo so that writes publish to broker.
func Wrap(repo schedule.Repository, broker *Broker) *NotifyingRepository {
	return &NotifyingRepository{Repository: repo, broker: broker}
}

// CreateItem stores the item and publishes KindCreated.
func (r *NotifyingRepository) CreateItem(ctx context.Context, item *schedule.Item) error {
	if err := r.Repository.CreateItem(ctx, item); err != nil {
		return err
	}
	r.broker.Publish(Event{UserID: item.UserID, ItemID: item.ID, Kind: KindCreated})
	return nil
}

// UpdateItem stores the item and publishes KindUpdated.
func (r *NotifyingRepository) UpdateItem(ctx context.Context, item *schedule.Item) error {
	if err := r.Repository.UpdateItem(ctx, item); err != nil {
		return err
	}
	r.broker.Publish(Event{UserID: item.UserID, ItemID: item.ID, Kind: KindUpdated})
	return nil
}

// DeleteItem removes the item and publishes KindDeleted.
func (r *NotifyingRepository) DeleteItem(ctx context.Context, userID, id string) error {
	if err := r.Repository.DeleteItem(ctx, userID, id); err != nil {
		return err
	}
	r.broker.Publish(Event{UserID: userID, ItemID: id, Kind: KindDeleted})
	return nil
}

// SetCompleted updates the flag and publishes KindUpdated.
func (r *NotifyingRepository) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	if err := r.Repository.SetCompleted(ctx, userID, id, completed); err != nil {
		return err
	}
	r.broker.Publish(Event{UserID: userID, ItemID: id, Kind: KindUpdated})
	return nil
}

// Debounce coalesces bursts from in into single ticks on the returned
// channel, emitted once in has been quiet for wait. The output closes
// when in closes or ctx is done.
func Debounce(ctx context.Context, in <-chan Event, wait time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					return
				}
				if timer == nil {
					timer = time.NewTimer(wait)
				} else {
					timer.Reset(wait)
				}
				timerCh = timer.C
			case <-timerCh:
				timerCh = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// NotifyingStore is a Store whose item writes publish to a broker.
type NotifyingStore struct {
	*NotifyingRepository
	schedule.UserRepository
}

// WrapStore decorates the item half of store like Wrap.
func WrapStore(store schedule.Store, broker *Broker) *NotifyingStore {
	return &NotifyingStore{
		NotifyingRepository: Wrap(store, broker),
		UserRepository:      store,
	}
}
