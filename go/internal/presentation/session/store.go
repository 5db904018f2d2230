package session

import "context"

// Unsubscribe releases a subscription. After it returns the subscriber must
// not invoke the change callback again.
type Unsubscribe func()

// Subscriber delivers the full session record on every remote change.
// Deliveries are last-value-wins: intermediate states may be skipped and the
// same value may arrive more than once, but deliveries are never reordered.
// Missing or empty records are not delivered.
type Subscriber interface {
	Subscribe(ctx context.Context, code string, onChange func(Record)) (Unsubscribe, error)
}

// Publisher writes the whole session record as one atomic document write.
type Publisher interface {
	Put(ctx context.Context, code string, rec Record) error
}

// Store is a backing store for session records.
type Store interface {
	Subscriber
	Publisher
	// Get returns ErrRecordNotFound when nothing has been written for code.
	Get(ctx context.Context, code string) (Record, error)
}
