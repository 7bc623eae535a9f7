package x402

import (
	"sync"

	"github.com/google/uuid"
)

// ChallengeSubscriber is notified when a challenge becomes pending.
// Subscribers are the presentation side of the rendezvous: they show the
// prompt, drive the executor, and report back through ResolvePaid or
// ResolveCancelled.
type ChallengeSubscriber func(PaymentChallenge)

// BrokerOption configures the broker
type BrokerOption func(*ChallengeBroker)

// WithSubscriber registers a subscriber at creation time
func WithSubscriber(fn ChallengeSubscriber) BrokerOption {
	return func(b *ChallengeBroker) {
		b.subscribers[uuid.NewString()] = fn
	}
}

// ChallengeBroker is the single rendezvous point between the request
// pipeline (producer of challenges) and a human-facing presentation
// layer (consumer). It holds at most one pending challenge at a time;
// a second submission while the slot is occupied is rejected rather
// than queued, so no caller blocks invisibly behind another's prompt.
//
// All slot access is serialized by a mutex. Subscribers are invoked
// outside the lock, so a subscriber that resolves synchronously from
// within Submit does not deadlock.
type ChallengeBroker struct {
	mu          sync.Mutex
	pending     *PaymentChallenge
	outcome     chan Outcome
	subscribers map[string]ChallengeSubscriber
}

// NewChallengeBroker creates an empty broker
func NewChallengeBroker(opts ...BrokerOption) *ChallengeBroker {
	b := &ChallengeBroker{
		subscribers: make(map[string]ChallengeSubscriber),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Submit places a challenge in the slot and publishes it to all
// subscribers. The returned channel resolves exactly once, with the
// challenge's Outcome. If another challenge is already pending the
// submission fails with a ProtocolError carrying
// ErrCodeConcurrentChallenge and the slot is left untouched.
func (b *ChallengeBroker) Submit(challenge PaymentChallenge) (<-chan Outcome, error) {
	b.mu.Lock()
	if b.pending != nil {
		pendingSession := b.pending.SessionID
		b.mu.Unlock()
		return nil, NewProtocolError(
			ErrCodeConcurrentChallenge,
			"another payment challenge is already pending",
			map[string]interface{}{
				"pending_session_id": pendingSession,
			},
		)
	}

	pending := challenge
	b.pending = &pending
	b.outcome = make(chan Outcome, 1)
	outcome := b.outcome

	subs := make([]ChallengeSubscriber, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(challenge)
	}

	return outcome, nil
}

// ResolvePaid resolves the pending challenge as paid with the given
// receipt. A session id that does not match the pending challenge is a
// stale or duplicate signal and is ignored; the pending challenge stays
// pending. Returns whether the slot was resolved.
func (b *ChallengeBroker) ResolvePaid(sessionID, receipt string) bool {
	return b.resolve(sessionID, Outcome{Paid: true, Receipt: receipt})
}

// ResolveCancelled resolves the pending challenge as cancelled. Same
// session-id matching rules as ResolvePaid. A surrounding component may
// call this on teardown to release an abandoned prompt.
func (b *ChallengeBroker) ResolveCancelled(sessionID string) bool {
	return b.resolve(sessionID, Outcome{})
}

// resolve clears the slot and delivers the outcome. Clearing and
// delivery happen under the same lock, so racing resolutions (paid vs.
// cancelled vs. deadline expiry) serialize and only the first wins.
func (b *ChallengeBroker) resolve(sessionID string, outcome Outcome) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil || b.pending.SessionID != sessionID {
		return false
	}

	b.outcome <- outcome
	b.pending = nil
	b.outcome = nil
	return true
}

// Pending returns the currently pending challenge, if any.
func (b *ChallengeBroker) Pending() (PaymentChallenge, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		return PaymentChallenge{}, false
	}
	return *b.pending, true
}

// Subscribe registers a subscriber and returns its unsubscribe function.
func (b *ChallengeBroker) Subscribe(fn ChallengeSubscriber) (unsubscribe func()) {
	id := uuid.NewString()

	b.mu.Lock()
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}
