package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
)

var ErrEmptyMessage = errors.New("message cannot be empty")

// subscriberBuffer is the per-subscriber delivery queue depth. A subscriber
// that falls further behind starts missing messages rather than stalling the
// channel; live delivery is best-effort, history is what the store says.
const subscriberBuffer = 32

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns the submission's thread ordered by creation time.
		QueryMessages(ctx context.Context, submissionID string) ([]Message, error)
	}

	// Hub fans persisted messages out to the live subscribers of each
	// submission's channel. A message is broadcast only after it is stored,
	// and channels with no subscribers hold no state.
	Hub struct {
		repo   Repository
		logger core.Logger

		mu       sync.Mutex
		channels map[string]*channel
	}

	channel struct {
		mu   sync.Mutex // serializes persist+broadcast; acceptance order is broadcast order
		subs map[*Subscriber]struct{}
	}

	// Subscriber is one live connection joined to a channel.
	Subscriber struct {
		hub          *Hub
		submissionID string
		ch           chan Message
		once         sync.Once
	}
)

func NewHub(repo Repository, logger core.Logger) *Hub {
	return &Hub{
		repo:     repo,
		logger:   logger,
		channels: make(map[string]*channel),
	}
}

// Join subscribes to a submission's channel for subsequent messages. History
// is not replayed; fetch it via History before joining.
func (h *Hub) Join(submissionID string) *Subscriber {
	sub := &Subscriber{
		hub:          h,
		submissionID: submissionID,
		ch:           make(chan Message, subscriberBuffer),
	}

	// held across the insert so a concurrent leave cannot orphan the channel
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[submissionID]
	if !ok {
		ch = &channel{subs: make(map[*Subscriber]struct{})}
		h.channels[submissionID] = ch
	}
	ch.mu.Lock()
	ch.subs[sub] = struct{}{}
	ch.mu.Unlock()
	return sub
}

// Send persists the message and broadcasts it, with its server-assigned
// timestamp, to the channel's current subscribers. Persistence failure
// suppresses the broadcast. Each accepted send is stored and broadcast
// exactly once.
func (h *Hub) Send(ctx context.Context, submissionID string, actor core.Actor, body string) (Message, error) {
	body = core.CleanString(body)
	if body == "" {
		return Message{}, core.NewValidationError(ErrEmptyMessage, core.FieldError{Field: "message", Error: ErrEmptyMessage.Error()})
	}

	msg := Message{
		SubmissionID: submissionID,
		Sender:       actor.Name,
		SenderRole:   actor.Role,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
	}

	h.mu.Lock()
	ch := h.channels[submissionID]
	h.mu.Unlock()

	if ch == nil {
		// nobody is listening; still record the message
		return h.repo.CreateMessage(ctx, msg)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	msg, err := h.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "storing chat message")
	}

	for sub := range ch.subs {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("chat: dropping message for slow subscriber", msg.SubmissionID)
		}
	}
	return msg, nil
}

// History returns the submission's stored thread in creation order.
func (h *Hub) History(ctx context.Context, submissionID string) ([]Message, error) {
	return h.repo.QueryMessages(ctx, submissionID)
}

func (h *Hub) leave(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[sub.submissionID]
	if !ok {
		return
	}
	ch.mu.Lock()
	delete(ch.subs, sub)
	empty := len(ch.subs) == 0
	ch.mu.Unlock()
	if empty {
		delete(h.channels, sub.submissionID)
	}
}

// Receive is the subscriber's delivery channel; it is closed on Close.
func (s *Subscriber) Receive() <-chan Message { return s.ch }

// Close unsubscribes and closes the delivery channel. Safe to call twice.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.leave(s)
		close(s.ch)
	})
}
