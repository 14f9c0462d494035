package email

import (
	"context"
	"encoding/json"
	"fmt"

	"EduPulse/pkg/queue"
)

// SendJobType is the queue message type for outgoing email.
const SendJobType = "email.send"

// Enqueuer is the producing side of a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// QueuedSender hands messages to a queue instead of sending them inline.
type QueuedSender struct {
	q Enqueuer
}

func NewQueuedSender(q Enqueuer) *QueuedSender {
	return &QueuedSender{q: q}
}

var _ Sender = (*QueuedSender)(nil)

func (s *QueuedSender) Send(ctx context.Context, msg Message) error {
	if err := s.q.Enqueue(ctx, SendJobType, msg); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// SendJob delivers queued email through a Sender.
type SendJob struct {
	sender Sender
}

func NewSendJob(sender Sender) *SendJob {
	return &SendJob{sender: sender}
}

var _ queue.Job = (*SendJob)(nil)

func (j *SendJob) Name() string { return "email_sender" }

func (j *SendJob) Type() string { return SendJobType }

func (j *SendJob) Handle(ctx context.Context, payload json.RawMessage) error {
	msg, err := queue.ParsePayload[Message](payload)
	if err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("email without recipient")
	}
	return j.sender.Send(ctx, *msg)
}
