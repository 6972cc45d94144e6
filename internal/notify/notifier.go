package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pusher delivers live notifications to connected sessions.
type Pusher interface {
	// Notify reaches the sessions of one account.
	Notify(email, action string, payload interface{}) bool
	// Publish reaches every session.
	Publish(action string, payload interface{}) bool
}

// Notification is a side effect of a completed mutation.
type Notification struct {
	Recipient string
	Subject   string
	Body      string
	// Action and Payload are pushed to live sessions when Action is set, to
	// every session when Recipient is empty.
	Action  string
	Payload interface{}
}

// Notifier dispatches notifications in the background. Delivery is bounded by
// a timeout and failures are logged, never returned to the caller.
type Notifier struct {
	mailer  Mailer
	pusher  Pusher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier. pusher may be nil.
func NewNotifier(mailer Mailer, pusher Pusher, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{mailer: mailer, pusher: pusher, timeout: timeout}
}

// Dispatch delivers n asynchronously and returns immediately.
func (n *Notifier) Dispatch(note Notification) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(note)
	}()
}

// Wait blocks until every dispatched notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(note Notification) {
	if n.pusher != nil && note.Action != "" {
		if note.Recipient == "" {
			n.pusher.Publish(note.Action, note.Payload)
		} else {
			n.pusher.Notify(note.Recipient, note.Action, note.Payload)
		}
	}
	if n.mailer == nil || note.Subject == "" || note.Recipient == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.mailer.Send(ctx, note.Recipient, note.Subject, note.Body); err != nil {
		log.Error().Err(err).Str("recipient", note.Recipient).Str("subject", note.Subject).Msg("Failed to send email notification")
		return
	}
	log.Debug().Str("recipient", note.Recipient).Str("subject", note.Subject).Msg("Email notification sent")
}
