// Package transporttest provides a Sender fake for tests.
package transporttest

import (
	"context"
	"sync"
)

type Message struct {
	RecipientID int64
	Text        string
}

// Recorder captures outbound messages and can simulate per-recipient
// delivery failures.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[int64]error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[int64]error)}
}

func (r *Recorder) FailFor(recipientID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[recipientID] = err
}

func (r *Recorder) Send(_ context.Context, recipientID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[recipientID]; ok {
		return err
	}
	r.messages = append(r.messages, Message{RecipientID: recipientID, Text: text})
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
