// Package mail defines the mailbox collaborator used for email queries.
package mail

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Message is a mailbox entry summary.
type Message struct {
	ReceivedAt time.Time `json:"receivedAt" yaml:"receivedAt"`
	ID         string    `json:"id" yaml:"id"`
	From       string    `json:"from" yaml:"from"`
	Subject    string    `json:"subject" yaml:"subject"`
	Snippet    string    `json:"snippet,omitempty" yaml:"snippet"`
	Unread     bool      `json:"unread" yaml:"unread"`
}

// Query selects messages. Zero fields do not filter.
type Query struct {
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`
	// Text matches subject, snippet or sender, case-insensitively.
	Text       string `json:"text,omitempty"`
	From       string `json:"from,omitempty"`
	UnreadOnly bool   `json:"unreadOnly,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Mailbox is the email collaborator.
type Mailbox interface {
	Search(ctx context.Context, q Query) ([]Message, error)
}

// MemoryMailbox is an in-process Mailbox.
type MemoryMailbox struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemoryMailbox creates a mailbox holding messages.
func NewMemoryMailbox(messages ...Message) *MemoryMailbox {
	m := &MemoryMailbox{}
	m.Add(messages...)
	return m
}

// Add stores messages.
func (m *MemoryMailbox) Add(messages ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

// Search implements Mailbox. Results are newest first.
func (m *MemoryMailbox) Search(ctx context.Context, q Query) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	text := strings.ToLower(strings.TrimSpace(q.Text))
	from := strings.ToLower(strings.TrimSpace(q.From))
	var out []Message
	for _, msg := range m.messages {
		if q.UnreadOnly && !msg.Unread {
			continue
		}
		if !q.Since.IsZero() && msg.ReceivedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !msg.ReceivedAt.Before(q.Until) {
			continue
		}
		if from != "" && !strings.Contains(strings.ToLower(msg.From), from) {
			continue
		}
		if text != "" && !matchesText(msg, text) {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesText(msg Message, text string) bool {
	for _, term := range strings.Fields(text) {
		hay := strings.ToLower(msg.Subject + " " + msg.Snippet + " " + msg.From)
		if !strings.Contains(hay, term) {
			return false
		}
	}
	return true
}
