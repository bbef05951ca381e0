// Package chat opens discussion threads for expedition runs and posts run
// announcements into them.
package chat

import (
	"context"
	"errors"
)

var ErrThreadNotFound = errors.New("chat: thread not found")

// Message is an announcement with an optional rendered image.
type Message struct {
	Title    string
	Body     string
	ImageURL string
	Fields   []Field
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Thread struct {
	ID  string
	URL string
}

type Client interface {
	CreateThread(ctx context.Context, name string) (Thread, error)
	// UnarchiveThread reopens an existing thread and returns it.
	UnarchiveThread(ctx context.Context, id string) (Thread, error)
	Post(ctx context.Context, threadID string, msg Message) error
}
