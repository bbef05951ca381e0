package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Local keeps threads in memory and writes posts to the log. It stands in
// for a chat platform in development.
type Local struct {
	logger *slog.Logger

	mu      sync.Mutex
	threads map[string][]Message
	created int
}

func NewLocal(logger *slog.Logger) *Local {
	return &Local{logger: logger, threads: make(map[string][]Message)}
}

func (l *Local) CreateThread(_ context.Context, name string) (Thread, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.threads[id] = nil
	l.created++
	l.logger.Info("thread created", "thread_id", id, "name", name)
	return Thread{ID: id}, nil
}

func (l *Local) UnarchiveThread(_ context.Context, id string) (Thread, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.threads[id]; !ok {
		return Thread{}, ErrThreadNotFound
	}
	l.logger.Info("thread unarchived", "thread_id", id)
	return Thread{ID: id}, nil
}

func (l *Local) Post(_ context.Context, threadID string, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.threads[threadID]; !ok {
		return ErrThreadNotFound
	}
	l.threads[threadID] = append(l.threads[threadID], msg)
	l.logger.Info("thread message", "thread_id", threadID, "title", msg.Title, "image", msg.ImageURL)
	return nil
}

// Created returns how many threads have been opened.
func (l *Local) Created() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created
}

// Messages returns the posts in a thread.
func (l *Local) Messages(threadID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.threads[threadID]...)
}
