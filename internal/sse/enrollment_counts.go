package sse

import (
	"context"
	"sync"

	"ms-petevents/internal/models"
)

// EnrollmentCountEmitter fans out enrolled-count updates to subscribers of an event.
type EnrollmentCountEmitter struct {
	clients map[string][]chan models.EnrollmentCount
	mu      sync.RWMutex
}

func NewEnrollmentCountEmitter() *EnrollmentCountEmitter {
	return &EnrollmentCountEmitter{
		clients: make(map[string][]chan models.EnrollmentCount),
	}
}

// Subscribe returns a channel of updates for eventID. The channel is closed
// and removed once ctx is done.
func (e *EnrollmentCountEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.EnrollmentCount {
	clientChan := make(chan models.EnrollmentCount, 10)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

// Emit never blocks; a subscriber with a full buffer misses the update.
func (e *EnrollmentCountEmitter) Emit(update models.EnrollmentCount) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[update.EventID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *EnrollmentCountEmitter) removeClient(eventID string, clientChan chan models.EnrollmentCount) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

func (e *EnrollmentCountEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
