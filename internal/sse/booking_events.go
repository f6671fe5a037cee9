package sse

import (
	"context"
	"sync"

	"ms-booking/internal/models"
)

// BookingEmitter fans booking changes out to the SSE clients watching an
// event. It satisfies the booking service's publisher interface.
type BookingEmitter struct {
	mu      sync.RWMutex
	clients map[int64][]chan models.BookingEvent
	buffer  int
}

func NewBookingEmitter() *BookingEmitter {
	return &BookingEmitter{
		clients: make(map[int64][]chan models.BookingEvent),
		buffer:  10,
	}
}

// SubscribeToEvent registers a client for eventID. The channel is closed
// once ctx is done.
func (e *BookingEmitter) SubscribeToEvent(ctx context.Context, eventID int64) <-chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, e.buffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

// PublishBookingEvent never blocks: a client whose buffer is full misses
// the message. A booking moved between events reaches the watchers of both.
// event.deleted is the last message of an event: its streams are closed.
func (e *BookingEmitter) PublishBookingEvent(_ context.Context, event models.BookingEvent) error {
	e.broadcast(event.EventID, event)
	if event.PreviousEventID != 0 && event.PreviousEventID != event.EventID {
		e.broadcast(event.PreviousEventID, event)
	}
	if event.Type == models.EventDeleted {
		e.closeEvent(event.EventID)
	}
	return nil
}

func (e *BookingEmitter) broadcast(eventID int64, event models.BookingEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[eventID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *BookingEmitter) closeEvent(eventID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, clientChan := range e.clients[eventID] {
		close(clientChan)
	}
	delete(e.clients, eventID)
}

func (e *BookingEmitter) removeClient(eventID int64, clientChan chan models.BookingEvent) {
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

// ClientCount returns the number of clients currently watching eventID.
func (e *BookingEmitter) ClientCount(eventID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
