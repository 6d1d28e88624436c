// Package messaging pushes change notifications to the UI shell so it can
// re-render without polling: over SSE when the shell talks REST, over stdout
// when it runs the core as a child process.
package messaging

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// Event names understood by the shell.
const (
	SessionChanged      = "session_changed"
	CatalogUpdated      = "catalog_updated"
	ConsumedFoodUpdated = "consumed_food_updated"
	PantryUpdated       = "pantry_updated"
	GoalsUpdated        = "goals_updated"
)

type MessageBroadcaster interface {
	Broadcast(message string)
}

type SSEBroadcaster struct{}

func (b *SSEBroadcaster) Broadcast(message string) {
	BroadcastSSEMessage(message)
}

type StandardIOBroadcaster struct{}

func (b *StandardIOBroadcaster) Broadcast(message string) {
	BroadcastStandardIOMessage(message)
}

var broadcaster MessageBroadcaster

// InitBroadcaster installs the broadcaster implementation. Passing nil
// installs the SSE broadcaster.
func InitBroadcaster(b MessageBroadcaster) {
	if b == nil {
		b = &SSEBroadcaster{}
	}
	broadcaster = b
}

// BroadcastMessage sends message through the installed broadcaster. A nil
// broadcaster drops the message, which keeps headless tests quiet.
func BroadcastMessage(message string) {
	if broadcaster != nil {
		broadcaster.Broadcast(message)
	}
}

var (
	sseClients      = make(map[chan string]bool)
	sseClientsMutex sync.Mutex
)

// AddSSEClient registers a client channel for broadcasts.
func AddSSEClient(client chan string) {
	sseClientsMutex.Lock()
	sseClients[client] = true
	sseClientsMutex.Unlock()
}

// RemoveSSEClient unregisters and closes a client channel.
func RemoveSSEClient(client chan string) {
	sseClientsMutex.Lock()
	if _, ok := sseClients[client]; ok {
		delete(sseClients, client)
		close(client)
	}
	sseClientsMutex.Unlock()
}

// BroadcastStandardIOMessage writes an event envelope to stdout for a shell
// that runs the core as a child process.
func BroadcastStandardIOMessage(message string) {
	envelope := struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}{
		Type: "event",
		Data: message,
	}
	if err := json.NewEncoder(os.Stdout).Encode(envelope); err != nil {
		log.Printf("Error sending stdio event: %v", err)
	}
}

// BroadcastSSEMessage delivers message to every connected client. Clients
// whose channel is full are assumed dead and removed.
func BroadcastSSEMessage(message string) {
	sseClientsMutex.Lock()
	defer sseClientsMutex.Unlock()

	for client := range sseClients {
		select {
		case client <- message:
		default:
			log.Printf("SSE client channel full, removing client")
			delete(sseClients, client)
			close(client)
		}
	}
}
