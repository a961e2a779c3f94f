package room

import (
	"sync"

	"github.com/google/uuid"
)

// Manager is the registry of live rooms, one per referenced journal. A room
// left with no participants stays registered until CleanupEmptyRooms runs.
type Manager struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
}

func NewManager() *Manager {
	return &Manager{rooms: make(map[uuid.UUID]*Room)}
}

// GetOrCreate returns the existing room for journalID, or creates one
// using double-checked locking.
func (m *Manager) GetOrCreate(journalID uuid.UUID) *Room {
	m.mu.RLock()
	if r, ok := m.rooms[journalID]; ok {
		m.mu.RUnlock()
		return r
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[journalID]; ok {
		return r
	}

	r := newRoom(journalID)
	m.rooms[journalID] = r
	return r
}

// Get returns the room for journalID if one exists.
func (m *Manager) Get(journalID uuid.UUID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[journalID]
	return r, ok
}

// Remove drops a room from the registry, usually once it is empty.
func (m *Manager) Remove(journalID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, journalID)
}

// CleanupEmptyRooms removes every room with no participants.
func (m *Manager) CleanupEmptyRooms() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		if r.IsEmpty() {
			delete(m.rooms, id)
		}
	}
}

// RoomCount reports how many rooms are currently registered.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
