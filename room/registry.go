package room

import "sync"

// Registry is the process-wide room table. It is constructed once at
// startup and injected into the relay service; create-if-absent is
// atomic, so concurrent joins to the same id always observe the same
// Room instance. Rooms are never removed; an empty room is a few dozen
// bytes and the id space is bounded by what clients have joined.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it if absent. At most one
// Room is ever constructed per id.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r = New(id)
	g.rooms[id] = r
	return r
}

// Get returns the room for id without creating it. Sending to a room
// nobody has joined must fail, so the send path uses this lookup.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}
