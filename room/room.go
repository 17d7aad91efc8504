package room

import (
	"sync"

	"github.com/zlnvch/cipherchat/models"
)

// EventSink receives outbound room events. Deliver must not block; a sink
// that cannot keep up drops the event rather than stalling the room.
type EventSink interface {
	Deliver(event []byte)
}

type member struct {
	identity models.Identity
	sink     EventSink
}

// maxRetainedMessages bounds the in-memory message tail per room. The
// durable copy lives in the store; this tail exists only for replay to
// joining members.
const maxRetainedMessages = 200

// Room owns its member set and message sequence. All mutations go through
// its methods under a single mutex, so AddMember, RemoveMember, Broadcast
// and Notify are linearizable with respect to each other. Rooms never
// share state, so operations on different rooms proceed independently.
type Room struct {
	id string

	mu       sync.Mutex
	members  map[string]member // keyed by tripcode
	order    []string          // tripcodes in insertion order
	messages []models.Message
}

func New(id string) *Room {
	return &Room{
		id:      id,
		members: make(map[string]member),
	}
}

func (r *Room) Id() string {
	return r.id
}

// AddMember inserts the identity keyed by its tripcode. A second add with
// the same tripcode refreshes the sink (reconnection) and reports false;
// the member set never holds duplicates.
func (r *Room) AddMember(identity models.Identity, sink EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.members[identity.Tripcode]
	r.members[identity.Tripcode] = member{identity: identity, sink: sink}
	if !exists {
		r.order = append(r.order, identity.Tripcode)
	}
	return !exists
}

// RemoveMember removes the member if present. Removing an absent tripcode
// is a no-op and reports false.
func (r *Room) RemoveMember(tripcode string) (models.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[tripcode]
	if !ok {
		return models.Identity{}, false
	}
	delete(r.members, tripcode)
	for i, t := range r.order {
		if t == tripcode {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return m.identity, true
}

// Member reports the identity currently registered for a tripcode.
func (r *Room) Member(tripcode string) (models.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[tripcode]
	return m.identity, ok
}

// Members lists current identities in insertion order.
func (r *Room) Members() []models.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Identity, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.members[t].identity)
	}
	return out
}

// Broadcast appends the message to the room's sequence and fans the event
// out to the members present at the instant of append. Append and delivery
// happen under the room mutex, so every member observes events in append
// order; Deliver must not block (see EventSink), making this safe to hold.
func (r *Room) Broadcast(msg models.Message, event []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if len(r.messages) > maxRetainedMessages {
		r.messages = r.messages[len(r.messages)-maxRetainedMessages:]
	}
	r.deliverLocked(event)
}

// Notify fans an event out to the current members without touching the
// message sequence. Used for membership and moderation notices.
func (r *Room) Notify(event []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliverLocked(event)
}

func (r *Room) deliverLocked(event []byte) {
	for _, t := range r.order {
		if s := r.members[t].sink; s != nil {
			s.Deliver(event)
		}
	}
}

// RecentMessages returns a copy of the retained tail, oldest first,
// excluding soft-deleted messages.
func (r *Room) RecentMessages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Message, 0, len(r.messages))
	for _, m := range r.messages {
		if !m.Deleted {
			out = append(out, m)
		}
	}
	return out
}

// MarkDeleted flips the deleted flag on a retained message. The flag only
// ever goes false to true. Reports whether the id was found in the tail.
func (r *Room) MarkDeleted(messageId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].Id == messageId {
			r.messages[i].Deleted = true
			return true
		}
	}
	return false
}
