// Package registry holds the canonical records of the notification core:
// sessions and their participants and streams, local devices, and the arena
// of live state-machine instances.
//
// The registry is the single source of truth for "current state". Other
// components hold arena handles rather than pointers to instances they do not
// own. The index is guarded by one RWMutex and every room record by its own,
// so readers of different rooms never block each other and every read returns
// a value snapshot.
package registry

import (
	"sync"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/sirupsen/logrus"
)

// Kind classifies a state-machine instance.
type Kind int

const (
	KindSession Kind = iota
	KindPublisher
	KindPlayer
	KindMediaPlayer
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindPublisher:
		return "publisher"
	case KindPlayer:
		return "player"
	case KindMediaPlayer:
		return "mediaplayer"
	default:
		return "unknown"
	}
}

// Instance is a state machine owned by another component. Active must be
// safe to call without holding the instance's own lock.
type Instance interface {
	Kind() Kind
	// Key is the external identifier: room ID for sessions, stream ID for
	// publishers and players.
	Key() string
	// Active reports whether the instance is in its working state
	// (Connected, Publishing, Playing).
	Active() bool
}

// InstanceRef pairs a live instance with its handle and scope.
type InstanceRef struct {
	Handle   arena.Handle
	Instance Instance
	RoomID   string
	Channel  event.PublishChannel

	// Session is the handle of the session a publisher or player was started
	// under. It is the zero handle for sessions and media players.
	Session arena.Handle
}

type entry struct {
	instance Instance
	roomID   string
	channel  event.PublishChannel
	session  arena.Handle
}

func (e *entry) ref(h arena.Handle) InstanceRef {
	return InstanceRef{Handle: h, Instance: e.instance, RoomID: e.roomID, Channel: e.channel, Session: e.session}
}

// Registry is safe for concurrent use.
type Registry struct {
	instances *arena.Arena[*entry]

	mu             sync.RWMutex
	sessions       map[string]arena.Handle
	publishStreams map[string]arena.Handle
	publishChans   map[event.PublishChannel]arena.Handle
	playStreams    map[string]arena.Handle
	rooms          map[string]*roomRecord

	devices *deviceSet
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		instances:      arena.New[*entry](),
		sessions:       make(map[string]arena.Handle),
		publishStreams: make(map[string]arena.Handle),
		publishChans:   make(map[event.PublishChannel]arena.Handle),
		playStreams:    make(map[string]arena.Handle),
		rooms:          make(map[string]*roomRecord),
		devices:        newDeviceSet(),
	}
}

// AttachSession registers inst as the live session of roomID and creates the
// room record. It fails with ErrRoomExists while another session is live.
func (r *Registry) AttachSession(roomID string, inst Instance) (arena.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.sessions[roomID]; ok {
		if _, live := r.instances.Get(h); live {
			return arena.Handle{}, ErrRoomExists
		}
	}

	h := r.instances.Insert(&entry{instance: inst, roomID: roomID})
	r.sessions[roomID] = h
	r.rooms[roomID] = newRoomRecord(roomID)

	logrus.WithFields(logrus.Fields{
		"function": "Registry.AttachSession",
		"room_id":  roomID,
		"handle":   h.String(),
	}).Debug("Session attached")

	return h, nil
}

// AttachPublisher registers inst as the publisher of streamID on channel,
// scoped to the session addressed by session. Publishers already registered
// for the same stream or the same channel are detached and returned so the
// caller can cancel them.
func (r *Registry) AttachPublisher(session InstanceRef, streamID string, channel event.PublishChannel, inst Instance) (arena.Handle, []InstanceRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded []InstanceRef
	if h, ok := r.publishStreams[streamID]; ok {
		if ref, ok := r.detachLocked(h); ok {
			superseded = append(superseded, ref)
		}
	}
	if h, ok := r.publishChans[channel]; ok {
		if ref, ok := r.detachLocked(h); ok {
			superseded = append(superseded, ref)
		}
	}

	h := r.instances.Insert(&entry{instance: inst, roomID: session.RoomID, channel: channel, session: session.Handle})
	r.publishStreams[streamID] = h
	r.publishChans[channel] = h
	return h, superseded
}

// AttachPlayer registers inst as the player of streamID, scoped to session.
// A player already registered for the stream is detached and returned.
func (r *Registry) AttachPlayer(session InstanceRef, streamID string, inst Instance) (arena.Handle, []InstanceRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded []InstanceRef
	if h, ok := r.playStreams[streamID]; ok {
		if ref, ok := r.detachLocked(h); ok {
			superseded = append(superseded, ref)
		}
	}

	h := r.instances.Insert(&entry{instance: inst, roomID: session.RoomID, session: session.Handle})
	r.playStreams[streamID] = h
	return h, superseded
}

// AttachMediaPlayer registers a media player instance, which has no external key.
func (r *Registry) AttachMediaPlayer(inst Instance) arena.Handle {
	return r.instances.Insert(&entry{instance: inst})
}

// Detach removes the instance addressed by h. It reports false for stale handles.
func (r *Registry) Detach(h arena.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.detachLocked(h)
	return ok
}

func (r *Registry) detachLocked(h arena.Handle) (InstanceRef, bool) {
	e, ok := r.instances.Remove(h)
	if !ok {
		return InstanceRef{}, false
	}

	key := e.instance.Key()
	switch e.instance.Kind() {
	case KindSession:
		if r.sessions[key] == h {
			delete(r.sessions, key)
			delete(r.rooms, key)
		}
	case KindPublisher:
		if r.publishStreams[key] == h {
			delete(r.publishStreams, key)
		}
		if r.publishChans[e.channel] == h {
			delete(r.publishChans, e.channel)
		}
	case KindPlayer:
		if r.playStreams[key] == h {
			delete(r.playStreams, key)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Registry.Detach",
		"kind":     e.instance.Kind().String(),
		"key":      key,
		"handle":   h.String(),
	}).Debug("Instance detached")

	return e.ref(h), true
}

// Instance resolves h.
func (r *Registry) Instance(h arena.Handle) (Instance, bool) {
	e, ok := r.instances.Get(h)
	if !ok {
		return nil, false
	}
	return e.instance, true
}

// Session returns the live session of roomID.
func (r *Registry) Session(roomID string) (InstanceRef, bool) {
	return r.lookupIndex(func() (arena.Handle, bool) {
		h, ok := r.sessions[roomID]
		return h, ok
	})
}

// Publisher returns the live publisher of streamID.
func (r *Registry) Publisher(streamID string) (InstanceRef, bool) {
	return r.lookupIndex(func() (arena.Handle, bool) {
		h, ok := r.publishStreams[streamID]
		return h, ok
	})
}

// PublisherOnChannel returns the live publisher on channel.
func (r *Registry) PublisherOnChannel(channel event.PublishChannel) (InstanceRef, bool) {
	return r.lookupIndex(func() (arena.Handle, bool) {
		h, ok := r.publishChans[channel]
		return h, ok
	})
}

// Player returns the live player of streamID.
func (r *Registry) Player(streamID string) (InstanceRef, bool) {
	return r.lookupIndex(func() (arena.Handle, bool) {
		h, ok := r.playStreams[streamID]
		return h, ok
	})
}

func (r *Registry) lookupIndex(find func() (arena.Handle, bool)) (InstanceRef, bool) {
	r.mu.RLock()
	h, ok := find()
	r.mu.RUnlock()
	if !ok {
		return InstanceRef{}, false
	}
	e, ok := r.instances.Get(h)
	if !ok {
		return InstanceRef{}, false
	}
	return e.ref(h), true
}

// InstancesOfSession returns every live publisher and player started under
// the session addressed by session. Instances of a later session of the same
// room are not included.
func (r *Registry) InstancesOfSession(session arena.Handle) []InstanceRef {
	var out []InstanceRef
	if session.IsZero() {
		return out
	}
	r.instances.Each(func(h arena.Handle, e *entry) {
		if e.session == session {
			out = append(out, e.ref(h))
		}
	})
	return out
}

// ActiveInstances returns every live instance of kind that reports Active.
func (r *Registry) ActiveInstances(kind Kind) []InstanceRef {
	var out []InstanceRef
	r.instances.Each(func(h arena.Handle, e *entry) {
		if e.instance.Kind() == kind && e.instance.Active() {
			out = append(out, e.ref(h))
		}
	})
	return out
}

// Count returns the number of live instances of kind.
func (r *Registry) Count(kind Kind) int {
	n := 0
	r.instances.Each(func(_ arena.Handle, e *entry) {
		if e.instance.Kind() == kind {
			n++
		}
	})
	return n
}

// Rooms returns the IDs of every room with a live session.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

func (r *Registry) room(roomID string) (*roomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rec, nil
}
