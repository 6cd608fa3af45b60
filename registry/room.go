package registry

import (
	"sort"
	"sync"

	"github.com/opd-ai/rtcevent/event"
)

// Participant is a remote user present in a room. RoomID is a weak
// reference: the participant never keeps its room alive.
type Participant struct {
	User   event.User
	RoomID string
}

// RoomSnapshot is a consistent copy of one room record.
type RoomSnapshot struct {
	RoomID       string
	State        event.RoomState
	LastError    int
	ExtendedData event.Document
	Participants []Participant
	Streams      []event.Stream
	ExtraInfo    []event.RoomExtraInfo
	OnlineCount  int
}

type roomRecord struct {
	mu           sync.RWMutex
	id           string
	state        event.RoomState
	lastError    int
	extendedData event.Document
	participants map[string]Participant
	streams      map[string]event.Stream
	extraInfo    map[string]event.RoomExtraInfo
	onlineCount  int
}

func newRoomRecord(id string) *roomRecord {
	return &roomRecord{
		id:           id,
		extendedData: event.EmptyDocument(),
		participants: make(map[string]Participant),
		streams:      make(map[string]event.Stream),
		extraInfo:    make(map[string]event.RoomExtraInfo),
	}
}

// SetRoomState records the latest session transition of roomID.
func (r *Registry) SetRoomState(roomID string, state event.RoomState, errorCode int, extendedData event.Document) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state = state
	rec.lastError = errorCode
	rec.extendedData = extendedData
	return nil
}

// ApplyUsers adds or removes participants of roomID.
func (r *Registry) ApplyUsers(roomID string, updateType event.UpdateType, users []event.User) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, u := range users {
		if updateType == event.UpdateTypeAdd {
			rec.participants[u.UserID] = Participant{User: u, RoomID: roomID}
		} else {
			delete(rec.participants, u.UserID)
		}
	}
	return nil
}

// ApplyStreams adds or removes remote streams announced in roomID.
func (r *Registry) ApplyStreams(roomID string, updateType event.UpdateType, streams []event.Stream) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, s := range streams {
		if updateType == event.UpdateTypeAdd {
			rec.streams[s.StreamID] = s
		} else {
			delete(rec.streams, s.StreamID)
		}
	}
	return nil
}

// UpdateStreamExtraInfo replaces the extra-info sidecar of known streams.
// Streams not announced in the room are recorded as they are.
func (r *Registry) UpdateStreamExtraInfo(roomID string, streams []event.Stream) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, s := range streams {
		cur, ok := rec.streams[s.StreamID]
		if !ok {
			cur = s
		}
		cur.ExtraInfo = s.ExtraInfo
		rec.streams[s.StreamID] = cur
	}
	return nil
}

// UpdateRoomExtraInfo stores room extra-info entries by key.
func (r *Registry) UpdateRoomExtraInfo(roomID string, infos []event.RoomExtraInfo) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, info := range infos {
		rec.extraInfo[info.Key] = info
	}
	return nil
}

// SetOnlineCount records the online participant count of roomID.
func (r *Registry) SetOnlineCount(roomID string, count int) error {
	rec, err := r.room(roomID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.onlineCount = count
	return nil
}

// OnlineCount returns the last recorded online count of roomID.
func (r *Registry) OnlineCount(roomID string) (int, error) {
	rec, err := r.room(roomID)
	if err != nil {
		return 0, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.onlineCount, nil
}

// Stream returns one announced stream of roomID.
func (r *Registry) Stream(roomID, streamID string) (event.Stream, bool) {
	rec, err := r.room(roomID)
	if err != nil {
		return event.Stream{}, false
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	s, ok := rec.streams[streamID]
	return s, ok
}

// Room returns a snapshot of roomID. Slices are sorted by identifier.
func (r *Registry) Room(roomID string) (RoomSnapshot, error) {
	rec, err := r.room(roomID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()

	snap := RoomSnapshot{
		RoomID:       rec.id,
		State:        rec.state,
		LastError:    rec.lastError,
		ExtendedData: rec.extendedData,
		Participants: make([]Participant, 0, len(rec.participants)),
		Streams:      make([]event.Stream, 0, len(rec.streams)),
		ExtraInfo:    make([]event.RoomExtraInfo, 0, len(rec.extraInfo)),
		OnlineCount:  rec.onlineCount,
	}
	for _, p := range rec.participants {
		snap.Participants = append(snap.Participants, p)
	}
	for _, s := range rec.streams {
		snap.Streams = append(snap.Streams, s)
	}
	for _, info := range rec.extraInfo {
		snap.ExtraInfo = append(snap.ExtraInfo, info)
	}
	sort.Slice(snap.Participants, func(i, j int) bool {
		return snap.Participants[i].User.UserID < snap.Participants[j].User.UserID
	})
	sort.Slice(snap.Streams, func(i, j int) bool { return snap.Streams[i].StreamID < snap.Streams[j].StreamID })
	sort.Slice(snap.ExtraInfo, func(i, j int) bool { return snap.ExtraInfo[i].Key < snap.ExtraInfo[j].Key })
	return snap, nil
}
