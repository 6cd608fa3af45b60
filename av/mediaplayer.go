package av

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/sirupsen/logrus"
)

// MediaPlayer tracks one local media player. Unlike publishers and players
// it lives until destroyed and may cycle through its states any number of
// times.
type MediaPlayer struct {
	mu       sync.Mutex
	handle   arena.Handle
	state    event.MediaPlayerState
	lastCode int
	progress uint64
	active   atomic.Bool
}

// Kind implements registry.Instance.
func (p *MediaPlayer) Kind() registry.Kind { return registry.KindMediaPlayer }

// Key returns the handle in its string form.
func (p *MediaPlayer) Key() string { return p.handle.String() }

// Active reports whether the media player is Playing.
func (p *MediaPlayer) Active() bool { return p.active.Load() }

// State returns the current state and the code of the last transition.
func (p *MediaPlayer) State() (event.MediaPlayerState, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastCode
}

// Progress returns the last reported playback position in milliseconds.
func (p *MediaPlayer) Progress() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// CreateMediaPlayer allocates a media player in NoPlay and returns its handle.
func (m *Manager) CreateMediaPlayer() arena.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &MediaPlayer{state: event.MediaPlayerStateNoPlay}
	p.mu.Lock()
	p.handle = m.reg.AttachMediaPlayer(p)
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "CreateMediaPlayer",
		"handle":   p.handle.String(),
	}).Info("Media player created")
	return p.handle
}

// DestroyMediaPlayer releases a media player. The handle, and every copy of
// it, resolves to ErrMediaPlayerNotFound afterwards.
func (m *Manager) DestroyMediaPlayer(h arena.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.mediaPlayer(h); err != nil {
		return err
	}
	m.reg.Detach(h)

	logrus.WithFields(logrus.Fields{
		"function": "DestroyMediaPlayer",
		"handle":   h.String(),
	}).Info("Media player destroyed")
	return nil
}

// MediaPlayerStateChanged records a media player state report. It is
// emitted when the state changes or the report carries an error.
func (m *Manager) MediaPlayerStateChanged(h arena.Handle, state event.MediaPlayerState, errorCode int) error {
	p, err := m.mediaPlayer(h)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	emit := state != p.state || errorCode != event.CodeOK
	p.state = state
	p.lastCode = errorCode
	p.active.Store(state == event.MediaPlayerStatePlaying)
	if emit {
		m.sink.Publish(event.MediaPlayerStateUpdate{Player: h, State: state, ErrorCode: errorCode})
	}
	return nil
}

// MediaPlayerNetworkEvent reports a buffering event of a media player.
func (m *Manager) MediaPlayerNetworkEvent(h arena.Handle, networkEvent event.MediaPlayerNetworkEvent) error {
	p, err := m.mediaPlayer(h)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m.sink.Publish(event.MediaPlayerNetworkEventOccurred{Player: h, NetworkEvent: networkEvent})
	return nil
}

// MediaPlayerProgress reports the playback position of a Playing media player.
func (m *Manager) MediaPlayerProgress(h arena.Handle, millisecond uint64) error {
	p, err := m.mediaPlayer(h)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != event.MediaPlayerStatePlaying {
		return ErrInactive
	}
	p.progress = millisecond
	m.sink.Publish(event.MediaPlayerPlayingProgress{Player: h, Millisecond: millisecond})
	return nil
}

// MediaPlayer returns the live media player for h.
func (m *Manager) MediaPlayer(h arena.Handle) (*MediaPlayer, bool) {
	p, err := m.mediaPlayer(h)
	return p, err == nil
}

func (m *Manager) mediaPlayer(h arena.Handle) (*MediaPlayer, error) {
	inst, ok := m.reg.Instance(h)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMediaPlayerNotFound, h)
	}
	p, ok := inst.(*MediaPlayer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMediaPlayerNotFound, h)
	}
	return p, nil
}
