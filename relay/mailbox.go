package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/event"
)

// Mailbox is a bounded queue that drops its oldest item when full. It lets
// a handler hand copied frames to another goroutine without ever blocking
// the media thread.
type Mailbox[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewMailbox creates a mailbox holding at most capacity items.
func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// Put enqueues v, evicting the oldest item if the mailbox is full. It
// reports false if the mailbox is closed.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	for {
		select {
		case m.ch <- v:
			m.sent.Add(1)
			return true
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

// Recv blocks until an item is available, the mailbox is closed and
// drained, or ctx is done.
func (m *Mailbox[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-m.ch:
		if !ok {
			return zero, ErrMailboxClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// C exposes the receive side for use in select statements.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

// Dropped returns the number of items evicted to make room.
func (m *Mailbox[T]) Dropped() uint64 {
	return m.dropped.Load()
}

// Sent returns the number of items enqueued.
func (m *Mailbox[T]) Sent() uint64 {
	return m.sent.Load()
}

// Close stops accepting items. Queued items can still be received.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// FrameSource tells where a copied frame came from.
type FrameSource int

const (
	SourceCaptured FrameSource = iota
	SourceRemote
	SourceRemoteEncoded
	SourcePlayback
	SourceMixed
	SourcePlayer
)

// VideoFrame is an owned copy of a relayed video frame.
type VideoFrame struct {
	Source              FrameSource
	StreamID            string
	Channel             event.PublishChannel
	Planes              [][]byte
	Param               VideoFrameParam
	Encoded             EncodedFrameParam
	Flip                FlipMode
	ReferenceTimeMillis uint64
}

// AudioFrame is an owned copy of relayed PCM.
type AudioFrame struct {
	Source   FrameSource
	StreamID string
	Data     []byte
	Param    AudioFrameParam
}

// VideoMailbox is a CustomVideoRenderHandler that copies every frame into
// a Mailbox.
type VideoMailbox struct {
	*Mailbox[VideoFrame]
}

// NewVideoMailbox creates a video mailbox holding at most capacity frames.
func NewVideoMailbox(capacity int) *VideoMailbox {
	return &VideoMailbox{Mailbox: NewMailbox[VideoFrame](capacity)}
}

func (v *VideoMailbox) OnCapturedVideoFrameRawData(data [][]byte, param VideoFrameParam, flip FlipMode, channel event.PublishChannel) {
	v.Put(VideoFrame{Source: SourceCaptured, Channel: channel, Planes: copyPlanes(data), Param: param, Flip: flip})
}

func (v *VideoMailbox) OnRemoteVideoFrameRawData(data [][]byte, param VideoFrameParam, streamID string) {
	v.Put(VideoFrame{Source: SourceRemote, StreamID: streamID, Planes: copyPlanes(data), Param: param})
}

func (v *VideoMailbox) OnRemoteVideoFrameEncodedData(data []byte, param EncodedFrameParam, referenceTimeMillis uint64, streamID string) {
	v.Put(VideoFrame{
		Source:              SourceRemoteEncoded,
		StreamID:            streamID,
		Planes:              [][]byte{copyBytes(data)},
		Encoded:             param,
		ReferenceTimeMillis: referenceTimeMillis,
	})
}

// AudioMailbox is an AudioDataHandler that copies every frame into a Mailbox.
type AudioMailbox struct {
	*Mailbox[AudioFrame]
}

// NewAudioMailbox creates an audio mailbox holding at most capacity frames.
func NewAudioMailbox(capacity int) *AudioMailbox {
	return &AudioMailbox{Mailbox: NewMailbox[AudioFrame](capacity)}
}

func (a *AudioMailbox) OnCapturedAudioData(data []byte, param AudioFrameParam) {
	a.Put(AudioFrame{Source: SourceCaptured, Data: copyBytes(data), Param: param})
}

func (a *AudioMailbox) OnPlaybackAudioData(data []byte, param AudioFrameParam) {
	a.Put(AudioFrame{Source: SourcePlayback, Data: copyBytes(data), Param: param})
}

func (a *AudioMailbox) OnMixedAudioData(data []byte, param AudioFrameParam) {
	a.Put(AudioFrame{Source: SourceMixed, Data: copyBytes(data), Param: param})
}

func (a *AudioMailbox) OnPlayerAudioData(data []byte, param AudioFrameParam, streamID string) {
	a.Put(AudioFrame{Source: SourcePlayer, StreamID: streamID, Data: copyBytes(data), Param: param})
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func copyPlanes(planes [][]byte) [][]byte {
	out := make([][]byte, len(planes))
	for i, p := range planes {
		out[i] = copyBytes(p)
	}
	return out
}
