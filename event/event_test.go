package event

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomOnly struct {
	NopRoomHandler
	states []RoomState
}

func (r *roomOnly) OnRoomStateUpdate(_ string, state RoomState, _ int, _ Document) {
	r.states = append(r.states, state)
}

type playerOnly struct {
	NopPlayerHandler
	sei [][]byte
}

func (p *playerOnly) OnPlayerRecvSEI(_ string, data []byte) {
	p.sei = append(p.sei, data)
}

func TestDeliverSkipsUnimplementedGroups(t *testing.T) {
	room := &roomOnly{}

	RoomStateUpdate{RoomID: "r1", State: RoomStateConnected}.Deliver(room)
	PlayerRecvSEI{StreamID: "s1", Data: []byte{1}}.Deliver(room)
	PublisherCapturedAudioFirstFrame{StreamID: "s1"}.Deliver(room)

	assert.Equal(t, []RoomState{RoomStateConnected}, room.states)

	player := &playerOnly{}
	PlayerRecvSEI{StreamID: "s1", Data: []byte{1, 2}}.Deliver(player)
	RoomStateUpdate{RoomID: "r1"}.Deliver(player)
	require.Len(t, player.sei, 1)
	assert.Equal(t, []byte{1, 2}, player.sei[0])
}

func TestIsObserver(t *testing.T) {
	assert.True(t, IsObserver(&roomOnly{}))
	assert.True(t, IsObserver(NopObserver{}))
	assert.True(t, IsObserver(NopMediaPlayerHandler{}))
	assert.False(t, IsObserver(struct{}{}))
	assert.False(t, IsObserver(nil))
}

func TestEventKeys(t *testing.T) {
	h := arena.Handle{Index: 3, Generation: 2}
	tests := []struct {
		ev   Event
		want Key
	}{
		{RoomStateUpdate{RoomID: "r"}, Key{ScopeRoom, "r"}},
		{CustomCommandReceived{RoomID: "r"}, Key{ScopeRoom, "r"}},
		{PublisherCapturedAudioFirstFrame{StreamID: "s"}, Key{ScopePublisher, "s"}},
		{PlayerRecvSEI{StreamID: "s"}, Key{ScopePlayer, "s"}},
		{RemoteCameraStateUpdate{StreamID: "s"}, Key{ScopePlayer, "s"}},
		{AudioDeviceStateChanged{Info: DeviceInfo{DeviceID: "mic"}}, Key{ScopeDevice, "mic"}},
		{MediaPlayerPlayingProgress{Player: h}, Key{ScopeMediaPlayer, "3#2"}},
		{DebugError{}, Key{ScopeEngine, ""}},
	}
	for _, tt := range tests {
		t.Run(tt.ev.Kind(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Key())
		})
	}
}

func TestClampSoundLevel(t *testing.T) {
	assert.Equal(t, float32(0), ClampSoundLevel(-5))
	assert.Equal(t, float32(42.5), ClampSoundLevel(42.5))
	assert.Equal(t, MaxSoundLevel, ClampSoundLevel(250))
	assert.Equal(t, float32(0), ClampSoundLevel(float32(math.NaN())))
}

func TestClampSpectrumCopies(t *testing.T) {
	in := []float32{-1, 10, float32(math.Inf(1)), 2e9}
	out := ClampSpectrum(in)

	assert.Equal(t, AudioSpectrum{0, 10, MaxSpectrumValue, MaxSpectrumValue}, out)
	out[1] = 99
	assert.Equal(t, float32(10), in[1], "input must not be aliased")
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument(nil))
	assert.NoError(t, ValidateDocument(EmptyDocument()))
	assert.NoError(t, ValidateDocument(Document(`{"reason":"ok"}`)))
	assert.Error(t, ValidateDocument(Document(`[1,2]`)))
	assert.Error(t, ValidateDocument(Document(`not json`)))

	doc, err := NormalizeDocument(Document(`"str"`))
	assert.Error(t, err)
	assert.Equal(t, "{}", doc.String())
}

func TestDocumentMarshalsEmptyAsObject(t *testing.T) {
	raw, err := json.Marshal(RoomStateUpdate{RoomID: "r"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"extended_data":{}`)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Reconnecting", RoomStateReconnecting.String())
	assert.Equal(t, "Publishing", PublisherStatePublishing.String())
	assert.Equal(t, "Playing", PlayerStatePlaying.String())
	assert.Equal(t, "Unknown(9)", PlayerState(9).String())
	assert.Equal(t, "Mute", RemoteDeviceStateMute.String())
}
