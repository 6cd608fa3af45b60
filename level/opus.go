package level

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// opusFrameBytes holds one decoded frame: 1920 samples (40 ms at 48 kHz)
// of 16-bit PCM.
const opusFrameBytes = 1920 * 2

type opusStream struct {
	mu      sync.Mutex
	decoder opus.Decoder
	out     []byte
}

// OpusMeter decodes Opus payloads of remote streams and feeds the decoded
// PCM to a Meter.
type OpusMeter struct {
	meter   *Meter
	streams sync.Map // stream ID -> *opusStream
}

// NewOpusMeter creates an Opus meter feeding meter.
func NewOpusMeter(meter *Meter) *OpusMeter {
	logrus.WithFields(logrus.Fields{
		"function": "NewOpusMeter",
	}).Debug("Creating Opus level meter")

	return &OpusMeter{meter: meter}
}

// Observe decodes one Opus payload of streamID and measures it.
//
// Parameters:
//   - streamID: The remote stream the payload belongs to
//   - payload: One Opus packet, as carried in an RTP payload
//
// Returns:
//   - error: Decoding failure; the stream's decoder is kept
func (o *OpusMeter) Observe(streamID string, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty opus payload")
	}

	v, ok := o.streams.Load(streamID)
	if !ok {
		v, _ = o.streams.LoadOrStore(streamID, &opusStream{
			decoder: opus.NewDecoder(),
			out:     make([]byte, opusFrameBytes),
		})
	}
	s := v.(*opusStream)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, isStereo, err := s.decoder.Decode(payload, s.out)
	if err != nil {
		return fmt.Errorf("opus decode failed: %w", err)
	}

	samples := pcm16(s.out)
	if isStereo {
		samples = downmix(samples)
	}
	o.meter.ObserveRemote(streamID, samples)
	return nil
}

// Forget releases the decoder of streamID and its measurements.
func (o *OpusMeter) Forget(streamID string) {
	o.streams.Delete(streamID)
	o.meter.Forget(streamID)
}

func downmix(interleaved []int16) []int16 {
	out := make([]int16, len(interleaved)/2)
	for i := range out {
		out[i] = int16((int32(interleaved[2*i]) + int32(interleaved[2*i+1])) / 2)
	}
	return out
}
