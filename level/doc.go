// Package level measures sound levels and audio spectra from relayed PCM.
//
// A Meter subscribes to the media frame relay as an AudioDataHandler and
// keeps the latest captured and per-stream remote measurements. The
// periodic sampler reads those measurements on its own ticks, so the media
// thread never waits on the control domain and no event is produced from
// the media thread.
//
// OpusMeter feeds the same Meter from encoded Opus payloads, for remote
// streams whose audio reaches the core before it is decoded.
package level
