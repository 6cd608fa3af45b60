package rtcevent

import (
	"github.com/opd-ai/rtcevent/clock"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/sampler"
)

// Options contains the configuration of an Engine.
type Options struct {
	// VerboseDiagnostics enables debug-error events for malformed API calls.
	VerboseDiagnostics bool

	// QueueWarnDepth is the delivery backlog above which a warning is logged.
	QueueWarnDepth int

	// Intervals are the periods of the sampler's producers.
	Intervals sampler.Intervals

	// ArmQuality arms the publish and play quality producers on Start.
	ArmQuality bool

	// ArmOnlineCount arms the online-count producer on Start.
	ArmOnlineCount bool

	// TimeProvider drives the sampler's tickers. Nil means the wall clock.
	TimeProvider clock.TimeProvider
}

// NewOptions returns the default engine configuration.
func NewOptions() *Options {
	return &Options{
		VerboseDiagnostics: false,
		QueueWarnDepth:     dispatch.DefaultQueueWarnDepth,
		Intervals:          sampler.DefaultIntervals(),
		ArmQuality:         true,
		ArmOnlineCount:     true,
	}
}
