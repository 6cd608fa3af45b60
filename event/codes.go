package event

// Error codes are owned by an external versioned catalog and are passed
// through unchanged. Zero always means success. The core itself only
// originates the codes below, taken from a range the catalog reserves for
// locally generated notifications.
const (
	// CodeOK means success / no error
	CodeOK = 0

	// CodeCanceled marks an instance force-stopped because its session logged out
	CodeCanceled = 1000001

	// CodeSuperseded marks an instance force-stopped by a new start on the
	// same stream or channel
	CodeSuperseded = 1000002

	// CodeInvalidCall is reported through debug-error for malformed API usage
	CodeInvalidCall = 1000003
)
