package relay

import "errors"

var (
	// ErrNilHandler indicates a nil handler was passed to a Subscribe call.
	ErrNilHandler = errors.New("nil handler")

	// ErrSubscriptionNotFound indicates an unknown or already cancelled subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrMailboxClosed indicates the mailbox was closed.
	ErrMailboxClosed = errors.New("mailbox is closed")
)
