package notify

import "errors"

var (
	errNoMailer      = errors.New("email channel not configured")
	errNoRecipient   = errors.New("email event without recipient")
	errNoBroadcaster = errors.New("broadcast channel not configured")
)
