package service

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("not allowed to act on this resource")
	ErrAlreadyDecided     = errors.New("session request already decided")
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrInvalidMeetingCode = errors.New("invalid meeting code")
	ErrSessionNotApproved = errors.New("session is not approved")
	ErrSessionEnded       = errors.New("session has ended")
	ErrCodeCollision      = errors.New("could not allocate a unique meeting code")
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrInvalidSpace       = errors.New("unknown chat space")
)
