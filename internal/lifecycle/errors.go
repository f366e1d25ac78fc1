package lifecycle

import "errors"

var (
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAlreadyResolved      = errors.New("already_resolved")
	ErrAlreadySubmitted     = errors.New("already_submitted")
	ErrSubjectUnavailable   = errors.New("subject_unavailable")
	ErrUnknownRecipient     = errors.New("unknown_recipient")
	ErrStorageFailure       = errors.New("storage_failure")
	ErrNotificationDispatch = errors.New("notification_dispatch_failure")
	ErrNotFound             = errors.New("not_found")
	ErrInvalidInput         = errors.New("invalid_input")
)

// Code returns the wire code for one of the errors above, or "internal_error".
func Code(err error) string {
	for _, known := range []error{
		ErrInvalidTransition,
		ErrUnauthorized,
		ErrAlreadyResolved,
		ErrAlreadySubmitted,
		ErrSubjectUnavailable,
		ErrUnknownRecipient,
		ErrStorageFailure,
		ErrNotificationDispatch,
		ErrNotFound,
		ErrInvalidInput,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}
