package response

import (
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// FromError converts any error into an envelope carrying its status and reason.
func FromError(err error) *Envelope {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternal
	}
	return WithMessage(appErr.Status, appErr.Message)
}
