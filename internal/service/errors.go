package service

import (
	"errors"

	"github.com/kiwari-pos/console/internal/backend"
)

// UserMessage turns err into text fit for the admin: the backend's own
// message when it sent one, the text of a session rule violation, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	for _, known := range []error{ErrNoActiveTable, ErrEmptyCart, ErrUnknownItem, ErrUnknownTable} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return fallback
}
