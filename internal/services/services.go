package services

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/notify"
)

// Record store collections.
const (
	AccountsCollection       = "accounts"
	JobsCollection           = "jobs"
	ApplicationsCollection   = "applications"
	ProfilesCollection       = "profiles"
	PasswordResetsCollection = "password_resets"
	EventsCollection         = "events"
)

// Dispatcher delivers notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(n notify.Notification)
}

// discardDispatcher stands in when a service is built without a notifier.
type discardDispatcher struct{}

func (discardDispatcher) Dispatch(notify.Notification) {}

// normalizeEmail lowercases and trims an address so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.New(apperr.CodeInvalidArgument, "invalid email address")
	}
	return nil
}

// storeError converts a record store failure into an internal application error.
func storeError(op string, err error) error {
	return apperr.Wrap(apperr.CodeInternal, op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNoDocuments)
}
