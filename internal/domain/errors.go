package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every error the services hand back for a rule violation
// wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
)

var classes = []error{ErrNotFound, ErrPermissionDenied, ErrConflict, ErrInvalidInput, ErrUnauthorized}

// Todos and sharing
var (
	ErrTodoNotFound         = fmt.Errorf("%w: todo not found", ErrNotFound)
	ErrTodoForbidden        = fmt.Errorf("%w: you do not have permission to modify this todo", ErrPermissionDenied)
	ErrTodoNotShareable     = fmt.Errorf("%w: todo not found or you do not have permission to share it", ErrNotFound)
	ErrRecipientNotFound    = fmt.Errorf("%w: user with this email does not exist", ErrInvalidInput)
	ErrSelfShare            = fmt.Errorf("%w: you cannot share a todo with yourself", ErrInvalidInput)
	ErrAlreadyShared        = fmt.Errorf("%w: this todo is already shared with this user", ErrConflict)
	ErrShareNotFound        = fmt.Errorf("%w: this todo is not shared with you", ErrNotFound)
	ErrShareAlreadyAccepted = fmt.Errorf("%w: this todo has already been accepted", ErrConflict)
	ErrInvalidPermission    = fmt.Errorf("%w: permission must be one of view, edit or owner", ErrInvalidInput)
)

// Users and auth
var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("%w: the email has already been taken", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("%w: token has been revoked", ErrUnauthorized)
)

var (
	ErrNotificationNotFound = fmt.Errorf("%w: notification not found", ErrNotFound)
	ErrBlogNotFound         = fmt.Errorf("%w: blog not found", ErrNotFound)
)

// Invalid wraps a validation message as an ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsRuleViolation reports whether err belongs to one of the error classes
// rather than to the infrastructure.
func IsRuleViolation(err error) bool {
	for _, class := range classes {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// Message strips the class prefix from a rule violation for display.
func Message(err error) string {
	msg := err.Error()
	for _, class := range classes {
		if errors.Is(err, class) {
			return strings.TrimPrefix(msg, class.Error()+": ")
		}
	}
	return msg
}
