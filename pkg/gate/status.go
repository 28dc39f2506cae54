package gate

import (
	"errors"
	"fmt"

	"github.com/gate-remote/gate-go/pkg/command"
)

// Status errors.
var (
	ErrInvalidStatus = errors.New("invalid gate status")
	ErrStatusUnknown = errors.New("gate status unknown")
)

// Status is the gate position reported by the controller.
// The zero value means no status has been received.
type Status string

const (
	StatusOpen    Status = "Open"
	StatusOpening Status = "Opening"
	StatusClosed  Status = "Closed"
	StatusClosing Status = "Closing"
)

// OfflineText is shown instead of the status while the controller is offline.
const OfflineText = "Offline"

// ParseStatus validates a status string from the store.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusOpen, StatusOpening, StatusClosed, StatusClosing:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Known reports whether s is one of the four gate positions.
func (s Status) Known() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// ActionLabel is the label of the toggle button for status s. It derives
// from the raw status only, so it is the same online or offline. Unknown
// statuses have no label.
func ActionLabel(s Status) string {
	switch s {
	case StatusOpen, StatusOpening:
		return "CLOSE"
	case StatusClosed, StatusClosing:
		return "OPEN"
	default:
		return ""
	}
}

// StatusText is the status shown to the user.
func StatusText(online bool, s Status) string {
	if !online {
		return OfflineText
	}
	return string(s)
}

// CommandFor resolves the toggle action for status s.
func CommandFor(s Status) (command.Type, error) {
	switch s {
	case StatusOpen, StatusOpening:
		return command.TypeClose, nil
	case StatusClosed, StatusClosing:
		return command.TypeOpen, nil
	default:
		return "", ErrStatusUnknown
	}
}
