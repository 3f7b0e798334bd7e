package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle status shared by provision instances and their
// child instances.
type Status string

// Status constants.
const (
	StatusDraft            Status = "draft"
	StatusReady            Status = "ready"
	StatusInProgress       Status = "in_progress"
	StatusActive           Status = "active"
	StatusActiveWithErrors Status = "active_with_errors"
	StatusDeactivate       Status = "deactivate"
	StatusDeactivating     Status = "deactivating"
	StatusReprovision      Status = "reprovision"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
)

// AllStatuses lists every declared status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusReady,
	StatusInProgress,
	StatusActive,
	StatusActiveWithErrors,
	StatusDeactivate,
	StatusDeactivating,
	StatusReprovision,
	StatusComplete,
	StatusError,
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a child subprocess in status s has settled and
// no longer needs to be waited on.
func (s Status) IsTerminal() bool {
	return s == StatusActive || s == StatusComplete ||
		s == StatusActiveWithErrors || s == StatusError
}

// Evaluable reports whether a provision in s is mid-round, so that Evaluate
// Event can move it forward.
func (s Status) Evaluable() bool {
	switch s {
	case StatusReady, StatusInProgress, StatusDeactivate, StatusDeactivating, StatusReprovision:
		return true
	}
	return false
}

// IsError reports whether s is an error-prefixed status.
func (s Status) IsError() bool {
	return strings.HasPrefix(string(s), string(StatusError))
}

// ParseStatus converts a raw status string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}
