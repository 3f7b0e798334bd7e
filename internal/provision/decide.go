package provision

import (
	"fmt"
	"strings"

	"github.com/edvin/peacock/internal/model"
)

// DeactivationFailurePolicy selects where a deactivation lands when some,
// but not all, children failed.
type DeactivationFailurePolicy string

const (
	DeactivationToActiveWithErrors DeactivationFailurePolicy = "active_with_errors"
	DeactivationToError            DeactivationFailurePolicy = "error"
)

// ParseDeactivationFailurePolicy validates a configured policy.
func ParseDeactivationFailurePolicy(raw string) (DeactivationFailurePolicy, error) {
	switch p := DeactivationFailurePolicy(raw); p {
	case DeactivationToActiveWithErrors, DeactivationToError:
		return p, nil
	case "":
		return DeactivationToActiveWithErrors, nil
	}
	return "", fmt.Errorf("unknown deactivation failure policy %q", raw)
}

// ChildStatuses holds the effective status of every child kind.
type ChildStatuses map[model.ChildKind]model.Status

// EffectiveStatuses fills in absent children for the main instance's phase:
// while provisioning an absent child was never requested and counts as
// active; while deactivating or reprovisioning there is nothing to tear
// down and it counts as complete.
func EffectiveStatuses(main model.Status, live map[model.ChildKind]model.Status) ChildStatuses {
	absent := model.StatusActive
	if main == model.StatusDeactivating || main == model.StatusReprovision {
		absent = model.StatusComplete
	}
	out := make(ChildStatuses, len(model.AllChildKinds))
	for _, kind := range model.AllChildKinds {
		if s, ok := live[kind]; ok {
			out[kind] = s
		} else {
			out[kind] = absent
		}
	}
	return out
}

// Decision is the aggregator's verdict for the main instance.
type Decision struct {
	// Target is the status the main instance should end in.
	Target model.Status
	// ForceError routes the main instance to error along the shortest path
	// instead of a single transition.
	ForceError bool
	// Code is the log code to report, empty for a clean outcome.
	Code string
	// Children are the children named in the log record.
	Children []model.ChildKind
}

// Describe renders the log description for the decision.
func (d Decision) Describe() string {
	names := make([]string, len(d.Children))
	for i, k := range d.Children {
		names[i] = k.DisplayName()
	}
	list := strings.Join(names, ", ")
	switch d.Code {
	case model.CodeAllChildrenFailed:
		return "All subprocesses failed: " + list + "."
	case model.CodeChildrenFailed:
		return "Subprocesses failed: " + list + "."
	case model.CodeChildrenNotSettled:
		return "Subprocesses did not settle: " + list + "."
	case model.CodeChildrenDegraded:
		return "Subprocesses finished with errors: " + list + "."
	case model.CodeUnknownStatus:
		return "Provision is in a status that cannot be evaluated."
	}
	return ""
}

// Decide computes the next status of a main instance in status main whose
// children have the given effective statuses. All children failing is
// checked before some failing, which is checked before all succeeding.
func Decide(main model.Status, children ChildStatuses, policy DeactivationFailurePolicy) Decision {
	var success func(model.Status) bool
	var done model.Status
	switch main {
	case model.StatusInProgress, model.StatusReprovision:
		success = func(s model.Status) bool { return s == model.StatusActive || s == model.StatusComplete }
		done = model.StatusActive
	case model.StatusDeactivating:
		success = func(s model.Status) bool { return s == model.StatusComplete }
		done = model.StatusComplete
	default:
		return Decision{Target: model.StatusError, ForceError: true, Code: model.CodeUnknownStatus}
	}

	var failed, degraded, unsettled []model.ChildKind
	for _, kind := range model.AllChildKinds {
		s := children[kind]
		switch {
		case s.IsError():
			failed = append(failed, kind)
		case s == model.StatusActiveWithErrors:
			degraded = append(degraded, kind)
		case !success(s):
			unsettled = append(unsettled, kind)
		}
	}

	switch {
	case len(failed) == len(model.AllChildKinds):
		return Decision{Target: model.StatusError, ForceError: true, Code: model.CodeAllChildrenFailed, Children: failed}
	case len(failed) > 0:
		if main == model.StatusDeactivating && policy == DeactivationToError {
			return Decision{Target: model.StatusError, ForceError: true, Code: model.CodeChildrenFailed, Children: failed}
		}
		return Decision{Target: model.StatusActiveWithErrors, Code: model.CodeChildrenFailed, Children: failed}
	case len(unsettled) > 0:
		return Decision{Target: model.StatusActiveWithErrors, Code: model.CodeChildrenNotSettled, Children: unsettled}
	case len(degraded) > 0:
		return Decision{Target: model.StatusActiveWithErrors, Code: model.CodeChildrenDegraded, Children: degraded}
	default:
		return Decision{Target: done}
	}
}
