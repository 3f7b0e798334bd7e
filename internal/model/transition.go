package model

// Transition is a named, directed edge between two statuses.
type Transition struct {
	Name string `json:"name"`
	From Status `json:"from"`
	To   Status `json:"to"`
}

// Transition names as registered on the provision behavior definition.
const (
	TransitionDraftToReady                   = "draft_to_ready"
	TransitionReadyToInProgress              = "ready_to_inprogress"
	TransitionInProgressToActive             = "inprogress_to_active"
	TransitionInProgressToActiveWithErrors   = "inprogress_to_activewitherrors"
	TransitionInProgressToError              = "inprogress_to_error"
	TransitionActiveToDeactivate             = "active_to_deactivate"
	TransitionActiveToReprovision            = "active_to_reprovision"
	TransitionActiveWithErrorsToDeactivate   = "activewitherrors_to_deactivate"
	TransitionReprovisionToInProgress        = "reprovision_to_inprogress"
	TransitionDeactivateToDeactivating       = "deactivate_to_deactivating"
	TransitionDeactivatingToComplete         = "deactivating_to_complete"
	TransitionDeactivatingToActiveWithErrors = "deactivating_to_activewitherrors"
	TransitionDeactivatingToError            = "deactivating_to_error"
	TransitionCompleteToReady                = "complete_to_ready"
)

// Transitions is the complete set of legal status edges. Any edge not listed
// here is rejected by the instance store.
var Transitions = []Transition{
	{TransitionDraftToReady, StatusDraft, StatusReady},
	{TransitionReadyToInProgress, StatusReady, StatusInProgress},
	{TransitionInProgressToActive, StatusInProgress, StatusActive},
	{TransitionInProgressToActiveWithErrors, StatusInProgress, StatusActiveWithErrors},
	{TransitionInProgressToError, StatusInProgress, StatusError},
	{TransitionActiveToDeactivate, StatusActive, StatusDeactivate},
	{TransitionActiveToReprovision, StatusActive, StatusReprovision},
	{TransitionActiveWithErrorsToDeactivate, StatusActiveWithErrors, StatusDeactivate},
	{TransitionReprovisionToInProgress, StatusReprovision, StatusInProgress},
	{TransitionDeactivateToDeactivating, StatusDeactivate, StatusDeactivating},
	{TransitionDeactivatingToComplete, StatusDeactivating, StatusComplete},
	{TransitionDeactivatingToActiveWithErrors, StatusDeactivating, StatusActiveWithErrors},
	{TransitionDeactivatingToError, StatusDeactivating, StatusError},
	{TransitionCompleteToReady, StatusComplete, StatusReady},
}

// TransitionByName looks up a declared transition by its name.
func TransitionByName(name string) (Transition, bool) {
	for _, t := range Transitions {
		if t.Name == name {
			return t, true
		}
	}
	return Transition{}, false
}

// FindTransition returns the declared edge from -> to, if any.
func FindTransition(from, to Status) (Transition, bool) {
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// MustTransition returns the declared transition with the given name and
// panics if it does not exist. Only use with the constants above.
func MustTransition(name string) Transition {
	t, ok := TransitionByName(name)
	if !ok {
		panic("model: undeclared transition " + name)
	}
	return t
}
