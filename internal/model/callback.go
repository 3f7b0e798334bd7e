package model

// Event-manager process statuses reported for a provision.
const (
	ProcessStatusActive   = "Active"
	ProcessStatusComplete = "Complete"
)

// ExternalRequestType is the request type understood by the event manager.
const ExternalRequestType = "Process Automation"

// ExternalRequest is the JSON document written to the event manager when a
// provisioning round has been evaluated.
type ExternalRequest struct {
	Type            string           `json:"type"`
	ProcessResponse *ProcessResponse `json:"processResponse,omitempty"`
}

// ProcessResponse carries the per-subsystem status of a provision.
type ProcessResponse struct {
	Conviva   *SubsystemResponse `json:"conviva,omitempty"`
	Peacock   *SubsystemResponse `json:"peacock,omitempty"`
	EventName string             `json:"eventName"`
}

// SubsystemResponse is the status of a single subsystem.
type SubsystemResponse struct {
	Status string `json:"status"`
}

// NewPeacockResponse builds the event-manager update for a provision.
func NewPeacockResponse(eventName, status string) ExternalRequest {
	return ExternalRequest{
		Type: ExternalRequestType,
		ProcessResponse: &ProcessResponse{
			EventName: eventName,
			Peacock:   &SubsystemResponse{Status: status},
		},
	}
}

// NewConvivaResponse builds the event-manager update for a Conviva-only process.
func NewConvivaResponse(eventName, status string) ExternalRequest {
	return ExternalRequest{
		Type: ExternalRequestType,
		ProcessResponse: &ProcessResponse{
			EventName: eventName,
			Conviva:   &SubsystemResponse{Status: status},
		},
	}
}

// ProcessStatusFor maps a provision status to the status reported to the
// event manager.
func ProcessStatusFor(s Status) string {
	if s == StatusComplete {
		return ProcessStatusComplete
	}
	return ProcessStatusActive
}
