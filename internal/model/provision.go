package model

// ProvisionSignalName is the signal name used by the per-instance
// provisioning orchestrator workflow.
const ProvisionSignalName = "provision"

// Request kinds handled by the orchestrator.
const (
	RequestAction   = "action"
	RequestEvaluate = "evaluate"
)

// ProvisionRequest is a unit of work processed sequentially by the
// per-instance orchestrator workflow.
type ProvisionRequest struct {
	RequestID  string `json:"request_id"`
	Kind       string `json:"kind"`
	InstanceID string `json:"instance_id"`
	Action     Action `json:"action,omitempty"`

	// Status is the provision's status once the request was accepted. A
	// request whose provision has left that status and settled by the time
	// it is processed is stale.
	Status Status `json:"status,omitempty"`

	// CallbackURL, when set, receives a CallbackPayload once the request
	// has been processed.
	CallbackURL string `json:"callback_url,omitempty"`
}

// CallbackPayload is the JSON body POSTed to a request's callback URL.
type CallbackPayload struct {
	RequestID     string `json:"request_id"`
	InstanceID    string `json:"instance_id"`
	Kind          string `json:"kind"`
	Status        Status `json:"status"`
	Outcome       string `json:"outcome"`
	StatusMessage string `json:"status_message,omitempty"`
}

// StartProcessRequest describes the entry point that moves a provision out of
// draft and pushes its process token.
type StartProcessRequest struct {
	InstanceID string `json:"instance_id"`
	Process    string `json:"process"`
	Transition string `json:"transition"`
	KeyField   string `json:"key_field"`
}

// Process and key defaults used when starting a provision.
const (
	DefaultProcessName = "Peacock Provision"
	DefaultKeyField    = "Event ID"
)

// Workflow names registered on the worker. Workflows are started and
// signalled by name so callers do not import the workflow package.
const (
	OrchestratorWorkflowName = "ProvisionOrchestratorWorkflow"
	RebuildWorkflowName      = "RebuildProvisionWorkflow"
)

// OrchestratorWorkflowID is the id of the per-instance orchestrator workflow.
func OrchestratorWorkflowID(instanceID string) string {
	return "provision-" + instanceID
}

// RebuildWorkflowID is the id of the rebuild workflow for a provision.
func RebuildWorkflowID(instanceID string) string {
	return "rebuild-" + instanceID
}
