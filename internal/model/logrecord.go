package model

import "time"

// Log severities.
const (
	SeverityMajor   = "major"
	SeverityMinor   = "minor"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// ConfigTypeAutomation is the configuration type of all handler log records.
const ConfigTypeAutomation = "automation"

// Log codes emitted by the orchestrator.
const (
	CodeRetryTimeout            = "RetryTimeout"
	CodeExceptionCheckingStatus = "ExceptionCheckingStatus"
	CodeAllChildrenFailed       = "AllChildrenFailed"
	CodeChildrenFailed          = "ChildrenFailed"
	CodeChildrenNotSettled      = "ChildrenNotSettled"
	CodeChildrenDegraded        = "ChildrenDegraded"
	CodeStaleRequest            = "StaleRequest"
	CodeUnknownStatus           = "UnknownStatus"
	CodeCallbackFailed          = "CallbackFailed"
	CodeException               = "Exception"
)

// LogRecord is a structured log entry sent to the error/log sink.
type LogRecord struct {
	ID              string    `json:"id" db:"id"`
	AffectedItem    string    `json:"affectedItem" db:"affected_item"`
	AffectedService string    `json:"affectedService" db:"affected_service"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	LogNotes        string    `json:"logNotes,omitempty" db:"log_notes"`
	ErrorCode       ErrorCode `json:"errorCode" db:"-"`
	SummaryFlag     bool      `json:"summaryFlag" db:"summary_flag"`
}

// ErrorCode classifies a log record.
type ErrorCode struct {
	ConfigurationItem string `json:"configurationItem" db:"configuration_item"`
	ConfigurationType string `json:"configurationType" db:"configuration_type"`
	Severity          string `json:"severity" db:"severity"`
	Source            string `json:"source" db:"source"`
	Code              string `json:"code,omitempty" db:"code"`
	Description       string `json:"description,omitempty" db:"description"`
}
