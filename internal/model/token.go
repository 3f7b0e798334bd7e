package model

import "time"

// Token events recorded in the process token ledger.
const (
	TokenPushed   = "pushed"
	TokenFinished = "finished"
)

// ProcessToken is an entry in the process token ledger. A token is pushed
// when a provision enters the process and finished once per handler step.
type ProcessToken struct {
	ID          string    `json:"id" db:"id"`
	Process     string    `json:"process" db:"process"`
	BusinessKey string    `json:"business_key" db:"business_key"`
	InstanceID  string    `json:"instance_id" db:"instance_id"`
	Step        string    `json:"step" db:"step"`
	Event       string    `json:"event" db:"event"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
