package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Instance definitions hosted in the instance store.
const (
	DefinitionProvision   = "peacock_provision"
	DefinitionConviva     = "conviva"
	DefinitionTAG         = "tag"
	DefinitionTouchstream = "touchstream"
	DefinitionTAGScan     = "tag_scan"
	DefinitionTAGChannel  = "tag_channel"
	DefinitionMediaTailor = "mediatailor"
)

// Instance is a DOM instance as stored by the instance store. Fields holds
// the named field values in serialized form; use Decode to obtain a typed
// view.
type Instance struct {
	ID         string          `json:"id" db:"id"`
	Definition string          `json:"definition" db:"definition"`
	Status     Status          `json:"status" db:"status"`
	Version    int64           `json:"version" db:"version"`
	Fields     json.RawMessage `json:"fields" db:"fields"`
	LastAction string          `json:"last_action,omitempty" db:"last_action"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Decode unmarshals the instance fields into v.
func (i *Instance) Decode(v any) error {
	if len(i.Fields) == 0 {
		return nil
	}
	if err := json.Unmarshal(i.Fields, v); err != nil {
		return fmt.Errorf("decode fields of instance %s: %w", i.ID, err)
	}
	return nil
}

// Encode replaces the instance fields with the serialized form of v.
func (i *Instance) Encode(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode fields of instance %s: %w", i.ID, err)
	}
	i.Fields = raw
	return nil
}

// Action is a requested provisioning action on a provision instance.
type Action string

// Actions understood by the subprocess drivers.
const (
	ActionProvision         Action = "provision"
	ActionDeactivate        Action = "deactivate"
	ActionReprovision       Action = "reprovision"
	ActionCompleteProvision Action = "complete-provision"
)

// Known reports whether a is one of the declared actions.
func (a Action) Known() bool {
	switch a {
	case ActionProvision, ActionDeactivate, ActionReprovision, ActionCompleteProvision:
		return true
	}
	return false
}

// ChildKind identifies one of the three supervised child subprocesses.
type ChildKind string

const (
	ChildConviva     ChildKind = "conviva"
	ChildTAG         ChildKind = "tag"
	ChildTouchstream ChildKind = "touchstream"
)

// AllChildKinds lists the child kinds in the order they are reported.
var AllChildKinds = []ChildKind{ChildTAG, ChildConviva, ChildTouchstream}

// DisplayName returns the name used for the child in logs.
func (k ChildKind) DisplayName() string {
	switch k {
	case ChildConviva:
		return "Conviva"
	case ChildTAG:
		return "TAG"
	case ChildTouchstream:
		return "Touchstream"
	}
	return string(k)
}

// ProvisionFields is the typed field set of a provision instance.
type ProvisionFields struct {
	ProvisionName string `json:"Provision Name,omitempty" validate:"required"`
	EventID       string `json:"Event ID,omitempty" validate:"required"`
	SourceElement string `json:"Source Element,omitempty" validate:"omitempty,element_address"`
	Conviva       string `json:"Conviva,omitempty"`
	TAG           string `json:"TAG,omitempty"`
	Touchstream   string `json:"Touchstream,omitempty"`
	Action        Action `json:"Action,omitempty"`
	InstanceID    string `json:"InstanceId,omitempty"`
	BusinessKey   string `json:"BusinessKey,omitempty"`
}

var (
	fieldValidate = validator.New()

	elementAddressRegex = regexp.MustCompile(`^[0-9]+/[0-9]+$`)
)

func init() {
	fieldValidate.RegisterValidation("element_address", func(fl validator.FieldLevel) bool {
		return elementAddressRegex.MatchString(fl.Field().String())
	})
}

// Validate checks the fields required for the given status. Provision Name
// and Event ID are only optional while the instance is a draft.
func (f *ProvisionFields) Validate(status Status) error {
	if status == StatusDraft {
		if f.SourceElement != "" && !elementAddressRegex.MatchString(f.SourceElement) {
			return fmt.Errorf("validation error: source element %q is not <dmaId>/<elementId>", f.SourceElement)
		}
		return nil
	}
	if err := fieldValidate.Struct(f); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// ChildID returns the configured child instance id for kind.
func (f *ProvisionFields) ChildID(kind ChildKind) string {
	switch kind {
	case ChildConviva:
		return f.Conviva
	case ChildTAG:
		return f.TAG
	case ChildTouchstream:
		return f.Touchstream
	}
	return ""
}

// Field returns the value of a field by its DOM field name. Only used at the
// boundary where callers address fields by name.
func (f *ProvisionFields) Field(name string) (string, bool) {
	switch name {
	case "Provision Name":
		return f.ProvisionName, true
	case "Event ID":
		return f.EventID, true
	case "Source Element":
		return f.SourceElement, true
	case "Conviva":
		return f.Conviva, true
	case "TAG":
		return f.TAG, true
	case "Touchstream":
		return f.Touchstream, true
	case "Action":
		return string(f.Action), true
	case "InstanceId":
		return f.InstanceID, true
	case "BusinessKey":
		return f.BusinessKey, true
	}
	return "", false
}

// ChildFields is the typed field set of a child instance as far as the
// orchestrator is concerned.
type ChildFields struct {
	Action      string   `json:"Action,omitempty"`
	Scans       []string `json:"Scan,omitempty"`
	Channels    []string `json:"Channels,omitempty"`
	MediaTailor []string `json:"MediaTailor,omitempty"`
}

// ProvisionInstance is a provision instance with its decoded fields.
type ProvisionInstance struct {
	*Instance
	ProvisionFields
}

// NewProvisionInstance decodes inst into a ProvisionInstance.
func NewProvisionInstance(inst *Instance) (*ProvisionInstance, error) {
	if inst.Definition != DefinitionProvision {
		return nil, fmt.Errorf("instance %s is a %s, not a %s", inst.ID, inst.Definition, DefinitionProvision)
	}
	p := &ProvisionInstance{Instance: inst}
	if err := inst.Decode(&p.ProvisionFields); err != nil {
		return nil, err
	}
	return p, nil
}

// Sync writes the typed fields back into the underlying instance.
func (p *ProvisionInstance) Sync() error {
	return p.Instance.Encode(p.ProvisionFields)
}
