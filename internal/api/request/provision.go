package request

import "github.com/edvin/peacock/internal/model"

type CreateProvision struct {
	ProvisionName string `json:"provision_name" validate:"omitempty,max=255"`
	EventID       string `json:"event_id" validate:"omitempty,max=255"`
	SourceElement string `json:"source_element" validate:"omitempty,element_address"`
	Conviva       string `json:"conviva" validate:"omitempty,max=64"`
	TAG           string `json:"tag" validate:"omitempty,max=64"`
	Touchstream   string `json:"touchstream" validate:"omitempty,max=64"`
}

// Fields converts the request into provision fields.
func (c CreateProvision) Fields() model.ProvisionFields {
	return model.ProvisionFields{
		ProvisionName: c.ProvisionName,
		EventID:       c.EventID,
		SourceElement: c.SourceElement,
		Conviva:       c.Conviva,
		TAG:           c.TAG,
		Touchstream:   c.Touchstream,
	}
}

type StartProvision struct {
	Process    string `json:"process" validate:"omitempty,max=255"`
	KeyField   string `json:"key_field" validate:"omitempty,max=64"`
	Transition string `json:"transition" validate:"omitempty,transition_name"`
}

type ProvisionAction struct {
	Action string `json:"action" validate:"required,oneof=provision deactivate reprovision complete-provision"`
}

type CreateInstance struct {
	Definition string         `json:"definition" validate:"required,oneof=conviva tag touchstream tag_scan tag_channel mediatailor"`
	Status     string         `json:"status" validate:"omitempty"`
	Fields     map[string]any `json:"fields"`
}

type InstanceTransition struct {
	Transition string `json:"transition" validate:"required,transition_name"`
}
