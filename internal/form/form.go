// Package form implements the order and item form controllers. A form is
// an explicit view-model; Plan and Apply are pure functions mapping a user
// action on that model to one API request and the response back onto the
// model. Controller glues them to a transport.
package form

import (
	"errors"
	"fmt"
	"strings"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionRetrieve Action = "retrieve"
	ActionDelete   Action = "delete"
	ActionCancel   Action = "cancel"
	ActionClear    Action = "clear"
)

var ErrUnsupportedAction = errors.New("action not supported by form")

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionCreate, ActionUpdate, ActionRetrieve, ActionDelete, ActionCancel, ActionClear:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
	}
}

// Flash messages shown by the controllers.
const (
	MessageSuccess     = "Success"
	MessageServerError = "Server error!"
)

// Model is the state of one form: field values keyed by field name plus
// the flash message.
type Model struct {
	Values map[string]string `json:"values"`
	Flash  string            `json:"flash"`
}

func (m Model) Get(field string) string {
	return m.Values[field]
}

func (m Model) clone() Model {
	values := make(map[string]string, len(m.Values))
	for k, v := range m.Values {
		values[k] = v
	}
	return Model{Values: values, Flash: m.Flash}
}

type Field struct {
	Name    string
	Default string
}

// BodyField copies form field Field into the request body under Key.
type BodyField struct {
	Key   string
	Field string
}

// SuccessPolicy says what a 2xx response does to the form. Repaint copies
// response fields in; ClearFields resets the editable fields.
type SuccessPolicy struct {
	Repaint     bool
	ClearFields bool
	Message     string
}

// FailurePolicy says what a failed request does to the form. An empty
// Message shows the server's "message" field.
type FailurePolicy struct {
	ClearFields bool
	Message     string
}

type Endpoint struct {
	Method    string
	Path      func(m Model) string
	Body      []BodyField
	OnSuccess SuccessPolicy
	OnFailure FailurePolicy
}

// Resource describes one form and the REST resource behind it.
type Resource struct {
	Name     string
	KeyField string
	// Fields are the editable fields, reset to their defaults by clear.
	Fields     []Field
	FlashField string
	// ResponseFields maps response JSON keys to form fields.
	ResponseFields []BodyField
	Endpoints      map[Action]Endpoint
}

// NewModel returns the form in its cleared state.
func (r *Resource) NewModel() Model {
	m := Model{Values: make(map[string]string, len(r.Fields)+1)}
	m.Values[r.KeyField] = ""
	resetFields(r, &m)
	return m
}

// Supports reports whether the form offers action.
func (r *Resource) Supports(action Action) bool {
	if action == ActionClear {
		return true
	}
	_, ok := r.Endpoints[action]
	return ok
}

func (r *Resource) hasField(name string) bool {
	if name == r.KeyField {
		return true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func resetFields(r *Resource, m *Model) {
	for _, f := range r.Fields {
		m.Values[f.Name] = f.Default
	}
}
