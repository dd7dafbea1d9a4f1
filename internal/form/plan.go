package form

import (
	"fmt"

	"github.com/jogardn/order-console/internal/api"
)

// Outcome is what came back for a planned request. Response is nil when
// no HTTP response arrived.
type Outcome struct {
	Response *api.Response
	Err      error
}

func (o Outcome) Success() bool {
	return o.Err == nil && o.Response != nil && o.Response.Success()
}

// Plan returns the model to show while the action is in flight and the
// request to send. Clear has no request. The input model is not modified.
func Plan(r *Resource, action Action, m Model) (Model, *api.Request, error) {
	next := m.clone()

	if action == ActionClear {
		next.Values[r.KeyField] = ""
		next.Flash = ""
		resetFields(r, &next)
		return next, nil, nil
	}

	ep, ok := r.Endpoints[action]
	if !ok {
		return m, nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, action, r.Name)
	}

	next.Flash = ""
	req := &api.Request{
		Method: ep.Method,
		Path:   ep.Path(m),
	}
	if ep.Body != nil {
		req.Body = make(map[string]string, len(ep.Body))
		for _, bf := range ep.Body {
			req.Body[bf.Key] = m.Get(bf.Field)
		}
	}
	return next, req, nil
}

// Apply folds the outcome of action into m and returns the new model.
// The input model is not modified.
func Apply(r *Resource, action Action, m Model, outcome Outcome) Model {
	next := m.clone()

	ep, ok := r.Endpoints[action]
	if !ok {
		return next
	}

	if outcome.Success() {
		if !ep.OnSuccess.Repaint {
			applySuccess(r, ep.OnSuccess, &next)
			return next
		}
		// A 2xx body that is not a JSON object is treated as a failure.
		fields, err := outcome.Response.Fields()
		if err == nil {
			for _, rf := range r.ResponseFields {
				if v, present := fields[rf.Key]; present {
					next.Values[rf.Field] = v.String()
				}
			}
			applySuccess(r, ep.OnSuccess, &next)
			return next
		}
		outcome = Outcome{Err: err}
	}

	if ep.OnFailure.ClearFields {
		resetFields(r, &next)
	}
	next.Flash = failureMessage(ep.OnFailure, outcome)
	return next
}

func applySuccess(r *Resource, policy SuccessPolicy, m *Model) {
	if policy.ClearFields {
		resetFields(r, m)
	}
	m.Flash = policy.Message
}

func failureMessage(policy FailurePolicy, outcome Outcome) string {
	if policy.Message != "" {
		return policy.Message
	}
	if outcome.Response != nil {
		if msg := outcome.Response.Message(); msg != "" {
			return msg
		}
	}
	return MessageServerError
}
