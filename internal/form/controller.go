package form

import (
	"context"
	"sync"
	"time"

	"github.com/jogardn/order-console/internal/api"
	"github.com/jogardn/order-console/internal/events"
	"github.com/sirupsen/logrus"
)

type Transport interface {
	Do(ctx context.Context, req api.Request) (*api.Response, error)
}

type ActionPublisher interface {
	PublishFormAction(event events.FormActionEvent) error
}

// Controller owns one form model. Calls may overlap; they complete in any
// order and the last completion wins.
type Controller struct {
	resource  *Resource
	transport Transport
	publisher ActionPublisher
	sessionID string
	logger    *logrus.Logger

	mu       sync.Mutex
	model    Model
	onChange func(Model)
}

func NewController(resource *Resource, transport Transport, logger *logrus.Logger) *Controller {
	return &Controller{
		resource:  resource,
		transport: transport,
		logger:    logger,
		model:     resource.NewModel(),
	}
}

func (c *Controller) SetPublisher(publisher ActionPublisher) {
	c.publisher = publisher
}

func (c *Controller) SetSessionID(id string) {
	c.sessionID = id
}

// OnChange registers fn to receive a copy of the model after every
// change. fn runs with the controller lock held, so calls arrive in the
// order the model changed; it must not block or call back into c.
func (c *Controller) OnChange(fn func(Model)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) Resource() *Resource {
	return c.resource
}

func (c *Controller) Model() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.clone()
}

// SetValues copies the page's current inputs into the model. Unknown
// field names are ignored.
func (c *Controller) SetValues(values map[string]string) {
	c.mu.Lock()
	c.mergeLocked(values)
	c.mu.Unlock()
}

func (c *Controller) mergeLocked(values map[string]string) {
	for name, v := range values {
		if c.resource.hasField(name) {
			c.model.Values[name] = v
		}
	}
}

// Call is an action whose request is planned but not yet sent.
type Call struct {
	controller *Controller
	action     Action
	req        *api.Request
	planned    Model
}

// Begin merges values into the model and plans action in one step, so the
// request carries exactly these inputs no matter what arrives afterwards.
func (c *Controller) Begin(values map[string]string, action Action) (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mergeLocked(values)
	planned, req, err := Plan(c.resource, action, c.model)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"form":   c.resource.Name,
			"action": action,
		}).Warn("Rejected unsupported form action")
		return nil, err
	}
	c.model = planned
	c.notifyLocked()

	return &Call{controller: c, action: action, req: req, planned: planned.clone()}, nil
}

// Finish sends the planned request and folds the outcome into the model
// current at completion. It returns the resulting model.
func (call *Call) Finish(ctx context.Context) Model {
	c := call.controller
	if call.req == nil {
		c.logger.WithField("form", c.resource.Name).Debug("Form cleared")
		return call.planned
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, *call.req)
	outcome := Outcome{Response: resp, Err: err}

	c.mu.Lock()
	c.model = Apply(c.resource, call.action, c.model, outcome)
	result := c.model.clone()
	c.notifyLocked()
	c.mu.Unlock()

	fields := logrus.Fields{
		"form":        c.resource.Name,
		"action":      call.action,
		"method":      call.req.Method,
		"path":        call.req.Path,
		"success":     outcome.Success(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if resp != nil {
		fields["status"] = resp.StatusCode
	}
	if err != nil {
		c.logger.WithError(err).WithFields(fields).Warn("Form action failed")
	} else {
		c.logger.WithFields(fields).Info("Form action completed")
	}

	c.publish(call.action, call.req, outcome, result)
	return result
}

// Dispatch runs action to completion against the current model and
// returns the resulting model.
func (c *Controller) Dispatch(ctx context.Context, action Action) (Model, error) {
	call, err := c.Begin(nil, action)
	if err != nil {
		return Model{}, err
	}
	return call.Finish(ctx), nil
}

// notifyLocked must be called with mu held.
func (c *Controller) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.model.clone())
	}
}

func (c *Controller) publish(action Action, req *api.Request, outcome Outcome, result Model) {
	if c.publisher == nil {
		return
	}

	event := events.FormActionEvent{
		SessionID: c.sessionID,
		Form:      c.resource.Name,
		Action:    string(action),
		Method:    req.Method,
		Path:      req.Path,
		Success:   outcome.Success(),
		Flash:     result.Flash,
		EventTime: time.Now(),
	}
	if outcome.Response != nil {
		event.StatusCode = outcome.Response.StatusCode
	}

	if err := c.publisher.PublishFormAction(event); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"form":   c.resource.Name,
			"action": action,
		}).Warn("Failed to publish form action")
	}
}
