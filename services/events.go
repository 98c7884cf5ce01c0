package services

import (
	"context"
	"net/http"
	"sync"

	"form-consent/models"
)

type EventKind int

const (
	// EventModify fires before a new consent is persisted; listeners may
	// change it.
	EventModify EventKind = iota
	// EventCreated fires once the consent is persisted.
	EventCreated
	EventApprove
	EventDismiss
)

func (k EventKind) String() string {
	switch k {
	case EventModify:
		return "modify"
	case EventCreated:
		return "created"
	case EventApprove:
		return "approved"
	case EventDismiss:
		return "dismissed"
	}
	return "unknown"
}

// ConsentEvent is passed to listeners.
type ConsentEvent struct {
	Kind    EventKind
	Consent *models.Consent
	Form    *models.FormSetting

	// Request is only set for EventModify and EventCreated.
	Request *http.Request

	// RedirectURL may be set by approve and dismiss listeners to send the
	// user somewhere instead of the default response.
	RedirectURL string
}

type Listener func(ctx context.Context, ev *ConsentEvent) error

// EventDispatcher calls listeners in registration order. The first listener
// error stops dispatching.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{listeners: make(map[EventKind][]Listener)}
}

func (d *EventDispatcher) Subscribe(kind EventKind, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], l)
}

func (d *EventDispatcher) Dispatch(ctx context.Context, ev *ConsentEvent) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners[ev.Kind]...)
	d.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
