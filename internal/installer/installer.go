package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ContentTypePackage declares an application update package.
const ContentTypePackage = "application/vnd.artifact-keeper.package"

// ErrInstallUnavailable means no handler could be resolved for the request.
var ErrInstallUnavailable = errors.New("no application available to install the artifact")

// Request describes a verified local artifact to install.
type Request struct {
	// Path is the verified local file.
	Path string
	// ContentType declares what kind of artifact Path holds.
	ContentType string
	// DigestHex is the verified digest of Path, if known.
	DigestHex string
}

// Trigger starts the installation of a verified artifact.
type Trigger interface {
	Install(ctx context.Context, req Request) error
}

// TriggerFunc adapts a function to the Trigger interface.
type TriggerFunc func(ctx context.Context, req Request) error

// Install calls f.
func (f TriggerFunc) Install(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Router dispatches requests to the trigger registered for their content type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Trigger
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Trigger)}
}

// Handle registers trigger for contentType and returns the router for chaining.
func (r *Router) Handle(contentType string, trigger Trigger) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[contentType] = trigger

	return r
}

// Install forwards req to the registered trigger.
func (r *Router) Install(ctx context.Context, req Request) error {
	r.mu.RLock()
	trigger, ok := r.handlers[req.ContentType]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("content type %q: %w", req.ContentType, ErrInstallUnavailable)
	}

	return trigger.Install(ctx, req)
}
