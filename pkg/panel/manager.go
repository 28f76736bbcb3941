package panel

import (
	"context"
	"sync"

	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
)

// ErrClosed is returned by requests sent through a closed Handle.
var ErrClosed = errors.New("panel is closed")

// Factory builds the controller backing a newly opened panel.
type Factory func(ctx context.Context) (*Controller, error)

// Manager owns the lifecycle of the single active panel.
type Manager struct {
	mu      sync.Mutex
	factory Factory
	active  *Handle
}

// NewManager creates a Manager that builds panels with factory.
func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// Open returns the active panel, creating one when none is open.
func (m *Manager) Open(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		logger.G(ctx).Debug("panel already open, reusing it")
		return m.active, nil
	}

	ctrl, err := m.factory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open panel")
	}
	m.active = &Handle{manager: m, controller: ctrl}
	logger.G(ctx).Debug("opened panel")
	return m.active, nil
}

// Active returns the open panel, or nil.
func (m *Manager) Active() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == h {
		m.active = nil
	}
}

// Handle is a reference to an open panel.
type Handle struct {
	manager    *Manager
	controller *Controller

	mu     sync.Mutex
	closed bool
}

// EditorType returns the panel's default editor type.
func (h *Handle) EditorType() rules.EditorType {
	return h.controller.EditorType()
}

// Send executes req on the panel's controller.
func (h *Handle) Send(ctx context.Context, req Request) (Response, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return Response{}, ErrClosed
	}
	return h.controller.Handle(ctx, req)
}

// Close tears the panel down. A later Manager.Open creates a fresh panel.
// Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.manager.release(h)
	if err := h.controller.Close(); err != nil {
		return errors.Wrap(err, "failed to close panel")
	}
	return nil
}
