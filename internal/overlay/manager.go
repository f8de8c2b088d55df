package overlay

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// Manager handles overlay widgets and rendering. Widgets render in the
// order they were added.
type Manager struct {
	widgets []Widget
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates a new overlay manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// PoseOptions configures NewPoseManager
type PoseOptions struct {
	Z        pose.ZMeaning
	MinScore float64
	BBoxes   bool
	Labels   bool
}

// NewPoseManager creates the standard skeleton overlay for a schema:
// skeleton, then optional boxes and "P<n>" labels on top
func NewPoseManager(schema *landmark.Schema, opt PoseOptions) *Manager {
	m := NewManager()
	m.AddWidget(NewSkeletonWidget("skeleton", schema, opt.Z, opt.MinScore))
	if opt.BBoxes {
		m.AddWidget(NewBBoxWidget("bbox"))
	}
	if opt.Labels {
		m.AddWidget(NewLabelWidget("label"))
	}
	return m
}

// AddWidget adds a widget to the overlay
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.widgets {
		if w.ID() == widget.ID() {
			return fmt.Errorf("widget with ID %s already exists", widget.ID())
		}
	}

	m.widgets = append(m.widgets, widget)
	logger.WithComponent("overlay").Debug().
		Str("id", widget.ID()).
		Str("type", widget.Type()).
		Msg("Added widget")
	return nil
}

// RemoveWidget removes a widget from the overlay
func (m *Manager) RemoveWidget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.widgets {
		if w.ID() == id {
			m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("widget with ID %s not found", id)
}

// GetWidget retrieves a widget by ID
func (m *Manager) GetWidget(id string) (Widget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.widgets {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

// GetAllWidgets returns all widgets in render order
func (m *Manager) GetAllWidgets() []Widget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	widgets := make([]Widget, len(m.widgets))
	copy(widgets, m.widgets)
	return widgets
}

// SetEnabled enables or disables the entire overlay
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether the overlay is enabled
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Render draws all enabled widgets onto the frame in place. A nil frame or
// an empty result draws nothing.
func (m *Manager) Render(dst *frame.Frame, res *pose.FrameResult) {
	if m == nil || !m.IsEnabled() || dst == nil || dst.Image == nil || !res.HasPersons() {
		return
	}

	for _, widget := range m.GetAllWidgets() {
		if widget.IsEnabled() {
			widget.Render(dst, res)
		}
	}
}
