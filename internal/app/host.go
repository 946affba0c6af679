package app

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"haversine-sensor/internal/component"
	"haversine-sensor/internal/config"
	"haversine-sensor/internal/metrics"
	"haversine-sensor/internal/resource"
	"haversine-sensor/internal/upstream"
)

// host owns the distance component and the dependencies it is bound to, and
// rebuilds both when the component file changes.
type host struct {
	path    string
	env     upstream.Env
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	comp *component.Component
	reg  *upstream.Registry
}

func newHost(path string, env upstream.Env, m *metrics.Metrics, logger *slog.Logger) *host {
	env.Logger = logger
	return &host{path: path, env: env, metrics: m, logger: logger}
}

// load reads the component file and (re)builds dependencies and bindings.
// A file with invalid attributes leaves everything as it was.
func (h *host) load() error {
	cf, err := config.LoadComponentFile(h.path)
	if err != nil {
		return err
	}
	required, err := component.Validate(cf.Attributes)
	if err != nil {
		return fmt.Errorf("component %s: %w", cf.Name, err)
	}
	h.checkDeclared(required, cf.Dependencies)

	h.mu.Lock()
	defer h.mu.Unlock()

	// Subscriptions are keyed by topic, so the old set is released before the
	// new one subscribes.
	if h.reg != nil {
		if err := h.reg.Close(); err != nil {
			h.logger.Warn("closing previous dependencies", "error", err)
		}
		h.reg = nil
	}

	reg, buildErr := upstream.Build(cf.Dependencies, h.env)
	deps := resource.Dependencies{}
	if buildErr == nil {
		deps = reg.Dependencies()
	}

	if h.comp == nil {
		comp, err := component.New(cf.Name, cf.Attributes, deps, h.logger, component.WithMetrics(h.metrics))
		if err != nil {
			if reg != nil {
				_ = reg.Close()
			}
			return err
		}
		h.comp = comp
	} else {
		if cf.Name != h.comp.Name() {
			h.logger.Warn("component name changes need a restart", "current", h.comp.Name(), "configured", cf.Name)
		}
		if err := h.comp.Reconfigure(cf.Attributes, deps); err != nil {
			if reg != nil {
				_ = reg.Close()
			}
			return err
		}
	}

	if buildErr != nil {
		return fmt.Errorf("build dependencies: %w", buildErr)
	}
	h.reg = reg
	h.logger.Info("component configured",
		"component", cf.Name,
		"dependencies", len(cf.Dependencies),
		"required", required,
	)
	return nil
}

// checkDeclared warns about names the attributes refer to that the file does
// not declare. Such slots stay unresolved.
func (h *host) checkDeclared(required []string, specs []config.DependencySpec) {
	for _, name := range required {
		declared := slices.ContainsFunc(specs, func(d config.DependencySpec) bool { return d.Name == name })
		if !declared {
			h.logger.Warn("dependency not declared in component file", "name", name, "path", h.path)
		}
	}
}

// reconfigure applies new attributes against the current dependencies.
func (h *host) reconfigure(attrs map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.comp == nil {
		return errors.New("component not loaded")
	}
	deps := resource.Dependencies{}
	if h.reg != nil {
		deps = h.reg.Dependencies()
	}
	return h.comp.Reconfigure(attrs, deps)
}

func (h *host) component() *component.Component {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.comp
}

func (h *host) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reg == nil {
		return nil
	}
	err := h.reg.Close()
	h.reg = nil
	return err
}
