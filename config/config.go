// Package config builds plan.Config values through functional
// options, grounded on the teacher's ublk.Options pattern (and the
// wider pack's pkg/db/option.go functional-option idiom), so callers
// configure the engine without reaching into plan's internal fields.
package config

import (
	"github.com/cfa-haystack/vdifsg/internal/logging"
	"github.com/cfa-haystack/vdifsg/plan"
)

// Option mutates a plan.Config during construction.
type Option func(*plan.Config)

// WithModules sets the module identifier list to fan out over.
func WithModules(modules ...int) Option {
	return func(c *plan.Config) { c.Modules = modules }
}

// WithDisks sets the disk identifier list to fan out over.
func WithDisks(disks ...int) Option {
	return func(c *plan.Config) { c.Disks = disks }
}

// WithPattern sets the filename substituted for the template's %s verb.
func WithPattern(pattern string) Option {
	return func(c *plan.Config) { c.Pattern = pattern }
}

// WithTemplate sets the path template (two %d verbs, one %s verb).
func WithTemplate(tmpl string) Option {
	return func(c *plan.Config) { c.Template = tmpl }
}

// WithLogger attaches a structured logger to the plan.
func WithLogger(l *logging.Logger) Option {
	return func(c *plan.Config) { c.Logger = l }
}

// New builds a plan.Config from a base pattern/template and options.
func New(pattern, template string, opts ...Option) plan.Config {
	c := plan.Config{Pattern: pattern, Template: template}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
