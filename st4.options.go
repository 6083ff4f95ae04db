package st4

import "go.uber.org/zap"

// GroupOption is a functional option for configuring a Group.
type GroupOption func(*groupConfig)

// groupConfig holds the internal configuration for a Group.
type groupConfig struct {
	delimStart string
	delimStop  string
	locale     string
	logger     *zap.Logger
	listener   ErrorListener
	debug      bool
}

// defaultGroupConfig returns the default group configuration.
func defaultGroupConfig() *groupConfig {
	return &groupConfig{
		delimStart: DefaultDelimiterStart,
		delimStop:  DefaultDelimiterStop,
		locale:     DefaultLocale,
	}
}

// WithDelimiters sets the expression delimiters for every template in
// the group. Default: "<" and ">". A group file's own `delimiters`
// declaration overrides this.
func WithDelimiters(start, stop string) GroupOption {
	return func(c *groupConfig) {
		if start != "" {
			c.delimStart = start
		}
		if stop != "" {
			c.delimStop = stop
		}
	}
}

// WithLocale sets the ambient locale passed to attribute renderers.
// Default: "en_US". A render call's own locale option overrides this.
func WithLocale(locale string) GroupOption {
	return func(c *groupConfig) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// WithLogger sets the logger for the group and every component it
// constructs. Default: nil (no logging).
func WithLogger(logger *zap.Logger) GroupOption {
	return func(c *groupConfig) {
		c.logger = logger
	}
}

// WithErrorListener sets the listener receiving compile-time and
// run-time diagnostics. Default: a stderr console listener.
func WithErrorListener(listener ErrorListener) GroupOption {
	return func(c *groupConfig) {
		c.listener = listener
	}
}

// WithDebug enables the per-render debug event log, retrievable via
// ST.Events after a render.
func WithDebug() GroupOption {
	return func(c *groupConfig) {
		c.debug = true
	}
}

// RenderOption is a functional option for one render/write call.
type RenderOption func(*renderConfig)

// renderConfig holds per-render overrides.
type renderConfig struct {
	locale    string
	lineWidth int
	listener  ErrorListener
}

// WithRenderLocale overrides the group's locale for one render.
func WithRenderLocale(locale string) RenderOption {
	return func(c *renderConfig) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// WithLineWidth enables line wrapping at the given width for one
// render. Default: no wrapping.
func WithLineWidth(width int) RenderOption {
	return func(c *renderConfig) {
		c.lineWidth = width
	}
}

// WithRenderListener overrides the group's error listener for one
// render.
func WithRenderListener(listener ErrorListener) RenderOption {
	return func(c *renderConfig) {
		c.listener = listener
	}
}
