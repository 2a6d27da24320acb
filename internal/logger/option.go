package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// componentCore filters a wrapped core by its own level instead of the global one.
type componentCore struct {
	zapcore.Core

	// enabler decides which levels pass, regardless of the global level.
	enabler zapcore.LevelEnabler
}

// Enabled consults the component level only.
func (c *componentCore) Enabled(l zapcore.Level) bool {
	return c.enabler.Enabled(l)
}

// Check registers the component core for entries at or above its level.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *componentCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With keeps the component level on derived cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *componentCore) With(fields []zapcore.Field) zapcore.Core {
	return &componentCore{Core: c.Core.With(fields), enabler: c.enabler}
}

// WithLevel returns a zap option that filters a logger at lvl, which may be
// lower or higher than the global level.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.LevelEnabler) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &componentCore{Core: core, enabler: lvl}
	})
}

// WithComponentLevel returns a context whose logger is named after component
// and filtered at lvl, independent of the global level.
func WithComponentLevel(ctx context.Context, component string, lvl zapcore.Level) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(component).WithOptions(WithLevel(lvl)))
}
