package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives the output a run exposes to front-ends: one human-readable
// line per logged event and a (current, total) progress pair. Either
// callback may be nil.
type Sink struct {
	Line     func(line string)
	Progress func(current, total int)
}

// Attach returns a logger that writes to base and also forwards every entry
// at info level or above to s.Line.
func (s Sink) Attach(base *zap.Logger) *zap.Logger {
	if s.Line == nil {
		return base
	}
	line := newLineCore(zapcore.InfoLevel, s.Line)
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, line)
	}))
}

// Report forwards a progress pair when a progress callback is set.
func (s Sink) Report(current, total int) {
	if s.Progress != nil {
		s.Progress(current, total)
	}
}

// lineCore encodes entries as single console lines without time or level.
type lineCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	fn  func(string)
}

func newLineCore(level zapcore.LevelEnabler, fn func(string)) *lineCore {
	return &lineCore{
		LevelEnabler: level,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			NameKey:          "logger",
			MessageKey:       "msg",
			ConsoleSeparator: " ",
			EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
				// Only the innermost component name is interesting to a reader.
				if i := strings.LastIndex(name, "."); i >= 0 {
					name = name[i+1:]
				}
				enc.AppendString("[" + name + "]")
			},
			EncodeDuration: zapcore.StringDurationEncoder,
		}),
		fn: fn,
	}
}

func (c *lineCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &lineCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), fn: c.fn}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *lineCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *lineCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := strings.TrimRight(buf.String(), "\n")
	buf.Free()
	c.fn(line)
	return nil
}

func (c *lineCore) Sync() error { return nil }
