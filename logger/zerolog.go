package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Zerolog field implementations
func (f StringField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Str(f.Key, f.Value)
}

func (f IntField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Int(f.Key, f.Value)
}

func (f Int64Field) apply(event *zerolog.Event) *zerolog.Event {
	return event.Int64(f.Key, f.Value)
}

func (f BoolField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Bool(f.Key, f.Value)
}

func (f DurationField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Dur(f.Key, f.Value)
}

func (f TimeField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Time(f.Key, f.Value)
}

func (f ErrorField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Err(f.Value)
}

func (f AnyField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Interface(f.Key, f.Value)
}

// ZerologLogger implements Logger on top of zerolog
type ZerologLogger struct {
	logger     zerolog.Logger
	config     *Config
	subsystem  string
	fileWriter *lumberjack.Logger
}

// NewZerologLogger creates a new ZerologLogger
func NewZerologLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var zerologLevel zerolog.Level
	switch config.Level {
	case TraceLevel:
		zerologLevel = zerolog.TraceLevel
	case DebugLevel:
		zerologLevel = zerolog.DebugLevel
	case InfoLevel:
		zerologLevel = zerolog.InfoLevel
	case WarnLevel:
		zerologLevel = zerolog.WarnLevel
	case ErrorLevel:
		zerologLevel = zerolog.ErrorLevel
	case FatalLevel:
		zerologLevel = zerolog.FatalLevel
	default:
		zerologLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(zerologLevel)
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var writers []io.Writer
	var fileWriter *lumberjack.Logger

	if config.FileConfig != nil {
		if err := os.MkdirAll(filepath.Dir(config.FileConfig.Filename), 0o755); err == nil {
			fileWriter = &lumberjack.Logger{
				Filename:   config.FileConfig.Filename,
				MaxSize:    config.FileConfig.MaxSize,
				MaxAge:     config.FileConfig.MaxAge,
				MaxBackups: config.FileConfig.MaxBackups,
				Compress:   config.FileConfig.Compress,
				LocalTime:  true,
			}
			writers = append(writers, fileWriter)
		}
	}

	outputs := config.Outputs
	if len(outputs) == 0 {
		outputs = []io.Writer{os.Stderr}
	}
	for _, output := range outputs {
		if config.Format == DefaultFormat {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: "15:04:05",
				PartsOrder: []string{
					zerolog.TimestampFieldName,
					zerolog.LevelFieldName,
					"subsystem",
					zerolog.MessageFieldName,
				},
			})
		} else {
			writers = append(writers, output)
		}
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return &ZerologLogger{
		logger:     zerolog.New(writer).With().Timestamp().Logger(),
		config:     config,
		fileWriter: fileWriter,
	}
}

func (z *ZerologLogger) log(event *zerolog.Event, msg string, fields ...TypedField) {
	if z.subsystem != "" {
		event = event.Str("subsystem", z.subsystem)
	}
	for _, field := range fields {
		event = field.apply(event)
	}
	event.Msg(msg)
}

func (z *ZerologLogger) Trace(msg string, fields ...TypedField) {
	z.log(z.logger.Trace(), msg, fields...)
}

func (z *ZerologLogger) Debug(msg string, fields ...TypedField) {
	z.log(z.logger.Debug(), msg, fields...)
}

func (z *ZerologLogger) Info(msg string, fields ...TypedField) {
	z.log(z.logger.Info(), msg, fields...)
}

func (z *ZerologLogger) Warn(msg string, fields ...TypedField) {
	z.log(z.logger.Warn(), msg, fields...)
}

func (z *ZerologLogger) Error(msg string, fields ...TypedField) {
	z.log(z.logger.Error(), msg, fields...)
}

func (z *ZerologLogger) Fatal(msg string, fields ...TypedField) {
	z.log(z.logger.Fatal(), msg, fields...)
}

func (z *ZerologLogger) Tracef(format string, args ...interface{}) {
	z.logger.Trace().Msgf(format, args...)
}

func (z *ZerologLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debug().Msgf(format, args...)
}

func (z *ZerologLogger) Infof(format string, args ...interface{}) {
	z.logger.Info().Msgf(format, args...)
}

func (z *ZerologLogger) Warnf(format string, args ...interface{}) {
	z.logger.Warn().Msgf(format, args...)
}

func (z *ZerologLogger) Errorf(format string, args ...interface{}) {
	z.logger.Error().Msgf(format, args...)
}

// WithSubsystem returns a logger scoped to a named subsystem
func (z *ZerologLogger) WithSubsystem(name string) Logger {
	clone := *z
	if z.subsystem != "" {
		clone.subsystem = z.subsystem + "." + name
	} else {
		clone.subsystem = name
	}
	return &clone
}

// WithFields returns a logger with fields attached to every line
func (z *ZerologLogger) WithFields(fields ...TypedField) Logger {
	ctx := z.logger.With()
	for _, field := range fields {
		ctx = ctx.Interface(keyOf(field), valueOf(field))
	}
	clone := *z
	clone.logger = ctx.Logger()
	return &clone
}

func keyOf(field TypedField) string {
	switch f := field.(type) {
	case StringField:
		return f.Key
	case IntField:
		return f.Key
	case Int64Field:
		return f.Key
	case BoolField:
		return f.Key
	case DurationField:
		return f.Key
	case TimeField:
		return f.Key
	case ErrorField:
		return f.Key
	case AnyField:
		return f.Key
	}
	return "field"
}

func valueOf(field TypedField) interface{} {
	switch f := field.(type) {
	case StringField:
		return f.Value
	case IntField:
		return f.Value
	case Int64Field:
		return f.Value
	case BoolField:
		return f.Value
	case DurationField:
		return f.Value
	case TimeField:
		return f.Value
	case ErrorField:
		return f.Value
	case AnyField:
		return f.Value
	}
	return nil
}

// IsLevelEnabled reports whether the given level would be emitted
func (z *ZerologLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= z.config.Level
}

// Flush is a no-op for zerolog; file output is unbuffered
func (z *ZerologLogger) Flush() {}

// Close releases the rotated file writer if one is open
func (z *ZerologLogger) Close() error {
	if z.fileWriter != nil {
		return z.fileWriter.Close()
	}
	return nil
}
