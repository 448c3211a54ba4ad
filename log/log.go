/*
Package log builds module loggers on top of zerolog (https://github.com/rs/zerolog).

Loggers are configured from a toml file named multichain_log.toml in the working directory,
or from the file named by MULTICHAIN_LOGCONFIG. Every field is optional.

	# default level for every module: debug/info/warn/error/fatal/panic
	level = "info"

	# json, console or console_no_color
	formatter = "console"

	# print source file and line
	caller = false

	# stdout, stderr or a file path
	out = "stderr"

	# time field layout, see time/format.go
	timefieldformat = "15:04:05"

	# per module overrides; level and out are supported
	[submitter]
	level = "debug"
	out = "submitter.log"
*/
package log

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	confFilePathKey     = "LOGCONFIG"
	confEnvPrefix       = "MULTICHAIN"
	defaultConfFileName = "multichain_log"
)

var (
	baseLogger  = zerolog.New(os.Stderr)
	baseLevel   = zerolog.InfoLevel
	logInitLock sync.Mutex
	isLogInit   = false
	viperConf   = viper.New()
)

// Logger is a zerolog logger tagged with a module name.
type Logger struct {
	*zerolog.Logger
	name  string
	level zerolog.Level
}

func loadConfigFile() {
	viperConf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConf.SetEnvPrefix(confEnvPrefix)
	viperConf.AutomaticEnv()

	viperConf.SetConfigType("toml")
	viperConf.SetConfigName(defaultConfFileName)
	viperConf.AddConfigPath(".")

	if path := viperConf.GetString(confFilePathKey); path != "" {
		viperConf.SetConfigFile(path)
		baseLogger.Info().Str("file", path).Msg("init logger from config file")
	}

	if err := viperConf.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			baseLogger.Error().Err(err).Msg("failed to read logger config file")
		}
	}
}

func initLog() {
	if layout := viperConf.GetString("timefieldformat"); layout != "" {
		zerolog.TimeFieldFormat = layout
	}

	var out io.Writer = os.Stderr
	if name := viperConf.GetString("out"); name != "" {
		if o, err := getOutput(name); err == nil {
			out = o
		} else {
			baseLogger.Warn().Err(err).Str("out", name).Msg("failed to open log output, using stderr")
		}
	}
	baseLogger = baseLogger.Output(formatted(out, viperConf.GetString("formatter")))

	if viperConf.GetBool("caller") {
		baseLogger = baseLogger.With().Caller().Logger()
	}

	baseLevel = parseLevel(viperConf.GetString("level"), zerolog.InfoLevel)
	baseLogger = baseLogger.With().Timestamp().Logger().Level(baseLevel)
}

func formatted(out io.Writer, formatter string) io.Writer {
	switch strings.ToLower(formatter) {
	case "", "json":
		return out
	case "console":
		if f, ok := out.(*os.File); ok {
			out = colorable.NewColorable(f)
		}
		return zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	case "console_no_color":
		return zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: zerolog.TimeFieldFormat}
	default:
		baseLogger.Warn().Str("formatter", formatter).Msg("unknown log formatter, expected console/console_no_color/json")
		return out
	}
}

func parseLevel(level string, fallback zerolog.Level) zerolog.Level {
	if level == "" {
		return fallback
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		baseLogger.Warn().Err(err).Str("level", level).Msg("invalid log level")
		return fallback
	}
	return l
}

func ensureInit() {
	if !isLogInit {
		loadConfigFile()
		initLog()
		isLogInit = true
	}
}

// Configure points the logger at a config file. It must run before the first NewLogger
// call to take effect; the CLI calls it while parsing flags.
func Configure(path string) {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	if path != "" {
		viperConf.Set(confFilePathKey, path)
	}
}

// NewLogger returns a logger whose entries carry module=moduleName. Module specific level
// and output come from the [moduleName] table of the config.
func NewLogger(moduleName string) *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	ensureInit()

	zLogger := baseLogger.With().Str("module", moduleName).Logger()
	zLevel := baseLevel
	if sub := viperConf.Sub(moduleName); sub != nil {
		if name := sub.GetString("out"); name != "" {
			if out, err := getOutput(name); err == nil {
				zLogger = zLogger.Output(out)
			} else {
				baseLogger.Warn().Err(err).Str("out", name).Str("module", moduleName).Msg("failed to open module log output")
			}
		}
		if level := sub.GetString("level"); level != "" {
			zLevel = parseLevel(level, zerolog.InfoLevel)
			zLogger = zLogger.Level(zLevel)
		}
	}

	return &Logger{
		Logger: &zLogger,
		name:   moduleName,
		level:  zLevel,
	}
}

// Default returns the base logger, without a module name.
func Default() *Logger {
	logInitLock.Lock()
	defer logInitLock.Unlock()
	ensureInit()

	return &Logger{
		Logger: &baseLogger,
		level:  baseLevel,
	}
}

// WithChain returns a child logger that tags every entry with chainId.
func (logger *Logger) WithChain(chainID uint64) *Logger {
	zLogger := logger.With().Uint64("chainId", chainID).Logger()
	return &Logger{
		Logger: &zLogger,
		name:   logger.name,
		level:  logger.level,
	}
}

// IsDebugEnabled guards log statements that are expensive to build.
func (logger *Logger) IsDebugEnabled() bool {
	return logger.level <= zerolog.DebugLevel
}

func (logger *Logger) Level() string {
	return logger.level.String()
}

func (logger *Logger) Name() string {
	return logger.name
}

var errEmptyName = errors.New("empty output name")

// getOutput resolves stdout, stderr or a file path opened for append.
func getOutput(outName string) (*os.File, error) {
	switch outName {
	case "":
		return nil, errEmptyName
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(outName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	}
}
