// Package logger wraps zap for structured logging.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log     *zap.Logger
	once    sync.Once
	mu      sync.Mutex
	level   = zap.NewAtomicLevelAt(zap.WarnLevel)
	logFile string // no file output unless set
	console io.Writer = os.Stderr
	initErr error
)

// SetLogPath sets the JSON log file. It only takes effect before the logger
// is initialized.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logFile = path
}

// SetLevel changes the minimum level of the global logger. It may be called
// at any time.
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// SetOutput replaces the console destination (stderr by default). It only
// takes effect before the logger is initialized.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
}

// InitLogger initializes the Zap logger with structured logging. Console
// output goes to stderr so that stdout only carries command output.
func InitLogger() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		// Configure console logging
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(console)), level)}

		// Configure file logging
		if logFile != "" {
			file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				initErr = fmt.Errorf("failed to open log file: %w", err)
			} else {
				fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
				cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), level))
			}
		}

		// Combine both outputs (console + file)
		core := zapcore.NewTee(cores...)

		// Initialize global logger
		log = zap.New(core, zap.AddCaller())
	})
}

// Err returns the error met while opening the log file, if any. The logger
// still works without the file.
func Err() error {
	mu.Lock()
	defer mu.Unlock()
	return initErr
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	InitLogger()
	return log
}

// WithRunID returns a child logger tagged with a fresh run identifier.
func WithRunID() *zap.Logger {
	return GetLogger().With(zap.String("run_id", uuid.NewString()))
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// ResetLogger discards the global logger so the next call initializes it
// again. Meant for tests.
func ResetLogger() {
	Sync()
	mu.Lock()
	defer mu.Unlock()
	log = nil
	once = sync.Once{}
	initErr = nil
	console = os.Stderr
	level.SetLevel(zap.WarnLevel)
}
