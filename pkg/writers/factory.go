// Package writers provides implementations of dataset writers for various data formats.
package writers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TFMV/bdt/pkg/core"
)

// Factory creates a writer based on the given configuration.
type Factory struct {
	// registered writers by type
	writers map[string]Creator
}

// Creator is a function that creates a writer from a configuration.
type Creator func(config core.WriterConfig) (core.DatasetWriter, error)

// NewFactory creates a new writer factory.
func NewFactory() *Factory {
	return &Factory{
		writers: make(map[string]Creator),
	}
}

// Register registers a creator for a writer type.
func (f *Factory) Register(typ string, creator Creator) {
	f.writers[typ] = creator
}

// Create creates a writer based on the given configuration. An empty type is
// detected from the path's extension.
func (f *Factory) Create(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Type == "" {
		typ, err := DetectType(config.Path)
		if err != nil {
			return nil, err
		}
		config.Type = typ
	}
	creator, ok := f.writers[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported writer type: %s", config.Type)
	}
	return creator(config)
}

// DetectType returns the writer type for an output path based on its extension.
func DetectType(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return "csv", nil
	case ".json", ".ndjson", ".jsonl":
		return "json", nil
	case ".parquet", ".parq":
		return "parquet", nil
	case ".arrow", ".ipc", ".feather":
		return "arrow", nil
	case "":
		return "", fmt.Errorf("cannot detect output format of %q: no file extension", path)
	default:
		return "", fmt.Errorf("cannot detect output format of %q: unsupported extension %s", path, ext)
	}
}

// DefaultFactory is the default writer factory with built-in writer types.
var DefaultFactory = NewFactory()

// init registers built-in writer types.
func init() {
	DefaultFactory.Register("parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", NewArrowWriter)
	DefaultFactory.Register("json", NewJSONWriter)
	DefaultFactory.Register("csv", NewCSVWriter)
}
