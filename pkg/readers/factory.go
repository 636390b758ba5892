// Package readers provides implementations of dataset readers for various data sources.
package readers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TFMV/bdt/pkg/core"
)

// DefaultBatchSize is the number of rows per record batch when none is configured.
const DefaultBatchSize = 10000

// Factory creates a reader based on the given configuration.
type Factory struct {
	// registered readers by type
	readers map[string]Creator
}

// Creator is a function that creates a reader from a configuration.
type Creator func(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error)

// NewFactory creates a new reader factory.
func NewFactory() *Factory {
	return &Factory{
		readers: make(map[string]Creator),
	}
}

// Register registers a creator for a reader type.
func (f *Factory) Register(typ string, creator Creator) {
	f.readers[typ] = creator
}

// Types returns the registered reader types in sorted order.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.readers))
	for typ := range f.readers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Create creates a reader based on the given configuration. An empty type is
// detected from the path's extension.
func (f *Factory) Create(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Type == "" {
		typ, err := DetectType(config.Path)
		if err != nil {
			return nil, err
		}
		config.Type = typ
	}
	creator, ok := f.readers[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported reader type: %s", config.Type)
	}
	return creator(ctx, config)
}

// extensions maps file extensions to reader types.
var extensions = map[string]string{
	".csv":     "csv",
	".json":    "json",
	".ndjson":  "json",
	".jsonl":   "json",
	".parquet": "parquet",
	".parq":    "parquet",
	".arrow":   "arrow",
	".ipc":     "arrow",
	".feather": "arrow",
	".avro":    "avro",
}

// DetectType returns the reader type for a file based on its extension.
func DetectType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if typ, ok := extensions[ext]; ok {
		return typ, nil
	}
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %q: no file extension", path)
	}
	return "", fmt.Errorf("cannot detect format of %q: unsupported extension %s", path, ext)
}

func batchSize(config core.ReaderConfig) int64 {
	if config.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return config.BatchSize
}

// DefaultFactory is the default reader factory with built-in reader types.
var DefaultFactory = NewFactory()

// init registers built-in reader types.
func init() {
	DefaultFactory.Register("parquet", NewParquetReader)
	DefaultFactory.Register("arrow", NewArrowReader)
	DefaultFactory.Register("csv", NewCSVReader)
	DefaultFactory.Register("json", NewJSONReader)
	DefaultFactory.Register("avro", NewAvroReader)
	DefaultFactory.Register("adbc", NewADBCReader)
}
