// Package inspect reads file level metadata without decoding any data pages.
package inspect

import (
	"fmt"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/metadata"
)

// arrowSchemaKey holds the serialized Arrow schema written by pqarrow.
const arrowSchemaKey = "ARROW:schema"

// ParquetInfo is the footer metadata of a Parquet file.
type ParquetInfo struct {
	Path      string            `json:"path" yaml:"path"`
	Version   string            `json:"version" yaml:"version"`
	CreatedBy string            `json:"created_by" yaml:"created_by"`
	NumRows   int64             `json:"num_rows" yaml:"num_rows"`
	Columns   []ParquetColumn   `json:"columns" yaml:"columns"`
	RowGroups []RowGroupInfo    `json:"row_groups" yaml:"row_groups"`
	KeyValues map[string]string `json:"key_values,omitempty" yaml:"key_values,omitempty"`
}

// ParquetColumn describes a leaf column of the file schema.
type ParquetColumn struct {
	Path         string `json:"path" yaml:"path"`
	PhysicalType string `json:"physical_type" yaml:"physical_type"`
	LogicalType  string `json:"logical_type" yaml:"logical_type"`
}

// RowGroupInfo describes one row group.
type RowGroupInfo struct {
	NumRows       int64             `json:"num_rows" yaml:"num_rows"`
	TotalByteSize int64             `json:"total_byte_size" yaml:"total_byte_size"`
	Columns       []ColumnChunkInfo `json:"columns" yaml:"columns"`
}

// ColumnChunkInfo describes a column chunk within a row group. Statistics
// fields are only set when the writer recorded trustworthy statistics.
type ColumnChunkInfo struct {
	Path           string `json:"path" yaml:"path"`
	Compression    string `json:"compression" yaml:"compression"`
	NumValues      int64  `json:"num_values" yaml:"num_values"`
	CompressedSize int64  `json:"compressed_size" yaml:"compressed_size"`
	NullCount      *int64 `json:"null_count,omitempty" yaml:"null_count,omitempty"`
	DistinctCount  *int64 `json:"distinct_count,omitempty" yaml:"distinct_count,omitempty"`
	Min            string `json:"min,omitempty" yaml:"min,omitempty"`
	Max            string `json:"max,omitempty" yaml:"max,omitempty"`
}

// Parquet opens path and collects its footer metadata.
func Parquet(path string) (*ParquetInfo, error) {
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer reader.Close()

	return describe(path, reader.MetaData())
}

func describe(path string, md *metadata.FileMetaData) (*ParquetInfo, error) {
	info := &ParquetInfo{
		Path:      path,
		Version:   md.Version().String(),
		CreatedBy: md.GetCreatedBy(),
		NumRows:   md.NumRows,
	}

	for i := 0; i < md.Schema.NumColumns(); i++ {
		col := md.Schema.Column(i)
		info.Columns = append(info.Columns, ParquetColumn{
			Path:         col.Path(),
			PhysicalType: col.PhysicalType().String(),
			LogicalType:  col.LogicalType().String(),
		})
	}

	if kv := md.KeyValueMetadata(); kv != nil && kv.Len() > 0 {
		info.KeyValues = make(map[string]string, kv.Len())
		keys, values := kv.Keys(), kv.Values()
		for i := range keys {
			if keys[i] == arrowSchemaKey {
				continue
			}
			info.KeyValues[keys[i]] = values[i]
		}
	}

	for i := 0; i < md.NumRowGroups(); i++ {
		rg := md.RowGroup(i)
		group := RowGroupInfo{NumRows: rg.NumRows(), TotalByteSize: rg.TotalByteSize()}
		for j := 0; j < rg.NumColumns(); j++ {
			chunk, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, fmt.Errorf("row group %d column %d: %w", i, j, err)
			}
			ci, err := describeChunk(chunk)
			if err != nil {
				return nil, fmt.Errorf("row group %d column %d: %w", i, j, err)
			}
			group.Columns = append(group.Columns, ci)
		}
		info.RowGroups = append(info.RowGroups, group)
	}
	return info, nil
}

func describeChunk(chunk *metadata.ColumnChunkMetaData) (ColumnChunkInfo, error) {
	ci := ColumnChunkInfo{
		Path:           chunk.PathInSchema().String(),
		Compression:    chunk.Compression().String(),
		NumValues:      chunk.NumValues(),
		CompressedSize: chunk.TotalCompressedSize(),
	}

	stats, err := chunk.Statistics()
	if err != nil {
		return ci, err
	}
	if stats == nil {
		return ci, nil
	}
	if stats.HasNullCount() {
		n := stats.NullCount()
		ci.NullCount = &n
	}
	if stats.HasDistinctCount() {
		n := stats.DistinctCount()
		ci.DistinctCount = &n
	}
	if stats.HasMinMax() {
		ci.Min = statString(metadata.GetStatValue(chunk.Type(), stats.EncodeMin()))
		ci.Max = statString(metadata.GetStatValue(chunk.Type(), stats.EncodeMax()))
	}
	return ci, nil
}

func statString(v any) string {
	if b, ok := v.([]byte); ok {
		if utf8.Valid(b) {
			return string(b)
		}
		return fmt.Sprintf("0x%x", b)
	}
	return fmt.Sprint(v)
}
