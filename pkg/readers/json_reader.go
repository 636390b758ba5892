package readers

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"

	"github.com/TFMV/bdt/pkg/core"
)

// inferLines is the number of leading lines used to infer a JSON schema.
const inferLines = 1000

// NewJSONReader creates a reader for newline-delimited JSON files, one object
// per line. The schema is inferred from the leading lines of the file.
func NewJSONReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON reader")
	}

	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}

	buffered := bufio.NewReader(file)
	head, err := readLines(buffered, inferLines)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	schema, err := InferJSONSchema(bytes.NewReader(head))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to infer JSON schema of %s: %w", config.Path, err)
	}

	reader := array.NewJSONReader(
		io.MultiReader(bytes.NewReader(head), buffered),
		schema,
		array.WithChunk(int(batchSize(config))),
		array.WithAllocator(memory.NewGoAllocator()),
	)
	return newStreamReader("JSON", reader, file), nil
}

func readLines(r *bufio.Reader, n int) ([]byte, error) {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// jsonKind is the inferred type of a JSON field.
type jsonKind int

const (
	jsonNull jsonKind = iota
	jsonBool
	jsonInt
	jsonFloat
	jsonString
)

// InferJSONSchema infers an Arrow schema from newline-delimited JSON objects.
// Fields are ordered by first appearance. Integers widen to floats when both
// appear in a field; fields that are always null are read as strings.
func InferJSONSchema(r io.Reader) (*arrow.Schema, error) {
	var (
		names []string
		kinds = map[string]jsonKind{}
	)

	dec := json.NewDecoder(r)
	dec.UseNumber()
	for record := 1; ; record++ {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", record, err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("record %d: expected a JSON object", record)
		}

		for {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", record, err)
			}
			if d, ok := tok.(json.Delim); ok && d == '}' {
				break
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("record %d: expected a field name", record)
			}

			value, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", record, key, err)
			}
			kind, err := kindOf(value)
			if err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", record, key, err)
			}

			prev, seen := kinds[key]
			if !seen {
				names = append(names, key)
				kinds[key] = kind
				continue
			}
			merged, err := mergeKinds(prev, kind)
			if err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", record, key, err)
			}
			kinds[key] = merged
		}
	}

	if len(names) == 0 {
		return nil, errors.New("no JSON objects found")
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrowTypeOf(kinds[name]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func kindOf(v any) (jsonKind, error) {
	switch x := v.(type) {
	case nil:
		return jsonNull, nil
	case bool:
		return jsonBool, nil
	case json.Number:
		if strings.ContainsAny(x.String(), ".eE") {
			return jsonFloat, nil
		}
		if _, err := x.Int64(); err != nil {
			return jsonFloat, nil
		}
		return jsonInt, nil
	case string:
		return jsonString, nil
	case json.Delim:
		return jsonNull, errors.New("nested JSON values are not supported")
	default:
		return jsonNull, fmt.Errorf("unexpected JSON token %v", v)
	}
}

func mergeKinds(a, b jsonKind) (jsonKind, error) {
	switch {
	case a == b:
		return a, nil
	case a == jsonNull:
		return b, nil
	case b == jsonNull:
		return a, nil
	case (a == jsonInt && b == jsonFloat) || (a == jsonFloat && b == jsonInt):
		return jsonFloat, nil
	default:
		return jsonNull, fmt.Errorf("conflicting value types")
	}
}

func arrowTypeOf(k jsonKind) arrow.DataType {
	switch k {
	case jsonBool:
		return arrow.FixedWidthTypes.Boolean
	case jsonInt:
		return arrow.PrimitiveTypes.Int64
	case jsonFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}
