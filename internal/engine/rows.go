package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/schema"
)

// ParseRows decodes a list of objects into rows of rt. JSON is used when
// the document starts with '['; otherwise it is read as YAML. Keys must name
// fields of rt; missing fields take their type's default.
func ParseRows(data []byte, rt *schema.RecordType) ([]schema.Row, error) {
	var items []map[string]any
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("parse rows JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &items); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse rows YAML: %w", err)
	}
	return coerce.RowsFromMaps(rt, items)
}

// LoadRows reads rows of rt from a file. "-" reads standard input.
func LoadRows(path string, rt *schema.RecordType) ([]schema.Row, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", path, err)
	}
	return ParseRows(data, rt)
}
