package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/querysql"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// catalogField is the stored form of one record field.
type catalogField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// marshalFields converts a record type to its catalog JSON.
func marshalFields(rt *schema.RecordType) (string, error) {
	fields := make([]catalogField, len(rt.Fields))
	for i, f := range rt.Fields {
		fields[i] = catalogField{Name: f.Name, Type: f.Type.Name()}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields rebuilds a record type from its catalog JSON.
func unmarshalFields(record, data string) (*schema.RecordType, error) {
	var stored []catalogField
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	fields := make([]schema.Field, len(stored))
	for i, f := range stored {
		t, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields[i] = schema.Field{Name: f.Name, Type: t}
	}
	return schema.NewRecordType(record, fields...)
}

// columnType returns the SQLite column declaration for a scalar type.
// Dates and instants are declared TEXT, not DATE, so the driver hands back
// the stored text unchanged.
func columnType(t schema.Type) (string, error) {
	var decl string
	switch t.Underlying().Kind {
	case value.KindBool, value.KindInt:
		decl = "INTEGER"
	case value.KindFloat:
		decl = "REAL"
	case value.KindString, value.KindDate, value.KindTime:
		decl = "TEXT"
	default:
		return "", fmt.Errorf("type %s cannot be stored in a column", t.Name())
	}
	if !t.Nullable {
		decl += " NOT NULL"
	}
	return decl, nil
}

// createTableSQL renders the DDL for rt's table.
func createTableSQL(name string, rt *schema.RecordType) (string, error) {
	cols := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		decl, err := columnType(f.Type)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		cols[i] = querysql.QuoteIdent(f.Name) + " " + decl
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", querysql.QuoteIdent(name), strings.Join(cols, ", ")), nil
}

// marshalRow converts a row to statement parameters in field order.
func marshalRow(row schema.Row) ([]any, error) {
	params := make([]any, row.Len())
	for i := range params {
		p, err := querysql.Param(row.At(i))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", row.Type().Fields[i].Name, err)
		}
		params[i] = p
	}
	return params, nil
}

// unmarshalValue converts a scanned column to a value of t.
func unmarshalValue(raw any, t schema.Type) (value.Value, error) {
	return coerce.Native(raw, t)
}
