package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form JSONB column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, m)
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}

func scanJSON(src interface{}, dest interface{}) error {
	if src == nil {
		return nil
	}
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
