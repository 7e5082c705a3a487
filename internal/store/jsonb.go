package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBStringArray handles string arrays stored in JSONB columns
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (j JSONBStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal([]string(j))
}

// Scan implements the sql.Scanner interface
func (j *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBStringArray", value)
	}

	var arr []string
	if err := json.Unmarshal(bytes, &arr); err != nil {
		return err
	}
	*j = JSONBStringArray(arr)
	return nil
}

// JSONBMap handles generic JSONB objects
type JSONBMap map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONBMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// Scan implements the sql.Scanner interface
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(bytes, &data); err != nil {
		return err
	}
	*j = JSONBMap(data)
	return nil
}

// JSONBRaw stores an opaque JSON document without interpreting it. Used for
// questionnaire payloads and execution plans whose shape belongs to other
// packages.
type JSONBRaw json.RawMessage

// Value implements the driver.Valuer interface
func (j JSONBRaw) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONBRaw) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONBRaw(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBRaw", value)
	}
	return nil
}

// MarshalJSON passes the raw document through.
func (j JSONBRaw) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON stores the raw document.
func (j *JSONBRaw) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
