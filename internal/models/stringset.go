/**
 * @description
 * Postgres array/JSON scalar types shared by the forensic schemas: StringSet
 * for address/tx-hash sets stored as TEXT[], and JSONMap for opaque
 * detector-specific detail payloads stored as JSON text.
 *
 * @dependencies
 * - standard "database/sql/driver"
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringSet is a helper type to handle string arrays in Postgres (TEXT[]).
// It is used for the address and transaction-hash sets carried on Evidence
// and Alert rows.
type StringSet []string

// Scan implements the sql.Scanner interface.
func (a *StringSet) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return a.parsePostgresArray(string(v))
	case string:
		return a.parsePostgresArray(v)
	default:
		return errors.New("type assertion failed for StringSet")
	}
}

func (a *StringSet) parsePostgresArray(s string) error {
	if s == "{}" || s == "" {
		*a = []string{}
		return nil
	}

	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		*a = []string{}
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			part = part[1 : len(part)-1]
		}
		result = append(result, part)
	}
	*a = result
	return nil
}

// Value implements the driver.Valuer interface.
func (a StringSet) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}

	quoted := make([]string, len(a))
	for i, v := range a {
		if strings.ContainsAny(v, `,"\{} `) {
			escaped := strings.ReplaceAll(v, `\`, `\\`)
			escaped = strings.ReplaceAll(escaped, `"`, `\"`)
			quoted[i] = `"` + escaped + `"`
		} else {
			quoted[i] = v
		}
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}

// JSONMap holds opaque, detector-specific key/value details persisted as JSON text.
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion failed for JSONMap")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Value implements the driver.Valuer interface.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
