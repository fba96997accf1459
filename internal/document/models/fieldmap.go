package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	dErrors "docucred/pkg/domain-errors"
)

// Known identity fields, in serialization order.
const (
	FieldName    = "name"
	FieldDOB     = "dob"
	FieldAge     = "age"
	FieldGender  = "gender"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"
)

var knownFields = []string{FieldName, FieldDOB, FieldAge, FieldGender, FieldEmail, FieldPhone, FieldAddress}

// FieldMap holds recognized or claimed identity fields. Known fields are
// optional strings; unknown keys are kept verbatim and written after the
// known ones in lexical order.
type FieldMap struct {
	Name    *string
	DOB     *string
	Age     *string
	Gender  *string
	Email   *string
	Phone   *string
	Address *string

	Extra map[string]json.RawMessage
}

func (m *FieldMap) slot(key string) **string {
	switch key {
	case FieldName:
		return &m.Name
	case FieldDOB:
		return &m.DOB
	case FieldAge:
		return &m.Age
	case FieldGender:
		return &m.Gender
	case FieldEmail:
		return &m.Email
	case FieldPhone:
		return &m.Phone
	case FieldAddress:
		return &m.Address
	}
	return nil
}

// Get returns a known field's value.
func (m *FieldMap) Get(key string) (string, bool) {
	p := m.slot(key)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Set assigns a known field. It reports false for unknown keys.
func (m *FieldMap) Set(key, value string) bool {
	p := m.slot(key)
	if p == nil {
		return false
	}
	v := value
	*p = &v
	return true
}

// Len counts set known fields plus extra keys.
func (m *FieldMap) Len() int {
	n := len(m.Extra)
	for _, key := range knownFields {
		if _, ok := m.Get(key); ok {
			n++
		}
	}
	return n
}

func (m *FieldMap) IsEmpty() bool {
	return m == nil || m.Len() == 0
}

func (m FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		return nil
	}

	for _, key := range knownFields {
		v, ok := m.Get(key)
		if !ok {
			continue
		}
		if err := writeKey(key); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}

	extraKeys := make([]string, 0, len(m.Extra))
	for key := range m.Extra {
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		if err := writeKey(key); err != nil {
			return nil, err
		}
		raw := m.Extra[key]
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, err
		}
		buf.Write(compact.Bytes())
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON requires a JSON object. Known keys take strings; numbers and
// booleans are kept as their literal text (so "age": 34 becomes "34"); null
// leaves the field unset. Objects or arrays under a known key are rejected.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return dErrors.New(dErrors.CodeValidation, "fields must be a JSON object")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "fields must be a JSON object")
	}

	*m = FieldMap{}
	for key, value := range raw {
		if m.slot(key) == nil {
			if m.Extra == nil {
				m.Extra = make(map[string]json.RawMessage)
			}
			m.Extra[key] = append(json.RawMessage(nil), value...)
			continue
		}
		text, set, err := scalarText(value)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "field "+strconv.Quote(key)+" must be a string")
		}
		if set {
			m.Set(key, text)
		}
	}
	return nil
}

func scalarText(value json.RawMessage) (text string, set bool, err error) {
	v := bytes.TrimSpace(value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return "", false, nil
	}
	switch v[0] {
	case '"':
		if err := json.Unmarshal(v, &text); err != nil {
			return "", false, err
		}
		return text, true, nil
	case '{', '[':
		return "", false, dErrors.New(dErrors.CodeValidation, "not a scalar")
	default:
		// numbers, true, false
		var probe any
		if err := json.Unmarshal(v, &probe); err != nil {
			return "", false, err
		}
		return string(v), true, nil
	}
}

// ParseFieldMap decodes a serialized FieldMap.
func ParseFieldMap(text string) (*FieldMap, error) {
	var m FieldMap
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "fields must be a JSON object")
	}
	return &m, nil
}

// Serialize returns the canonical JSON text stored in cache entries.
func (m *FieldMap) Serialize() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "serialize fields")
	}
	return string(b), nil
}
