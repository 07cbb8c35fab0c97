// Package params implements the compiler's parameter table (spec §4.7):
// an append-only ordered map from placeholder name to value, populated
// as constants are encountered during IR building and SQL translation.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/model"
	"github.com/shopspring/decimal"
)

// Param is one registered, named parameter slot.
type Param struct {
	Name  string
	Value interface{}
	Type  string
}

// Table is the parameter table for one compile call. Not safe for
// concurrent use; a compile call owns one Table (spec §5).
type Table struct {
	order   []string
	byName  map[string]Param
	counter int
}

// NewTable returns an empty parameter table.
func NewTable() *Table {
	return &Table{byName: make(map[string]Param)}
}

// CreateParameter renders value as SQL-ready text. Numbers and booleans
// are inlined with no parameter slot; strings and non-empty arrays
// register a named, typed placeholder. op adjusts string rendering for
// contains/ncontains (LIKE) filters, which wrap the value in `%...%` at
// parameter-creation time.
func (t *Table) CreateParameter(value interface{}, op model.FilterOp) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case float64:
		return decimal.NewFromFloat(v).String(), nil
	case string:
		text := v
		if op == model.OpContains || op == model.OpNContains {
			text = "%" + text + "%"
		}
		return t.register(text, "String"), nil
	case []interface{}:
		if len(v) == 0 {
			return "[]", nil
		}
		elemType, err := arrayElementType(v)
		if err != nil {
			return "", err
		}
		return t.register(v, fmt.Sprintf("Array(%s)", elemType)), nil
	default:
		return "", fmt.Errorf("params: unsupported constant type %T", value)
	}
}

func arrayElementType(v []interface{}) (string, error) {
	var kind string
	for _, e := range v {
		var this string
		switch e.(type) {
		case float64:
			this = "Float64"
		case string:
			this = "String"
		case bool:
			this = "Boolean"
		default:
			return "", &errs.MixedTypeArray{}
		}
		if kind == "" {
			kind = this
		} else if kind != this {
			return "", &errs.MixedTypeArray{}
		}
	}
	return kind, nil
}

func (t *Table) register(value interface{}, typ string) string {
	t.counter++
	name := fmt.Sprintf("param_%d", t.counter)
	t.byName[name] = Param{Name: name, Value: value, Type: typ}
	t.order = append(t.order, name)
	return fmt.Sprintf("{%s: %s}", name, typ)
}

// Restore re-registers a parameter already known by name and value,
// preserving call order. Used when reconstructing a Table from a cached
// compile result (spec §B), where only the rendered SQL and the
// name/value pairs survive round-tripping through the cache, not the
// original ClickHouse type annotation.
func (t *Table) Restore(name string, value interface{}) {
	if _, exists := t.byName[name]; exists {
		return
	}
	t.byName[name] = Param{Name: name, Value: value}
	t.order = append(t.order, name)
}

// Ordered returns the registered parameters in insertion order.
func (t *Table) Ordered() []Param {
	out := make([]Param, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// AsMap returns the registered parameters keyed by placeholder name.
// Prefer MarshalJSON (or Ordered, for display) where insertion order
// must be preserved; Go map iteration order is not stable.
func (t *Table) AsMap() map[string]interface{} {
	out := make(map[string]interface{}, len(t.order))
	for _, name := range t.order {
		out[name] = t.byName[name].Value
	}
	return out
}

// MarshalJSON renders the table as a JSON object with keys in insertion
// order, since encoding/json's map marshaling does not guarantee order
// and the parameters map must preserve it (spec §6).
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(t.byName[name].Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
