package pivot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope limits where a custom column applies. It is either DatasourceScope
// (every table of the datasource) or TableScope (one table).
type Scope interface {
	scope()
}

// DatasourceScope applies to every table of the datasource.
type DatasourceScope struct{}

// TableScope applies to a single table.
type TableScope struct {
	Table string
}

func (DatasourceScope) scope() {}
func (TableScope) scope()      {}

var errInvalidScope = errors.New("pivot: invalid scope")

// ScopeApplies reports whether a scope covers the given source table.
func ScopeApplies(s Scope, table string) bool {
	switch v := s.(type) {
	case nil, DatasourceScope:
		return true
	case TableScope:
		return strings.EqualFold(strings.TrimSpace(v.Table), strings.TrimSpace(table))
	default:
		return false
	}
}

type scopeObject struct {
	Level string `json:"level" yaml:"level"`
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

func parseScopeString(raw string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "datasource":
		return DatasourceScope{}, nil
	case "table":
		return nil, fmt.Errorf("%w: table scope requires a table name", errInvalidScope)
	default:
		return nil, fmt.Errorf("%w: %q", errInvalidScope, raw)
	}
}

func scopeFromObject(obj scopeObject) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(obj.Level)) {
	case "", "datasource":
		if obj.Table != "" {
			return TableScope{Table: obj.Table}, nil
		}
		return DatasourceScope{}, nil
	case "table":
		if strings.TrimSpace(obj.Table) == "" {
			return nil, fmt.Errorf("%w: table scope requires a table name", errInvalidScope)
		}
		return TableScope{Table: obj.Table}, nil
	default:
		return nil, fmt.Errorf("%w: level %q", errInvalidScope, obj.Level)
	}
}

func scopeObjectOf(s Scope) scopeObject {
	if t, ok := s.(TableScope); ok {
		return scopeObject{Level: "table", Table: t.Table}
	}
	return scopeObject{Level: "datasource"}
}

// CustomColumn is a host-defined derived column requested from the query
// layer when its scope covers the query source.
type CustomColumn struct {
	Name       string
	Expression string
	Scope      Scope
}

type customColumnWire struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
	Scope      any    `json:"scope,omitempty" yaml:"scope,omitempty"`
}

func (c *CustomColumn) fromWire(w customColumnWire) error {
	c.Name = w.Name
	c.Expression = w.Expression
	switch raw := w.Scope.(type) {
	case nil:
		c.Scope = DatasourceScope{}
	case string:
		s, err := parseScopeString(raw)
		if err != nil {
			return err
		}
		c.Scope = s
	case map[string]any:
		obj := scopeObject{}
		obj.Level, _ = raw["level"].(string)
		obj.Table, _ = raw["table"].(string)
		s, err := scopeFromObject(obj)
		if err != nil {
			return err
		}
		c.Scope = s
	default:
		return fmt.Errorf("%w: unsupported type %T", errInvalidScope, raw)
	}
	return nil
}

// UnmarshalJSON accepts the scope as a string or a {level, table} object.
func (c *CustomColumn) UnmarshalJSON(data []byte) error {
	var w customColumnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return c.fromWire(w)
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (c *CustomColumn) UnmarshalYAML(node *yaml.Node) error {
	var w customColumnWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	return c.fromWire(w)
}

// MarshalJSON always writes the object form.
func (c CustomColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(customColumnWire{
		Name:       c.Name,
		Expression: c.Expression,
		Scope:      scopeObjectOf(c.Scope),
	})
}

// ColumnsInScope filters custom columns down to those covering table.
func ColumnsInScope(cols []CustomColumn, table string) []CustomColumn {
	var out []CustomColumn
	for _, col := range cols {
		if ScopeApplies(col.Scope, table) {
			out = append(out, col)
		}
	}
	return out
}
