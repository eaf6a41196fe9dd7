package profile

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Values is a profile criterion. An empty criterion matches any value,
// otherwise it matches exactly the values it lists. In YAML it may be written
// as a single scalar or as a sequence.
type Values []string

// NewValues builds a criterion, dropping blank entries. A criterion with
// nothing left is empty and matches anything.
func NewValues(in ...string) Values {
	var out Values
	for _, value := range in {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return errors.Wrap(err, "decoding profile value")
		}
		*v = NewValues(single)
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return errors.Wrap(err, "decoding profile values")
		}
		*v = NewValues(values...)
		return nil
	default:
		return errors.Errorf("profile values must be a string or a list of strings, not YAML kind %d", node.Kind)
	}
}

// ValuesDecodeHook decodes criteria from untyped data the same way as from
// YAML: a scalar stands for a single value and blank entries are dropped.
func ValuesDecodeHook() mapstructure.DecodeHookFuncType {
	valuesType := reflect.TypeOf(Values{})
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != valuesType {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			return NewValues(value), nil
		case []string:
			return NewValues(value...), nil
		case []interface{}:
			values := make([]string, 0, len(value))
			for _, item := range value {
				str, ok := item.(string)
				if !ok {
					return data, nil
				}
				values = append(values, str)
			}
			return NewValues(values...), nil
		default:
			return data, nil
		}
	}
}

// Matches reports whether the value satisfies the criterion.
func (v Values) Matches(value string) bool {
	if len(v) == 0 {
		return true
	}
	for _, allowed := range v {
		if allowed == value {
			return true
		}
	}
	return false
}

func (v Values) String() string {
	if len(v) == 0 {
		return "*"
	}
	return strings.Join(v, ",")
}

// Criteria are the filter fields of a profile.
type Criteria struct {
	HostNames Values
	TaskTypes Values
	TaskNames Values
}

// Context is what a profile is matched against.
type Context struct {
	HostName string
	TaskType string
	TaskName string
}

func (c Criteria) Matches(ctx Context) bool {
	return c.HostNames.Matches(ctx.HostName) &&
		c.TaskTypes.Matches(ctx.TaskType) &&
		c.TaskNames.Matches(ctx.TaskName)
}

// Filterable is implemented by settings profiles.
type Filterable interface {
	FilterCriteria() Criteria
}

// Filter returns the first profile that matches the context. The boolean is
// false when the list is empty or nothing matches, which is not an error.
func Filter[T Filterable](profiles []T, ctx Context) (T, bool) {
	idx := Index(profiles, ctx)
	if idx < 0 {
		var zero T
		return zero, false
	}
	return profiles[idx], true
}

// Index returns the position of the first matching profile, or -1.
func Index[T Filterable](profiles []T, ctx Context) int {
	for idx := range profiles {
		if profiles[idx].FilterCriteria().Matches(ctx) {
			return idx
		}
	}
	return -1
}
