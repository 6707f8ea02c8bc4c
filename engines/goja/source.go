package goja

import (
	"errors"
	"fmt"
)

// parseRule looks into the given map to try to find "name", "doc",
// "requires", and "code" properties.
//
// Background: The YAML parser https://github.com/go-yaml/yaml will
// return map[interface{}]interface{}, which is correct but
// inconvenient.  So knowledge bases are parsed with a fork at
// https://github.com/jsccast/yaml, which will return
// map[string]interface{}.  However, AsRules supports
// map[interface{}]interface{} so that others don't need to use that
// fork.
func parseRule(vv map[string]interface{}) (r Rule, err error) {
	x := vv["code"]
	if s, is := x.(string); is {
		r.Code = s
	} else {
		err = errors.New("bad Goja rule code")
		return
	}

	if s, is := vv["name"].(string); is {
		r.Name = s
	}
	if s, is := vv["doc"].(string); is {
		r.Doc = s
	}

	switch vv := vv["requires"].(type) {
	case nil:
	case string:
		r.Requires = []string{vv}
	case []string:
		r.Requires = vv
	case []interface{}:
		r.Requires = make([]string, 0, len(vv))
		for _, x := range vv {
			switch vv := x.(type) {
			case string:
				r.Requires = append(r.Requires, vv)
			default:
				err = errors.New("bad library")
				return
			}
		}
	default:
		err = fmt.Errorf("bad requires (%T)", vv)
	}

	return
}

// AsRule converts a string (just code) or a map to a Rule.
func AsRule(src interface{}) (Rule, error) {
	switch vv := src.(type) {
	case string:
		return Rule{Code: vv}, nil
	case Rule:
		return vv, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{})
		for k, v := range vv {
			str, ok := k.(string)
			if !ok {
				return Rule{}, fmt.Errorf("bad rule key (%T)", k)
			}
			m[str] = v
		}
		return parseRule(m)
	case map[string]interface{}:
		return parseRule(vv)
	default:
		return Rule{}, fmt.Errorf("bad Goja rule (%T)", src)
	}
}

// AsRules converts a single rule or a list of them.
func AsRules(src interface{}) ([]Rule, error) {
	switch vv := src.(type) {
	case nil:
		return nil, nil
	case []Rule:
		return vv, nil
	case []interface{}:
		acc := make([]Rule, 0, len(vv))
		for i, x := range vv {
			r, err := AsRule(x)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			acc = append(acc, r)
		}
		return acc, nil
	default:
		r, err := AsRule(src)
		if err != nil {
			return nil, err
		}
		return []Rule{r}, nil
	}
}
