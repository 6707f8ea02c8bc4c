package mangle

import (
	"fmt"
	"os"
	"path/filepath"
)

// AsSources converts rules from a knowledge base to program sources.
//
// The rules can be a string (the program), a list of strings, or a
// list of maps with either a "source" or a "file" property.  Files
// are relative to dir.
func AsSources(rules interface{}, dir string) ([]string, error) {
	switch vv := rules.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{vv}, nil
	case []string:
		return vv, nil
	case []interface{}:
		acc := make([]string, 0, len(vv))
		for i, x := range vv {
			src, err := asSource(x, dir)
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", i, err)
			}
			acc = append(acc, src)
		}
		return acc, nil
	default:
		src, err := asSource(rules, dir)
		if err != nil {
			return nil, err
		}
		return []string{src}, nil
	}
}

func asSource(x interface{}, dir string) (string, error) {
	switch vv := x.(type) {
	case string:
		return vv, nil
	case map[string]interface{}:
		if src, is := vv["source"].(string); is {
			return src, nil
		}
		if file, is := vv["file"].(string); is {
			bs, err := os.ReadFile(filepath.Join(dir, file))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		}
		return "", fmt.Errorf("no source or file")
	default:
		return "", fmt.Errorf("bad Mangle source (%T)", x)
	}
}
