// control/loader.go
// Author: momentics <momentics@gmail.com>
//
// TOML settings loader. Nested tables flatten into dotted keys so that
//
//	[std]
//	maxcon = 25
//	[std.connectionfilter]
//	id = "cidr"
//	allow = ["10.0.0.0/8", "127.0.0.1"]
//
// yields "std.maxcon" = "25" and "std.connectionfilter.allow" =
// "10.0.0.0/8,127.0.0.1".

package control

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadSettingsFile reads and flattens a TOML settings file.
func LoadSettingsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	values, err := DecodeSettings(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", path, err)
	}
	return values, nil
}

// DecodeSettings flattens a TOML document into dotted string keys.
func DecodeSettings(doc string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.Decode(doc, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, scalar(item))
			}
			out[key] = strings.Join(items, ",")
		default:
			out[key] = scalar(val)
		}
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
