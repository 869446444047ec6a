package conv

import (
	"encoding/json"
	"strings"
)

// AsStrings converts a space separated string or a list into a string slice.
func AsStrings(value interface{}) []string {
	switch actual := value.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(actual)
	case []string:
		return actual
	case []interface{}:
		ret := make([]string, 0, len(actual))
		for _, item := range actual {
			if s, ok := item.(string); ok && s != "" {
				ret = append(ret, s)
			}
		}
		return ret
	}
	return nil
}

// AsInt64 coerces numeric JSON values into int64.
func AsInt64(value interface{}) (int64, bool) {
	switch actual := value.(type) {
	case int:
		return int64(actual), true
	case int32:
		return int64(actual), true
	case int64:
		return actual, true
	case float32:
		return int64(actual), true
	case float64:
		return int64(actual), true
	case json.Number:
		v, err := actual.Int64()
		if err != nil {
			f, ferr := actual.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return v, true
	}
	return 0, false
}
