package expression

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Truthy applies JavaScript truthiness: nil, false, 0, NaN and "" are false;
// everything else, including empty maps and slices, is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case uint:
		return t != 0
	case uint64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// ToString renders a value the way a text binding displays it. nil renders
// as the empty string and composite values as JSON.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToFloat converts numeric-ish values, reporting whether conversion worked.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// classList turns a class expression result into class -> enabled.
func classList(v any) map[string]bool {
	out := make(map[string]bool)
	switch t := v.(type) {
	case nil:
	case string:
		for _, c := range strings.Fields(t) {
			out[c] = true
		}
	case map[string]any:
		for k, val := range t {
			for _, c := range strings.Fields(k) {
				out[c] = Truthy(val)
			}
		}
	case map[string]bool:
		for k, val := range t {
			out[k] = val
		}
	case []any:
		for _, item := range t {
			for c, on := range classList(item) {
				out[c] = on || out[c]
			}
		}
	case []string:
		for _, c := range t {
			out[c] = true
		}
	}
	return out
}

// styleList turns a style expression result into property -> value. An empty
// value means the property should be removed.
func styleList(v any) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case nil:
	case string:
		for _, decl := range strings.Split(t, ";") {
			prop, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			out[kebab(strings.TrimSpace(prop))] = strings.TrimSpace(val)
		}
	case map[string]any:
		for k, val := range t {
			if val == nil || val == false {
				out[kebab(k)] = ""
				continue
			}
			out[kebab(k)] = ToString(val)
		}
	case map[string]string:
		for k, val := range t {
			out[kebab(k)] = val
		}
	}
	return out
}

// kebab converts camelCase style keys (backgroundColor) to CSS properties.
func kebab(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteByte(c + ('a' - 'A'))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
