package jsonutil

import (
	"encoding/json"
	"strconv"
)

// StringValue renders a decoded JSON scalar as its string form. Upstream
// systems are sloppy about types, so a business code may arrive as a number
// or boolean; payload maps decode numbers as float64, and integral values
// print without a fraction. Non-scalar values yield "".
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
