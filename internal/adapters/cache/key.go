package cache

import (
	"sort"
	"strings"
)

// Key builds a deterministic cache key from a namespace and a parameter
// set. Parameter names are sorted before joining so that two logically
// identical queries hash to the same key regardless of map iteration or
// construction order.
func Key(namespace string, params map[string]string) string {
	if len(params) == 0 {
		return namespace
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(namespace)
	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}
