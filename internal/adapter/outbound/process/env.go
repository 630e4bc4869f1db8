package process

import (
	"sort"
	"strings"
)

// MergeEnv merges overrides into a parent environment.
// Parent entries whose name is overridden are replaced in place; overrides
// not present in the parent are appended in name order.
func MergeEnv(parentEnv []string, overrides map[string]string) []string {
	result := make([]string, 0, len(parentEnv)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, v := range parentEnv {
		if idx := strings.IndexByte(v, '='); idx >= 0 {
			name := v[:idx]
			if value, ok := overrides[name]; ok {
				if !seen[name] {
					result = append(result, name+"="+value)
					seen[name] = true
				}
				continue
			}
		}
		result = append(result, v)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		result = append(result, name+"="+overrides[name])
	}
	return result
}
