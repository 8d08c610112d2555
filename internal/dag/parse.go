// Package dag builds and schedules the ticket dependency graph. It is pure
// computation: parsing the dependency spec, validating the graph, and
// partitioning it into execution waves. No I/O happens here.
package dag

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDeps parses a dependency spec string into a child -> parents map.
//
// The format is comma-separated "child:parent" pairs: "197:200,198:197"
// means ticket 197 depends on 200 and ticket 198 depends on 197. Whitespace
// around tokens is ignored. Entries without a colon are skipped, treated as
// "no dependency declared". Repeated entries for the same child accumulate
// in spec order. Empty input yields an empty map.
func ParseDeps(spec string) (map[int][]int, error) {
	deps := make(map[int][]int)
	if strings.TrimSpace(spec) == "" {
		return deps, nil
	}

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if !strings.Contains(pair, ":") {
			continue
		}

		childStr, parentStr, _ := strings.Cut(pair, ":")
		child, err := strconv.Atoi(strings.TrimSpace(childStr))
		if err != nil {
			return nil, fmt.Errorf("invalid ticket in dependency pair %q: %w", pair, err)
		}
		parent, err := strconv.Atoi(strings.TrimSpace(parentStr))
		if err != nil {
			return nil, fmt.Errorf("invalid ticket in dependency pair %q: %w", pair, err)
		}

		deps[child] = append(deps[child], parent)
	}

	return deps, nil
}
