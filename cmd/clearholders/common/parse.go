package common

import "strings"

// ParseBases parses a comma-separated list of device designators (the form
// every clearholders subcommand accepts for its positional bases argument),
// filtering out blank entries.
func ParseBases(raw string) []string {
	bases := make([]string, 0)
	for _, split := range strings.Split(raw, ",") {
		split = strings.TrimSpace(split)
		if split != "" {
			bases = append(bases, split)
		}
	}
	return bases
}
