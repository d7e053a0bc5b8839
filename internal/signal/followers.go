package signal

import (
	"strconv"
	"strings"
)

// Follower is one parsed entry of a followers summary string.
type Follower struct {
	Symbol      string
	Correlation float64
}

// ParseFollowers parses a summary like "ETH(0.91); SOL(-0.76)" back
// into entries. Malformed entries are skipped without failing the
// whole string; an empty or fully malformed input yields nil.
func ParseFollowers(list string) []Follower {
	var out []Follower
	for _, part := range strings.Split(list, ";") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}

		open := strings.IndexByte(entry, '(')
		if open <= 0 || !strings.HasSuffix(entry, ")") {
			continue
		}
		symbol := strings.TrimSpace(entry[:open])
		corr, err := strconv.ParseFloat(entry[open+1:len(entry)-1], 64)
		if err != nil || symbol == "" {
			continue
		}
		out = append(out, Follower{Symbol: symbol, Correlation: corr})
	}
	return out
}
