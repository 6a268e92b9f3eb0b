package model

import "sort"

// Count is one row of a frequency table.
type Count struct {
	Label string `json:"label"`
	N     int    `json:"count"`
}

// Rank orders counts by N descending, then Label ascending.
func Rank(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	return out
}
