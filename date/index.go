package date

import "iter"

// iterate returns an iterator over all unique, sorted dates from multiple sorted series of dates.
func iterate(series ...[]Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		indexes := make([]int, len(series))
		for {
			var (
				m     Date
				found bool
			)
			for i, index := range indexes {
				if index < len(series[i]) {
					if on := series[i][index]; !found || on.Before(m) {
						m, found = on, true
					}
				}
			}
			if !found {
				// All series have been consumed.
				return
			}
			for i, index := range indexes {
				if index < len(series[i]) && series[i][index] == m {
					indexes[i]++
				}
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Union returns the unique, sorted dates of all series.
func Union(series ...[]Date) []Date {
	var out []Date
	for d := range iterate(series...) {
		out = append(out, d)
	}
	return out
}
