package ledger

// Progress summarizes how much of a dataset has been evaluated.
type Progress struct {
	Done     int     `json:"done"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

// ComputeProgress counts the evaluated ids that belong to allRows.
func ComputeProgress(allRows, evaluated []int) Progress {
	seen := toSet(evaluated)
	done := 0
	for _, id := range allRows {
		if _, ok := seen[id]; ok {
			done++
		}
	}
	p := Progress{Done: done, Total: len(allRows)}
	if p.Total > 0 {
		p.Fraction = float64(p.Done) / float64(p.Total)
	}
	return p
}

// Unreviewed returns the ids of allRows with no evaluation, in allRows order.
func Unreviewed(allRows, evaluated []int) []int {
	seen := toSet(evaluated)
	out := []int{}
	for _, id := range allRows {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// NextUnreviewed picks the smallest unreviewed id greater than current,
// wrapping to the first unreviewed row. ok is false when every row is done.
func NextUnreviewed(allRows, evaluated []int, current int) (next int, ok bool) {
	pending := Unreviewed(allRows, evaluated)
	if len(pending) == 0 {
		return 0, false
	}
	found := false
	for _, id := range pending {
		if id > current && (!found || id < next) {
			next, found = id, true
		}
	}
	if found {
		return next, true
	}
	return pending[0], true
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
