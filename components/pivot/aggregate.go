package pivot

// CellState keeps enough intermediate state to derive every aggregator and to
// merge cells up the hierarchy without approximating.
type CellState struct {
	Count    int
	Sum      float64
	Min      float64
	Max      float64
	Seeded   bool
	Distinct map[string]struct{}
}

// Observe folds one measure value into the state.
func (s *CellState) Observe(agg Aggregator, v any) {
	s.Count++
	switch agg {
	case AggCount:
		return
	case AggDistinct:
		if s.Distinct == nil {
			s.Distinct = map[string]struct{}{}
		}
		s.Distinct[stringify(v)] = struct{}{}
		return
	}
	n, ok := toNumber(v)
	if ok {
		s.Sum += n
	}
	if agg != AggMin && agg != AggMax {
		return
	}
	if !ok {
		return
	}
	if !s.Seeded {
		s.Min, s.Max, s.Seeded = n, n, true
		return
	}
	if n < s.Min {
		s.Min = n
	}
	if n > s.Max {
		s.Max = n
	}
}

// Merge combines another state into s.
func (s *CellState) Merge(other *CellState) {
	if other == nil {
		return
	}
	s.Count += other.Count
	s.Sum += other.Sum
	if other.Seeded {
		if !s.Seeded {
			s.Min, s.Max, s.Seeded = other.Min, other.Max, true
		} else {
			if other.Min < s.Min {
				s.Min = other.Min
			}
			if other.Max > s.Max {
				s.Max = other.Max
			}
		}
	}
	if len(other.Distinct) > 0 {
		if s.Distinct == nil {
			s.Distinct = make(map[string]struct{}, len(other.Distinct))
		}
		for k := range other.Distinct {
			s.Distinct[k] = struct{}{}
		}
	}
}

// Value derives the aggregate for the state.
func (s *CellState) Value(agg Aggregator) float64 {
	if s == nil {
		return 0
	}
	switch agg {
	case AggCount:
		return float64(s.Count)
	case AggAvg:
		if s.Count == 0 {
			return 0
		}
		return s.Sum / float64(s.Count)
	case AggMin:
		if !s.Seeded {
			return 0
		}
		return s.Min
	case AggMax:
		if !s.Seeded {
			return 0
		}
		return s.Max
	case AggDistinct:
		return float64(len(s.Distinct))
	default:
		return s.Sum
	}
}

// Empty reports whether no row contributed to the state.
func (s *CellState) Empty() bool {
	return s == nil || s.Count == 0
}
