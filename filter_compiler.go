package tenantstore

// Compile expands composite filter groups into the disjunctive set of
// AND-only conjunctions the provider can execute.
//
// The overall predicate is the conjunction of all supplied groups. A
// GroupAll group contributes every one of its filters to every emitted
// conjunction; it does not branch. A GroupEither group branches: each
// emitted conjunction picks exactly one of its filters. The result is the
// Cartesian product across GroupEither groups, so m such groups of sizes
// n1..nm yield n1*...*nm conjunctions.
//
// Zero input groups yield zero conjunctions; "match everything" is the
// caller's case to special-case. The expansion assumes the predicate is a
// conjunction of (conjunctions|disjunctions); predicates outside that
// shape are not expressible through this compiler.
//
// Output order is deterministic for a fixed input (group-major,
// filter-minor), but callers must not rely on any particular order.
func (m *ColumnMapping) Compile(groups []CompositeFilter) ([]Conjunction, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	var constant Conjunction
	var branching [][]PropertyFilter

	for _, group := range groups {
		compiled, err := m.compileGroup(group)
		if err != nil {
			return nil, err
		}
		if len(compiled) == 0 {
			continue
		}
		switch group.Op {
		case GroupAll:
			constant = append(constant, compiled...)
		case GroupEither:
			branching = append(branching, compiled)
		default:
			return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
				"operator": group.Op,
				"reason":   "unknown group operator",
			})
		}
	}

	if len(branching) == 0 {
		if len(constant) == 0 {
			return nil, nil
		}
		return []Conjunction{constant}, nil
	}

	picks := make([]int, len(branching))
	total := 1
	for _, alternatives := range branching {
		total *= len(alternatives)
	}

	out := make([]Conjunction, 0, total)
	for {
		conjunction := make(Conjunction, 0, len(constant)+len(branching))
		conjunction = append(conjunction, constant...)
		for g, pick := range picks {
			conjunction = append(conjunction, branching[g][pick])
		}
		out = append(out, conjunction)

		// Advance the pick vector like an odometer, last group fastest.
		g := len(picks) - 1
		for g >= 0 {
			picks[g]++
			if picks[g] < len(branching[g]) {
				break
			}
			picks[g] = 0
			g--
		}
		if g < 0 {
			return out, nil
		}
	}
}

// compileGroup converts one group's column filters to provider terms.
// A column value converting to the null marker is a legitimate filter
// (equality to null), not an error.
func (m *ColumnMapping) compileGroup(group CompositeFilter) ([]PropertyFilter, error) {
	compiled := make([]PropertyFilter, 0, len(group.Filters))
	for _, f := range group.Filters {
		value, err := m.Convert(f.Value)
		if err != nil {
			return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
				"column": f.Column,
				"reason": err.Error(),
			})
		}
		compiled = append(compiled, PropertyFilter{
			Property: f.Column,
			Op:       f.Op,
			Value:    value,
		})
	}
	return compiled, nil
}
