package tenantstore

// Operator is a column comparison operator supported by the provider's
// structured queries.
type Operator int

const (
	OpEqual Operator = iota
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
)

// String returns the provider-facing operator symbol
func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	}
	return "?"
}

// ColumnFilter is one comparison over a named column. The value is the
// in-memory column value; conversion to the provider representation
// happens at compile time.
type ColumnFilter struct {
	Column string
	Op     Operator
	Value  interface{}
}

// Eq builds an equality filter
func Eq(column string, value interface{}) ColumnFilter {
	return ColumnFilter{Column: column, Op: OpEqual, Value: value}
}

// Gt builds a greater-than filter
func Gt(column string, value interface{}) ColumnFilter {
	return ColumnFilter{Column: column, Op: OpGreater, Value: value}
}

// Ge builds a greater-or-equal filter
func Ge(column string, value interface{}) ColumnFilter {
	return ColumnFilter{Column: column, Op: OpGreaterOrEqual, Value: value}
}

// Lt builds a less-than filter
func Lt(column string, value interface{}) ColumnFilter {
	return ColumnFilter{Column: column, Op: OpLess, Value: value}
}

// Le builds a less-or-equal filter
func Le(column string, value interface{}) ColumnFilter {
	return ColumnFilter{Column: column, Op: OpLessOrEqual, Value: value}
}

// GroupOperator combines the filters of one composite parameter
type GroupOperator int

const (
	// GroupAll requires every filter in the group to hold (conjunction)
	GroupAll GroupOperator = iota
	// GroupEither requires at least one filter to hold (disjunction)
	GroupEither
)

// CompositeFilter is a group of column filters combined by one Boolean
// operator. A query predicate is a list of such groups, ANDed together.
type CompositeFilter struct {
	Op      GroupOperator
	Filters []ColumnFilter
}

// All groups filters so that every one must hold
func All(filters ...ColumnFilter) CompositeFilter {
	return CompositeFilter{Op: GroupAll, Filters: filters}
}

// Either groups filters so that any one suffices
func Either(filters ...ColumnFilter) CompositeFilter {
	return CompositeFilter{Op: GroupEither, Filters: filters}
}

// PropertyFilter is one comparison in provider terms: property name,
// operator, and the converted provider value.
type PropertyFilter struct {
	Property string
	Op       Operator
	Value    Value
}

// Matches evaluates the filter against an entity's property bag.
// Used by providers that filter client side.
func (f PropertyFilter) Matches(e *Entity) bool {
	actual := e.Get(f.Property)
	switch f.Op {
	case OpEqual:
		return valuesEqual(actual, f.Value)
	case OpGreater:
		return comparable2(actual, f.Value) && compareValues(actual, f.Value) > 0
	case OpGreaterOrEqual:
		return comparable2(actual, f.Value) && compareValues(actual, f.Value) >= 0
	case OpLess:
		return comparable2(actual, f.Value) && compareValues(actual, f.Value) < 0
	case OpLessOrEqual:
		return comparable2(actual, f.Value) && compareValues(actual, f.Value) <= 0
	}
	return false
}

// comparable2 reports whether two values share an orderable rank.
// Inequality against a value of a different type never matches, which is
// how the provider treats mixed-type properties.
func comparable2(a, b Value) bool {
	return valueRank(a) == valueRank(b)
}

// Conjunction is a set of property filters ANDed together — the only
// predicate shape the provider's structured queries accept.
type Conjunction []PropertyFilter

// Matches evaluates the whole conjunction against an entity
func (c Conjunction) Matches(e *Entity) bool {
	for _, f := range c {
		if !f.Matches(e) {
			return false
		}
	}
	return true
}

// Order is one ordering directive of a query
type Order struct {
	Column     string
	Descending bool
}

// Asc builds an ascending order directive
func Asc(column string) Order {
	return Order{Column: column}
}

// Desc builds a descending order directive
func Desc(column string) Order {
	return Order{Column: column, Descending: true}
}
