package search

import (
	"fmt"
	"time"
)

// Filter represents a metadata filter that can be applied to search results
type Filter interface {
	// Match returns true if the given metadata passes the filter
	Match(metadata map[string]interface{}) bool
}

// FilterOperator defines the type of filter operation
type FilterOperator string

const (
	OpEquals      FilterOperator = "eq"  // Equals
	OpNotEquals   FilterOperator = "ne"  // Not equals
	OpGreaterThan FilterOperator = "gt"  // Greater than
	OpLessThan    FilterOperator = "lt"  // Less than
	OpGreaterOrEq FilterOperator = "gte" // Greater than or equal
	OpLessOrEq    FilterOperator = "lte" // Less than or equal
	OpRange       FilterOperator = "range"
	OpExists      FilterOperator = "exists"
)

// ComparisonFilter filters based on field comparison
type ComparisonFilter struct {
	Field    string
	Operator FilterOperator
	Value    interface{}
}

// Match implements Filter interface
func (f *ComparisonFilter) Match(metadata map[string]interface{}) bool {
	fieldValue, exists := metadata[f.Field]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return equals(fieldValue, f.Value)

	case OpNotEquals:
		return !equals(fieldValue, f.Value)

	case OpGreaterThan:
		return compare(fieldValue, f.Value) > 0

	case OpLessThan:
		return compare(fieldValue, f.Value) < 0

	case OpGreaterOrEq:
		cmp := compare(fieldValue, f.Value)
		return cmp > 0 || cmp == 0

	case OpLessOrEq:
		cmp := compare(fieldValue, f.Value)
		return cmp < 0 || cmp == 0

	case OpExists:
		return exists

	default:
		return false
	}
}

// RangeFilter filters based on numeric range
type RangeFilter struct {
	Field string
	Min   interface{} // Minimum value (inclusive)
	Max   interface{} // Maximum value (inclusive)
}

// Match implements Filter interface
func (f *RangeFilter) Match(metadata map[string]interface{}) bool {
	fieldValue, exists := metadata[f.Field]
	if !exists {
		return false
	}

	if f.Min != nil && compare(fieldValue, f.Min) < 0 {
		return false
	}
	if f.Max != nil && compare(fieldValue, f.Max) > 0 {
		return false
	}
	return true
}

// ExistsFilter checks if a field exists in metadata
type ExistsFilter struct {
	Field  string
	Exists bool // If false, checks that field does NOT exist
}

// Match implements Filter interface
func (f *ExistsFilter) Match(metadata map[string]interface{}) bool {
	_, exists := metadata[f.Field]
	if f.Exists {
		return exists
	}
	return !exists
}

// Helper functions

// equals compares two values for equality
func equals(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}

	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return av == bv
		}
		return av == int(toFloat64(b))

	case float64:
		return av == toFloat64(b)

	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}

	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}

	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	}

	return false
}

// compare returns -1 if a < b, 0 if a == b, 1 if a > b
func compare(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	aNum := toFloat64(a)
	bNum := toFloat64(b)

	if aNum < bNum {
		return -1
	}
	if aNum > bNum {
		return 1
	}
	return 0
}

// toFloat64 converts various numeric types to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return 0
	}
}

// Builder functions for convenient filter creation

// Eq creates an equality filter
func Eq(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpEquals, Value: value}
}

// Ne creates a not-equals filter
func Ne(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpNotEquals, Value: value}
}

// Gt creates a greater-than filter
func Gt(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpGreaterThan, Value: value}
}

// Lt creates a less-than filter
func Lt(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpLessThan, Value: value}
}

// Gte creates a greater-than-or-equal filter
func Gte(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpGreaterOrEq, Value: value}
}

// Lte creates a less-than-or-equal filter
func Lte(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpLessOrEq, Value: value}
}

// Range creates a range filter
func Range(field string, min, max interface{}) Filter {
	return &RangeFilter{Field: field, Min: min, Max: max}
}

// Exists creates an exists filter
func Exists(field string) Filter {
	return &ExistsFilter{Field: field, Exists: true}
}

// NotExists creates a not-exists filter
func NotExists(field string) Filter {
	return &ExistsFilter{Field: field, Exists: false}
}

// FilterBuilder provides a fluent interface for building simple filters
type FilterBuilder struct {
	filter Filter
	err    error
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Equals sets the builder's filter to an equality condition,
// replacing any condition set earlier
func (fb *FilterBuilder) Equals(field string, value interface{}) *FilterBuilder {
	fb.filter = Eq(field, value)
	return fb
}

// GreaterThan sets the builder's filter to a greater-than condition,
// replacing any condition set earlier
func (fb *FilterBuilder) GreaterThan(field string, value interface{}) *FilterBuilder {
	fb.filter = Gt(field, value)
	return fb
}

// Build returns the constructed filter
func (fb *FilterBuilder) Build() (Filter, error) {
	if fb.err != nil {
		return nil, fb.err
	}
	if fb.filter == nil {
		return nil, fmt.Errorf("no filter conditions specified")
	}
	return fb.filter, nil
}
