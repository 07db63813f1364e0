package store

import "strings"

// Field is one column of an identity tuple.
type Field struct {
	Column string
	Value  interface{}
}

// Tuple is a conjunction of null-safe equality checks: a NULL value matches
// only a NULL column and a non-NULL value matches only an equal one.
type Tuple []Field

// Where renders the tuple as a WHERE clause body with ? placeholders and
// returns the arguments in the same order.
func (t Tuple) Where(d Dialect) (string, []interface{}) {
	parts := make([]string, len(t))
	args := make([]interface{}, len(t))
	for i, f := range t {
		parts[i] = d.NullSafeEq(f.Column)
		args[i] = argValue(f.Value)
	}
	return strings.Join(parts, " AND "), args
}

// argValue dereferences nullable pointers so that a nil pointer binds as NULL.
func argValue(v interface{}) interface{} {
	switch p := v.(type) {
	case *int64:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *string:
		if p == nil {
			return nil
		}
		return *p
	default:
		return v
	}
}
