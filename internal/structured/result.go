package structured

import "maps"

// Result holds validated field values. String fields are string, integer
// fields int64, number fields float64 and boolean fields bool.
type Result struct {
	values map[string]any
}

// NewResult builds a Result from already-validated values.
func NewResult(values map[string]any) Result {
	return Result{values: maps.Clone(values)}
}

// Has reports whether the field was set.
func (r Result) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

func (r Result) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

func (r Result) Int(name string) int64 {
	n, _ := r.values[name].(int64)
	return n
}

func (r Result) Float(name string) float64 {
	f, _ := r.values[name].(float64)
	return f
}

func (r Result) Bool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

// Values returns a copy of every field value.
func (r Result) Values() map[string]any {
	return maps.Clone(r.values)
}
