package domain

import "fmt"

// Pair is one (parameter name, concrete value) assignment.
type Pair struct {
	Name  string
	Value Value
}

// Combination is one concrete assignment of a value to every declared
// parameter, in declaration order. It is always a full cross-product
// member; partial combinations are rejected at construction.
type Combination []Pair

// Registry holds the frozen, ordered domain set for one target function.
//
// Contract:
// - Concurrency: safe for concurrent reads after construction.
// - Domains are frozen at registration; later mutation of caller slices
//   does not affect the registry.
type Registry struct {
	domains []Domain
	size    int
}

// NewRegistry registers an ordered domain set. Parameter names must be
// unique. Each domain must itself be valid (non-empty, no duplicates);
// domains built through New/Strings/Ints already are, but hand-built
// Domain literals are re-validated here.
func NewRegistry(domains ...Domain) (*Registry, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no parameters declared", ErrUnregisterable)
	}
	names := make(map[string]bool, len(domains))
	frozen := make([]Domain, 0, len(domains))
	size := 1
	for _, d := range domains {
		checked, err := New(d.Name, d.Values...)
		if err != nil {
			return nil, err
		}
		if names[checked.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, checked.Name)
		}
		names[checked.Name] = true
		frozen = append(frozen, checked)
		size *= checked.Size()
	}
	return &Registry{domains: frozen, size: size}, nil
}

// Domains returns the frozen domain set in declaration order.
// The returned slice must not be modified.
func (r *Registry) Domains() []Domain {
	return r.domains
}

// Size returns the cardinality of the full combination space, i.e. the
// product of each domain's cardinality.
func (r *Registry) Size() int {
	return r.size
}

// Combination builds a validated Combination from values given in
// declaration order. It fails with ErrArityMismatch on the wrong number
// of values and ErrUnknownValue for a value outside its domain.
func (r *Registry) Combination(values ...Value) (Combination, error) {
	if len(values) != len(r.domains) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrArityMismatch, len(values), len(r.domains))
	}
	combo := make(Combination, len(values))
	for i, v := range values {
		d := r.domains[i]
		if !d.Contains(v) {
			return nil, fmt.Errorf("%w: parameter %q value %q", ErrUnknownValue, d.Name, v)
		}
		combo[i] = Pair{Name: d.Name, Value: v}
	}
	return combo, nil
}

// Combinations enumerates the full Cartesian product in declaration
// order: the last parameter varies fastest, matching nested-loop order.
func (r *Registry) Combinations() []Combination {
	combos := make([]Combination, 0, r.size)
	idx := make([]int, len(r.domains))
	for {
		combo := make(Combination, len(r.domains))
		for i, d := range r.domains {
			combo[i] = Pair{Name: d.Name, Value: d.Values[idx[i]]}
		}
		combos = append(combos, combo)

		// Advance the odometer from the rightmost position.
		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < r.domains[pos].Size() {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// Value returns the value assigned to the named parameter, or false if
// the combination has no such parameter.
func (c Combination) Value(name string) (Value, bool) {
	for _, p := range c {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
