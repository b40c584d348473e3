package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for domain registration and lookup.
var (
	ErrUnregisterable = errors.New("domain: parameter has no finite enumerable domain")
	ErrEmptyDomain    = errors.New("domain: domain has no values")
	ErrDuplicateValue = errors.New("domain: duplicate value in domain")
	ErrUnknownValue   = errors.New("domain: value not in domain")
	ErrArityMismatch  = errors.New("domain: wrong number of values for combination")
	ErrDuplicateName  = errors.New("domain: duplicate parameter name")
)

// Value is the canonical text encoding of one parameter value.
// Numeric values are encoded with strconv so that encoding is stable
// across serialization round-trips.
type Value string

// Domain is the finite ordered set of legal values for one parameter.
//
// Contract:
// - Values is non-empty and contains no duplicates.
// - Order is significant and preserved through enumeration.
// - Immutable after construction.
type Domain struct {
	Name   string
	Values []Value
}

// Strings builds a Domain from string values in declaration order.
func Strings(name string, values ...string) (Domain, error) {
	vs := make([]Value, len(values))
	for i, v := range values {
		vs[i] = Value(v)
	}
	return New(name, vs...)
}

// Ints builds a Domain from integer values in declaration order.
// Values are encoded in base 10.
func Ints(name string, values ...int) (Domain, error) {
	vs := make([]Value, len(values))
	for i, v := range values {
		vs[i] = Value(strconv.Itoa(v))
	}
	return New(name, vs...)
}

// New builds a Domain, validating the non-empty/no-duplicates invariant.
// An empty value set is unregisterable: there is nothing to enumerate.
func New(name string, values ...Value) (Domain, error) {
	if name == "" {
		return Domain{}, fmt.Errorf("%w: parameter name is empty", ErrUnregisterable)
	}
	if len(values) == 0 {
		return Domain{}, fmt.Errorf("%w: parameter %q", ErrEmptyDomain, name)
	}
	seen := make(map[Value]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return Domain{}, fmt.Errorf("%w: parameter %q value %q", ErrDuplicateValue, name, v)
		}
		seen[v] = true
	}
	vs := make([]Value, len(values))
	copy(vs, values)
	return Domain{Name: name, Values: vs}, nil
}

// MustNew is like New but panics on invalid input. Intended for
// package-level declarations of fixed domains.
func MustNew(name string, values ...Value) Domain {
	d, err := New(name, values...)
	if err != nil {
		panic(err)
	}
	return d
}

// Contains reports whether v is a member of the domain.
func (d Domain) Contains(v Value) bool {
	for _, dv := range d.Values {
		if dv == v {
			return true
		}
	}
	return false
}

// Size returns the domain's cardinality.
func (d Domain) Size() int {
	return len(d.Values)
}
