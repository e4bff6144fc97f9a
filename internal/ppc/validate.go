package ppc

import (
	"fmt"
	"math"
)

// Validator collects input problems so that every invalid field is reported
// together instead of stopping at the first one.
type Validator struct {
	problems []Problem
	rejected map[string]bool
}

func (v *Validator) add(field, reason string) {
	if v.rejected == nil {
		v.rejected = make(map[string]bool)
	}
	v.rejected[field] = true
	v.problems = append(v.problems, Problem{Field: field, Reason: reason})
}

// finite records a problem for NaN or infinite values. Later checks on the
// same field are skipped so each field reports one reason.
func (v *Validator) finite(field string, x float64) bool {
	if v.rejected[field] {
		return false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		v.add(field, "must be a finite number")
		return false
	}
	return true
}

// Finite requires x to be neither NaN nor infinite.
func (v *Validator) Finite(field string, x float64) {
	v.finite(field, x)
}

// NonNegative requires x >= 0.
func (v *Validator) NonNegative(field string, x float64) {
	if v.finite(field, x) && x < 0 {
		v.add(field, fmt.Sprintf("must not be negative (got %g)", x))
	}
}

// Positive requires x > 0.
func (v *Validator) Positive(field string, x float64) {
	if v.finite(field, x) && x <= 0 {
		v.add(field, fmt.Sprintf("must be positive (got %g)", x))
	}
}

// Fraction requires x in [0, 1].
func (v *Validator) Fraction(field string, x float64) {
	v.Range(field, x, 0, 1)
}

// Range requires lo <= x <= hi.
func (v *Validator) Range(field string, x, lo, hi float64) {
	if v.finite(field, x) && (x < lo || x > hi) {
		v.add(field, fmt.Sprintf("must be between %g and %g (got %g)", lo, hi, x))
	}
}

// OptionalNonNegative applies NonNegative when x is set.
func (v *Validator) OptionalNonNegative(field string, x *float64) {
	if x != nil {
		v.NonNegative(field, *x)
	}
}

// Check records reason for field when ok is false.
func (v *Validator) Check(ok bool, field, reason string) {
	if !ok && !v.rejected[field] {
		v.add(field, reason)
	}
}

// Err returns an *InvalidInputError listing every problem, or nil.
func (v *Validator) Err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &InvalidInputError{Problems: append([]Problem(nil), v.problems...)}
}
