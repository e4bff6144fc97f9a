package ppc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultMinClicks is the data sufficiency volume threshold: decisions made
// on fewer clicks than this are statistically unreliable.
const DefaultMinClicks = 20

// Derived is a computed value that may be undefined. An undefined value
// carries an error wrapping ErrInsufficientData and is never reported as zero.
type Derived struct {
	Value float64
	Err   error
}

// Defined wraps a computed value.
func Defined(v float64) Derived {
	return Derived{Value: v}
}

// Undefined returns a Derived whose Err explains why field has no value.
func Undefined(field, reason string) Derived {
	return Derived{Err: InsufficientData(field, reason)}
}

// Ok reports whether the value was computed.
func (d Derived) Ok() bool {
	return d.Err == nil
}

// Get returns the value and its error.
func (d Derived) Get() (float64, error) {
	return d.Value, d.Err
}

// MarshalJSON encodes an undefined value as null.
func (d Derived) MarshalJSON() ([]byte, error) {
	if d.Err != nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}

// Cause returns the FieldError explaining an undefined value, or nil.
func (d Derived) Cause() *FieldError {
	var fe *FieldError
	if errors.As(d.Err, &fe) {
		return fe
	}
	return nil
}

// UnmarshalJSON restores a value encoded by MarshalJSON. null carries no
// cause, so it decodes to a placeholder error that the enclosing type
// replaces through Restore.
func (d *Derived) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Undefined("value", "not recorded")
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = Defined(v)
	return nil
}

// Restore replaces the error of an undefined value with cause, or with a
// generic one naming field when cause is nil. Defined values are unchanged.
func (d *Derived) Restore(field string, cause *FieldError) {
	if d.Err == nil {
		return
	}
	if cause == nil {
		cause = &FieldError{Field: field, Reason: "not recorded"}
	}
	d.Err = &FieldError{Field: cause.Field, Reason: cause.Reason}
}

func (d Derived) String() string {
	if d.Err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", d.Value)
}

// AdvisoryCode identifies the kind of advisory attached to a result.
type AdvisoryCode string

// AdvisoryInsufficientSampleSize lowers confidence in an otherwise valid
// result. It is not an error.
const AdvisoryInsufficientSampleSize AdvisoryCode = "insufficient_sample_size"

// Advisory is a non-fatal note attached to a result.
type Advisory struct {
	Code    AdvisoryCode `json:"code"`
	Message string       `json:"message"`
}

// SampleSizeAdvisory describes a volume below the sufficiency threshold.
func SampleSizeAdvisory(have, need float64, unit string) Advisory {
	return Advisory{
		Code:    AdvisoryInsufficientSampleSize,
		Message: fmt.Sprintf("only %g %s (need %g); treat this result with reduced confidence", have, unit, need),
	}
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
