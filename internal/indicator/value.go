package indicator

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is an indicator reading that may be missing
// 결측(None)은 0과 구분됨: 윈도우 부족, 0 분모, 결측 입력
type Value struct {
	v  float64
	ok bool
}

// Some wraps a present reading. NaN and ±Inf collapse to None.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, ok: true}
}

// None returns a missing reading
func None() Value {
	return Value{}
}

// Get returns the reading and whether it is present
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// Valid reports whether the reading is present
func (x Value) Valid() bool {
	return x.ok
}

// Or returns the reading, or fallback when missing
func (x Value) Or(fallback float64) float64 {
	if !x.ok {
		return fallback
	}
	return x.v
}

// String renders missing readings as "NaN" to match common tabular output
func (x Value) String() string {
	if !x.ok {
		return "NaN"
	}
	return strconv.FormatFloat(x.v, 'f', -1, 64)
}

// MarshalJSON encodes a missing reading as null
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}

// UnmarshalJSON accepts a number or null
func (x *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*x = None()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*x = Some(f)
	return nil
}

// PercentChange returns (next - base) / base * 100
func PercentChange(next, base Value) Value {
	n, ok1 := next.Get()
	b, ok2 := base.Get()
	if !ok1 || !ok2 || b == 0 {
		return None()
	}
	return Some((n - b) / b * 100)
}

// Ratio returns num / den, missing on a zero or missing denominator
func Ratio(num, den Value) Value {
	n, ok1 := num.Get()
	d, ok2 := den.Get()
	if !ok1 || !ok2 || d == 0 {
		return None()
	}
	return Some(n / d)
}
