package indicator

import "math"

// RollingMean returns the trailing mean over window readings.
// A position is defined only when the window is full and every reading in it is present.
func RollingMean(xs []Value, window int) []Value {
	return rolling(xs, window, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingMin returns the trailing minimum over window readings
func RollingMin(xs []Value, window int) []Value {
	return rolling(xs, window, func(w []float64) float64 {
		m := math.Inf(1)
		for _, v := range w {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// Shift moves readings forward by n positions; the first n become missing
func Shift(xs []Value, n int) []Value {
	out := make([]Value, len(xs))
	for i := range xs {
		if i-n >= 0 && i-n < len(xs) {
			out[i] = xs[i-n]
		}
	}
	return out
}

func rolling(xs []Value, window int, agg func([]float64) float64) []Value {
	out := make([]Value, len(xs))
	if window <= 0 {
		return out
	}

	buf := make([]float64, 0, window)
	for i := window - 1; i < len(xs); i++ {
		buf = buf[:0]
		for _, x := range xs[i-window+1 : i+1] {
			v, ok := x.Get()
			if !ok {
				break
			}
			buf = append(buf, v)
		}
		if len(buf) == window {
			out[i] = Some(agg(buf))
		}
	}
	return out
}
