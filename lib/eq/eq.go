/*
package eq is a simple package for telling whether two arrays are equal to
one another.
*/
package eq

// Generic returns true if two arrays are the same type and have the same values
// and false otherwise. Only []byte, []int, []int64, []string, []uint32,
// []uint64, []float32, []float64, [][3]float32, and [][3]float64 are
// supported.
func Generic(x, y interface{}) bool {
	switch xx := x.(type) {
	case []byte:
		return sameAs(xx, y)
	case []int:
		return sameAs(xx, y)
	case []int64:
		return sameAs(xx, y)
	case []string:
		return sameAs(xx, y)
	case []float32:
		return sameAs(xx, y)
	case []float64:
		return sameAs(xx, y)
	case []uint32:
		return sameAs(xx, y)
	case []uint64:
		return sameAs(xx, y)
	case [][3]float32:
		return sameAs(xx, y)
	case [][3]float64:
		return sameAs(xx, y)
	}
	return false
}

func sameAs[T comparable](x []T, y interface{}) bool {
	yy, ok := y.([]T)
	if !ok {
		return false
	}
	return Slices(x, yy)
}

// Slices returns true if two arrays have the same length and elements.
func Slices[T comparable](x, y []T) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Strings returns true if two []string arrays are the same and false otherwise.
func Strings(x, y []string) bool { return Slices(x, y) }

// Ints returns true if two []int arrays are the same and false otherwise.
func Ints(x, y []int) bool { return Slices(x, y) }

// Int64s returns true if two []int64 arrays are the same and false otherwise.
func Int64s(x, y []int64) bool { return Slices(x, y) }

// Float64s returns true if two []float64 arrays are the same and false
// otherwise.
func Float64s(x, y []float64) bool { return Slices(x, y) }

// Vec64s returns true if two [][3]float64 arrays are the same and false
// otherwise.
func Vec64s(x, y [][3]float64) bool { return Slices(x, y) }

// Float64sEps returns true if the two []float64 arrays are within eps of one
// another and false otherwise.
func Float64sEps(x, y []float64, eps float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i]+eps < y[i] || x[i]-eps > y[i] {
			return false
		}
	}
	return true
}

// Vec64Eps returns true if two vectors are within eps of one another in every
// component.
func Vec64Eps(x, y [3]float64, eps float64) bool {
	return Float64sEps(x[:], y[:], eps)
}
