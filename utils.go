package boundplot

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

func Filter[T any](slice []T, predicate func(T) bool) []T {
	filtered := make([]T, 0, len(slice))
	for _, elem := range slice {
		if predicate(elem) {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

func Min[T Number](a T, b T) T {
	if a > b {
		return b
	}

	return a
}

func Max[T Number](a T, b T) T {
	if a < b {
		return b
	}

	return a
}

// Clamp limits v to [lo, hi].
func Clamp[T Number](v, lo, hi T) T {
	return Max(lo, Min(v, hi))
}

// Map applies f to every element of slice.
func Map[T any, U any](slice []T, f func(T) U) []U {
	out := make([]U, len(slice))
	for i, elem := range slice {
		out[i] = f(elem)
	}
	return out
}
