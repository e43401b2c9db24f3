package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T constraints.Unsigned](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}

func AlignDown[T constraints.Unsigned](value T, alignment T) T {
	return value &^ (alignment - 1)
}

func IsAligned[T constraints.Unsigned](value T, alignment T) bool {
	return value&(alignment-1) == 0
}

// Alignment returns the largest power of two that value is aligned to. Zero is reported as zero.
func Alignment[T constraints.Unsigned](value T) T {
	return value & -value
}
