package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrOutOfResource is returned when an intermediate paging table, an address-space identifier, or a
// physical page could not be obtained. It is the only error an operation reports after rolling back
// its partial work; every other failure is a programming error and panics.
var ErrOutOfResource error = errors.New("out of resource")

// ErrAddressSpaceIDsExhausted is returned when every address-space identifier is in use
var ErrAddressSpaceIDsExhausted error = cerrors.Mark(errors.New("no address-space identifiers available"), ErrOutOfResource)
