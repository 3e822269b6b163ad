// Package captcha implements the arithmetic challenge shown on the login form.
package captcha

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Operand bounds, inclusive.
const (
	MinOperand = 1
	MaxOperand = 10
)

// Challenge asks the user for the sum of two small integers.
type Challenge struct {
	A, B int
}

// New returns a fresh random challenge.
func New() Challenge {
	return Challenge{
		A: operand(),
		B: operand(),
	}
}

func operand() int {
	return MinOperand + rand.IntN(MaxOperand-MinOperand+1) //nolint:gosec // not for crypto
}

// Answer is the expected response to the challenge.
func (c Challenge) Answer() int {
	return c.A + c.B
}

// Question is the prompt rendered to the user.
func (c Challenge) Question() string {
	return fmt.Sprintf("%d + %d", c.A, c.B)
}

// Check reports whether submitted answers a challenge whose expected sum is
// expected. ok is false when no challenge was issued, in which case nothing
// matches.
func Check(expected int, ok bool, submitted string) bool {
	if !ok {
		return false
	}
	answer, err := strconv.Atoi(strings.TrimSpace(submitted))
	return err == nil && answer == expected
}
