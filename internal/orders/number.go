package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	orderNumberPrefix = "CM"
	orderNumberDigits = 8
)

// GenerateOrderNumber produces a customer-facing order reference of the form
// CM followed by eight random digits. Uniqueness is enforced by the database;
// callers retry on collision.
func GenerateOrderNumber() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < orderNumberDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("%s%0*d", orderNumberPrefix, orderNumberDigits, n), nil
}
