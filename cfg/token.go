package cfg

import (
	"fmt"
)

// Token holds the key for signing and validating dashboard API tokens.
type Token struct {
	SigningKey string
}

func (t Token) validate() error {
	if t.SigningKey == "" {
		return fmt.Errorf("token signing key env var is missing")
	}
	return nil
}
