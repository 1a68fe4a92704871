package cfg

import (
	"fmt"
	"time"
)

// Platform holds the remote smart-home platform API configuration.
type Platform struct {
	BaseURL        string
	Email          string
	Password       string
	RequestTimeout time.Duration
}

func (p Platform) validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("platform base url env var is missing")
	}
	if p.Email == "" {
		return fmt.Errorf("platform email env var is missing")
	}
	if p.Password == "" {
		return fmt.Errorf("platform password env var is missing")
	}
	if p.RequestTimeout == 0 {
		return fmt.Errorf("platform request timeout env var is missing")
	}
	return nil
}
