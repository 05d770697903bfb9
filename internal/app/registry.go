package app

import (
	"context"
	"errors"
	"fmt"

	"livequiz/internal/domain"
	"livequiz/internal/transport"
)

// CodeRegistry maps short session codes to the address players should dial.
type CodeRegistry interface {
	// Claim reserves code for addr, failing with domain.ErrCodeTaken when already held.
	Claim(ctx context.Context, code, addr string) error
	// Resolve returns the address for code or domain.ErrCodeNotFound.
	Resolve(ctx context.Context, code string) (string, error)
	Release(ctx context.Context, code string) error
}

const defaultClaimAttempts = 5

// ClaimSessionCode draws random codes until one can be claimed.
func ClaimSessionCode(ctx context.Context, reg CodeRegistry, addr string, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = defaultClaimAttempts
	}
	for i := 0; i < attempts; i++ {
		code, err := transport.NewSessionCode()
		if err != nil {
			return "", err
		}
		err = reg.Claim(ctx, code, addr)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrCodeTaken, attempts)
}
