package app_test

import (
	"context"
	"errors"
	"testing"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/transport"
)

type crowdedRegistry struct {
	taken  int
	claims []string
}

func (r *crowdedRegistry) Claim(_ context.Context, code, _ string) error {
	r.claims = append(r.claims, code)
	if len(r.claims) <= r.taken {
		return domain.ErrCodeTaken
	}
	return nil
}

func (r *crowdedRegistry) Resolve(context.Context, string) (string, error) {
	return "", domain.ErrCodeNotFound
}

func (r *crowdedRegistry) Release(context.Context, string) error { return nil }

func TestClaimSessionCodeRetriesCollisions(t *testing.T) {
	reg := &crowdedRegistry{taken: 2}
	code, err := app.ClaimSessionCode(context.Background(), reg, "http://host", 5)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(reg.claims) != 3 || code != reg.claims[2] || len(code) != transport.CodeLength {
		t.Fatalf("unexpected claims %v -> %q", reg.claims, code)
	}

	reg = &crowdedRegistry{taken: 10}
	if _, err := app.ClaimSessionCode(context.Background(), reg, "http://host", 3); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
}
