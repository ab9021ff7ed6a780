package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// DevVerifier accepts "role:subject" bearer values. It is only wired when the
// service runs on the memory driver without a signing key.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (ports.AuthClaims, error) {
	role, subject, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok || strings.TrimSpace(subject) == "" || strings.TrimSpace(role) == "" {
		return ports.AuthClaims{}, errors.New("dev token must look like role:subject")
	}
	return ports.AuthClaims{
		SubjectID: strings.TrimSpace(subject),
		Role:      strings.ToLower(strings.TrimSpace(role)),
	}, nil
}

var _ ports.TokenVerifier = DevVerifier{}
