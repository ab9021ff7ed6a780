package ports

import "context"

type AuthClaims struct {
	SubjectID string
	Email     string
	Role      string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (AuthClaims, error)
}
