package ports

type TokenClaims struct {
	SubjectID string
	Role      string
}

type TokenVerifier interface {
	Verify(token string) (TokenClaims, error)
}
