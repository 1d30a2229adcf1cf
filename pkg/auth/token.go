// Package auth provides request authenticators for the Canvas API.
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
)

// Token authenticates requests with a Canvas access token.
type Token struct {
	token string
}

// NewToken creates a bearer-token authenticator.
func NewToken(token string) (*Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty access token", errs.ErrInvalidArgument)
	}
	return &Token{token: token}, nil
}

// TokenFromFile reads an access token from a file. Surrounding whitespace is ignored.
func TokenFromFile(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	t, err := NewToken(string(data))
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}
	return t, nil
}

// AddAuth sets the Authorization header.
func (t *Token) AddAuth(headers http.Header) {
	headers.Set("Authorization", "Bearer "+t.token)
}

// String hides the token value.
func (t *Token) String() string {
	return "Token(***)"
}
