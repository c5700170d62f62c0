package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Identity is the authenticated caller behind a request.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Admin   bool   `json:"admin"`
}

// Verifier turns a bearer token into an Identity or rejects it.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

/* Extracts the token from an "Authorization: Bearer <token>" header. */
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

/*
DevVerifier trusts the token itself: "<subject>" or "<subject>:admin".
Only meant for local runs against the in-memory store.
*/
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (Identity, error) {
	subject, role, _ := strings.Cut(strings.TrimSpace(token), ":")
	if subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		Subject: subject,
		Email:   subject + "@dev.local",
		Name:    subject,
		Admin:   role == "admin",
	}, nil
}

// StaticVerifier accepts a fixed set of tokens loaded from a JSON object of token to identity.
type StaticVerifier struct {
	identities map[string]Identity
}

func NewStaticVerifier(identities map[string]Identity) *StaticVerifier {
	return &StaticVerifier{identities: identities}
}

func LoadStaticVerifier(path string) (*StaticVerifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tokens file: %w", err)
	}

	identities := map[string]Identity{}
	if err := json.Unmarshal(raw, &identities); err != nil {
		return nil, fmt.Errorf("decoding tokens file: %w", err)
	}
	for token, id := range identities {
		if id.Subject == "" {
			return nil, fmt.Errorf("tokens file: identity for token %.4s... has no sub", token)
		}
	}
	return NewStaticVerifier(identities), nil
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
