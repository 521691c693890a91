// Package auth issues and verifies the credentials that map an HTTP caller
// to an owner: HS256 bearer tokens and hashed API keys.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fintrack/internal/domain"
	"fintrack/internal/repo"
)

const apiKeyPrefix = "ft_"

// ErrUnauthenticated covers every rejected credential. Callers must not
// reveal which check failed.
var ErrUnauthenticated = errors.New("invalid credentials")

// Principal is the authenticated owner of a request.
type Principal struct {
	OwnerID int64
	Source  string
	KeyID   string
}

type Service struct {
	Repo   repo.Repo
	Secret string
	Now    func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SignToken mints a bearer token whose subject is the owner id.
func (s Service) SignToken(ownerID int64, ttl time.Duration) (string, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if ownerID == 0 {
		return "", errors.New("owner id required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(ownerID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "fintrack",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

// VerifyToken accepts only HS256 tokens with a numeric subject.
func (s Service) VerifyToken(token string) (Principal, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthenticated
	}
	owner, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || owner == 0 {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{OwnerID: owner, Source: "jwt"}, nil
}

// CreateAPIKey stores the hash of a fresh key and returns the plaintext
// once. It cannot be recovered later.
func (s Service) CreateAPIKey(ctx context.Context, ownerID int64, name string) (domain.APIKey, string, error) {
	if ownerID == 0 {
		return domain.APIKey{}, "", errors.New("owner id required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("store api key: %w", err)
	}
	return key, raw, nil
}

// ResolveAPIKey maps a plaintext key to its owner.
func (s Service) ResolveAPIKey(ctx context.Context, raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return Principal{}, ErrUnauthenticated
	}
	key, err := s.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(raw))
	if errors.Is(err, repo.ErrNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{OwnerID: key.OwnerID, Source: "api_key", KeyID: key.ID}, nil
}

func (s Service) ListAPIKeys(ctx context.Context, ownerID int64) ([]domain.APIKey, error) {
	return s.Repo.ListAPIKeys(ctx, ownerID)
}

func (s Service) RevokeAPIKey(ctx context.Context, id string) error {
	return s.Repo.DeleteAPIKey(ctx, id)
}
