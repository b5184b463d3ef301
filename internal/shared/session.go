package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenMissing is returned when a request carries no bearer token.
var ErrTokenMissing = NewError(KindPermission, "TOKEN_MISSING", "authentication token missing")

// ErrTokenInvalid is returned for unknown or expired tokens.
var ErrTokenInvalid = NewError(KindPermission, "TOKEN_INVALID", "authentication token invalid or expired")

// TokenStore keeps opaque bearer tokens in Redis, mapping them to operators.
// Keys are an HMAC of the token so a dump of Redis does not reveal live tokens.
type TokenStore struct {
	client *redis.Client
	prefix string
	secret []byte
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, prefix, secret string, ttl time.Duration) *TokenStore {
	if prefix == "" {
		prefix = "parkyard_token"
	}
	return &TokenStore{client: client, prefix: prefix, secret: []byte(secret), ttl: ttl}
}

// Issue creates a token for the operator.
func (ts *TokenStore) Issue(ctx context.Context, op Operator) (string, time.Time, error) {
	token := uuid.NewString()
	data, err := json.Marshal(op)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := ts.client.Set(ctx, ts.redisKey(token), data, ts.ttl).Err(); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(ts.ttl), nil
}

// Lookup resolves a token, sliding its expiry.
func (ts *TokenStore) Lookup(ctx context.Context, token string) (Operator, error) {
	if token == "" {
		return Operator{}, ErrTokenMissing
	}
	payload, err := ts.client.GetEx(ctx, ts.redisKey(token), ts.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Operator{}, ErrTokenInvalid
		}
		return Operator{}, err
	}
	var op Operator
	if err := json.Unmarshal(payload, &op); err != nil {
		return Operator{}, err
	}
	return op, nil
}

// Revoke deletes a token.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := ts.client.Del(ctx, ts.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (ts *TokenStore) TTL() time.Duration {
	return ts.ttl
}

func (ts *TokenStore) redisKey(token string) string {
	mac := hmac.New(sha256.New, ts.secret)
	mac.Write([]byte(token))
	return ts.prefix + ":" + hex.EncodeToString(mac.Sum(nil))
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
