package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uniclass/search-gateway/internal/models"
)

// API key format: uc_{environment}_{random}
// Example: uc_live_a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6
const (
	KeyPrefixLive = "uc_live_"
	KeyPrefixTest = "uc_test_"

	keyRandomBytes = 32 // url-safe encoded to 43 chars
	displayPrefix  = 12 // chars of the raw key kept for identification
)

// Validation failures. The messages are returned to the caller verbatim.
var (
	ErrBadKeyFormat   = errors.New("invalid API key format")
	ErrWrongKeyEnv    = errors.New("test key used in production")
	ErrWrongKeyEnvDev = errors.New("live key used in test environment")
	ErrKeyNotFound    = errors.New("invalid API key")
	ErrKeyRevoked     = errors.New("API key has been revoked")
	ErrKeyExpired     = errors.New("API key has expired")
	ErrTenantNotFound = errors.New("tenant not found")
)

// KeyStore is the slice of the repository the key service needs.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID string) ([]*models.APIKey, error)
	TouchAPIKeyLastUsed(ctx context.Context, keyID string) error
	RevokeAPIKey(ctx context.Context, keyID string) error
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
}

// KeyService generates, validates and manages tenant API keys.
type KeyService struct {
	store      KeyStore
	prefix     string
	production bool
}

func NewKeyService(store KeyStore, production bool) *KeyService {
	prefix := KeyPrefixTest
	if production {
		prefix = KeyPrefixLive
	}
	return &KeyService{store: store, prefix: prefix, production: production}
}

// HashKey returns the sha256 hex digest stored in place of the raw key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// GenerateKey mints a raw key plus the digest and display prefix to persist.
// The raw key is shown to the caller once and never stored.
func (s *KeyService) GenerateKey() (fullKey, keyHash, keyPrefix string, err error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", err
	}

	fullKey = s.prefix + base64.RawURLEncoding.EncodeToString(buf)
	return fullKey, HashKey(fullKey), fullKey[:displayPrefix], nil
}

func (s *KeyService) CreateKey(
	ctx context.Context,
	tenantID, userID, name string,
	scopes []string,
	rateLimitOverride *int,
	expiresAt *time.Time,
) (string, *models.APIKey, error) {
	fullKey, keyHash, keyPrefix, err := s.GenerateKey()
	if err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}

	if len(scopes) == 0 {
		scopes = []string{"search"}
	}

	key := &models.APIKey{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		UserID:            userID,
		Name:              name,
		KeyHash:           keyHash,
		KeyPrefix:         keyPrefix,
		Scopes:            scopes,
		RateLimitOverride: rateLimitOverride,
		ExpiresAt:         expiresAt,
		IsActive:          true,
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}
	return fullKey, key, nil
}

// ValidateKey is the authentication path for API requests. It resolves the
// raw key to an active tenant or reports why the key is unusable.
func (s *KeyService) ValidateKey(ctx context.Context, rawKey string) (*models.Tenant, *models.APIKey, error) {
	if !strings.HasPrefix(rawKey, KeyPrefixLive) && !strings.HasPrefix(rawKey, KeyPrefixTest) {
		return nil, nil, ErrBadKeyFormat
	}

	if s.production && strings.HasPrefix(rawKey, KeyPrefixTest) {
		return nil, nil, ErrWrongKeyEnv
	}
	if !s.production && strings.HasPrefix(rawKey, KeyPrefixLive) {
		return nil, nil, ErrWrongKeyEnvDev
	}

	key, err := s.store.GetAPIKeyByHash(ctx, HashKey(rawKey))
	if err != nil {
		return nil, nil, fmt.Errorf("key lookup: %w", err)
	}
	if key == nil {
		return nil, nil, ErrKeyNotFound
	}
	if !key.IsActive {
		return nil, nil, ErrKeyRevoked
	}
	if key.IsExpired() {
		return nil, nil, ErrKeyExpired
	}

	tenant, err := s.store.GetTenant(ctx, key.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if tenant == nil {
		return nil, nil, ErrTenantNotFound
	}
	if !tenant.Billable() {
		return nil, nil, fmt.Errorf("subscription %s, please update payment", tenant.SubscriptionStatus)
	}

	// Best-effort; a lost touch never fails the request.
	go func(keyID string) {
		if err := s.store.TouchAPIKeyLastUsed(context.Background(), keyID); err != nil {
			log.Printf("Failed to touch last_used_at for key %s: %v", keyID, err)
		}
	}(key.ID)

	return tenant, key, nil
}

func (s *KeyService) ListKeys(ctx context.Context, tenantID string) ([]*models.APIKey, error) {
	return s.store.ListAPIKeys(ctx, tenantID)
}

// RevokeKey deactivates a key. Returns false when the key does not exist or
// belongs to another tenant.
func (s *KeyService) RevokeKey(ctx context.Context, keyID, tenantID string) (bool, error) {
	key, err := s.findTenantKey(ctx, keyID, tenantID)
	if err != nil || key == nil {
		return false, err
	}

	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		return false, err
	}
	return true, nil
}

// RotateKey revokes a key and recreates it with identical scopes, override
// and expiry. Returns ("", nil, nil) when the key is not the tenant's.
func (s *KeyService) RotateKey(ctx context.Context, keyID, tenantID, userID string) (string, *models.APIKey, error) {
	old, err := s.findTenantKey(ctx, keyID, tenantID)
	if err != nil || old == nil {
		return "", nil, err
	}

	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		return "", nil, err
	}

	return s.CreateKey(ctx, tenantID, userID, old.Name+" (rotated)", old.Scopes, old.RateLimitOverride, old.ExpiresAt)
}

func (s *KeyService) findTenantKey(ctx context.Context, keyID, tenantID string) (*models.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if key.ID == keyID {
			return key, nil
		}
	}
	return nil, nil
}

// ExtractBearer pulls the credential out of an Authorization header.
// Accepts both "Bearer <key>" and a bare "<key>".
func ExtractBearer(authorization string) string {
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	return strings.TrimSpace(authorization)
}
