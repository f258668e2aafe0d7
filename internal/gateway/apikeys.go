package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

const keyWarning = "Save this key! It will not be shown again."

// APIKeyRequest is the decoded body of an API key management call.
type APIKeyRequest struct {
	Action            string     `json:"action"`
	Name              string     `json:"name,omitempty"`
	KeyID             string     `json:"key_id,omitempty"`
	Scopes            []string   `json:"scopes,omitempty"`
	RateLimitOverride *int       `json:"rate_limit_override,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// HandleAPIKeyAction dispatches key management. The legacy shared secret
// authenticates search traffic but has no key records to manage, and with
// no database there is no key store at all.
func (s *Service) HandleAPIKeyAction(ctx context.Context, req *APIKeyRequest, tenant *models.Tenant) (any, *Error) {
	if s.keys == nil {
		return nil, NewError(CodeServiceUnavailable, "API key management requires a database")
	}

	switch req.Action {
	case "create":
		name := req.Name
		if name == "" {
			name = "API key"
		}
		raw, key, err := s.keys.CreateKey(ctx, tenant.ID, "", name, req.Scopes, req.RateLimitOverride, req.ExpiresAt)
		if err != nil {
			log.Printf("Failed to create API key for tenant %s: %v", tenant.ID, err)
			return nil, NewError(CodeCreateFailed, "Failed to create API key").WithDetail("reason", err.Error())
		}
		return map[string]any{
			"key":        raw,
			"id":         key.ID,
			"name":       key.Name,
			"prefix":     key.KeyPrefix,
			"scopes":     key.Scopes,
			"created_at": key.CreatedAt,
			"warning":    keyWarning,
		}, nil

	case "list":
		keys, err := s.keys.ListKeys(ctx, tenant.ID)
		if err != nil {
			log.Printf("Failed to list API keys for tenant %s: %v", tenant.ID, err)
			return nil, NewError(CodeListFailed, "Failed to list API keys").WithDetail("reason", err.Error())
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		return map[string]any{"keys": keys, "count": len(keys)}, nil

	case "revoke":
		if req.KeyID == "" {
			return nil, NewError(CodeMissingParam, "Missing 'key_id'")
		}
		found, err := s.keys.RevokeKey(ctx, req.KeyID, tenant.ID)
		if err != nil {
			log.Printf("Failed to revoke API key %s: %v", req.KeyID, err)
			return nil, NewError(CodeRevokeFailed, "Failed to revoke API key").WithDetail("reason", err.Error())
		}
		if !found {
			return nil, NewError(CodeNotFound, "API key not found")
		}
		return map[string]any{"status": "revoked", "key_id": req.KeyID}, nil

	case "rotate":
		if req.KeyID == "" {
			return nil, NewError(CodeMissingParam, "Missing 'key_id'")
		}
		raw, key, err := s.keys.RotateKey(ctx, req.KeyID, tenant.ID, "")
		if err != nil {
			log.Printf("Failed to rotate API key %s: %v", req.KeyID, err)
			return nil, NewError(CodeRotateFailed, "Failed to rotate API key").WithDetail("reason", err.Error())
		}
		if key == nil {
			return nil, NewError(CodeNotFound, "API key not found")
		}
		return map[string]any{
			"key":     raw,
			"id":      key.ID,
			"name":    key.Name,
			"prefix":  key.KeyPrefix,
			"warning": keyWarning,
		}, nil

	default:
		return nil, NewError(CodeInvalidAction, fmt.Sprintf("Unknown action: %s", req.Action))
	}
}
