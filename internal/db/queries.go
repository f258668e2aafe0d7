package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/uniclass/search-gateway/internal/models"
)

// Get* lookups return (nil, nil) when no row matches so callers can
// distinguish "not found" from a store failure.

func (db *DB) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	query := `
        SELECT id, name, slug, stripe_customer_id, stripe_subscription_id,
               plan_tier, subscription_status, sso_enabled, sso_provider, sso_domain,
               created_at, updated_at
        FROM tenants
        WHERE id = $1
    `
	return db.scanTenant(db.Pool.QueryRow(ctx, query, tenantID))
}

func (db *DB) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
        SELECT id, name, slug, stripe_customer_id, stripe_subscription_id,
               plan_tier, subscription_status, sso_enabled, sso_provider, sso_domain,
               created_at, updated_at
        FROM tenants
        WHERE slug = $1
    `
	return db.scanTenant(db.Pool.QueryRow(ctx, query, slug))
}

func (db *DB) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	query := `
        INSERT INTO tenants (id, name, slug, plan_tier, subscription_status, sso_enabled)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `

	return db.Pool.QueryRow(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.PlanTier,
		tenant.SubscriptionStatus,
		tenant.SSOEnabled,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
}

func (db *DB) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	query := `
        SELECT id, name, slug, stripe_customer_id, stripe_subscription_id,
               plan_tier, subscription_status, sso_enabled, sso_provider, sso_domain,
               created_at, updated_at
        FROM tenants
        ORDER BY created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := db.scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (db *DB) UpdateTenantSubscription(ctx context.Context, tenantID, planTier, status string) error {
	query := `
        UPDATE tenants
        SET plan_tier = $2, subscription_status = $3, updated_at = NOW()
        WHERE id = $1
    `

	_, err := db.Pool.Exec(ctx, query, tenantID, planTier, status)
	return err
}

func (db *DB) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	return err
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, tenant_id, email, password_hash, auth_provider, role, status, created_at, updated_at
        FROM users
        WHERE email = LOWER($1)
    `

	var user models.User
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.PasswordHash,
		&user.AuthProvider,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, tenant_id, email, password_hash, auth_provider, role, status)
        VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `

	return db.Pool.QueryRow(ctx, query,
		user.ID,
		user.TenantID,
		user.Email,
		user.PasswordHash,
		user.AuthProvider,
		user.Role,
		user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (db *DB) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	query := `
        INSERT INTO api_keys (id, tenant_id, user_id, name, key_hash, key_prefix,
                              scopes, rate_limit_override, expires_at, is_active)
        VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at
    `

	return db.Pool.QueryRow(ctx, query,
		key.ID,
		key.TenantID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		key.Scopes,
		key.RateLimitOverride,
		key.ExpiresAt,
		key.IsActive,
	).Scan(&key.CreatedAt)
}

// GetAPIKeyByHash does not filter on is_active: revoked keys are returned so
// validation can report "revoked" instead of "not found".
func (db *DB) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
        SELECT id, tenant_id, COALESCE(user_id::text, ''), name, key_hash, key_prefix, scopes,
               rate_limit_override, expires_at, last_used_at, is_active, created_at
        FROM api_keys
        WHERE key_hash = $1
    `
	return db.scanAPIKey(db.Pool.QueryRow(ctx, query, keyHash))
}

func (db *DB) ListAPIKeys(ctx context.Context, tenantID string) ([]*models.APIKey, error) {
	query := `
        SELECT id, tenant_id, COALESCE(user_id::text, ''), name, key_hash, key_prefix, scopes,
               rate_limit_override, expires_at, last_used_at, is_active, created_at
        FROM api_keys
        WHERE tenant_id = $1
        ORDER BY created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := db.scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (db *DB) TouchAPIKeyLastUsed(ctx context.Context, keyID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, keyID)
	return err
}

func (db *DB) RevokeAPIKey(ctx context.Context, keyID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1`, keyID)
	return err
}

// IncrementMonthlyUsage adds n queries to the tenant's bucket for the current
// UTC month. The upsert is atomic, so concurrent requests never lose counts.
func (db *DB) IncrementMonthlyUsage(ctx context.Context, tenantID string, n int) error {
	query := `
        INSERT INTO usage_counters (tenant_id, month, query_count)
        VALUES ($1, $2, $3)
        ON CONFLICT (tenant_id, month) DO UPDATE
        SET query_count = usage_counters.query_count + EXCLUDED.query_count
    `

	_, err := db.Pool.Exec(ctx, query, tenantID, monthStart(time.Now()), n)
	return err
}

func (db *DB) GetMonthlyUsage(ctx context.Context, tenantID string) (int, error) {
	query := `
        SELECT query_count FROM usage_counters
        WHERE tenant_id = $1 AND month = $2
    `

	var count int
	err := db.Pool.QueryRow(ctx, query, tenantID, monthStart(time.Now())).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (db *DB) LogUsage(ctx context.Context, entry *models.UsageLog) error {
	query := `
        INSERT INTO usage_logs (tenant_id, api_key_id, endpoint, query_count, cache_hit, latency_ms, status_code)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
    `

	_, err := db.Pool.Exec(ctx, query,
		entry.TenantID,
		entry.APIKeyID,
		entry.Endpoint,
		entry.QueryCount,
		entry.CacheHit,
		entry.LatencyMs,
		entry.StatusCode,
	)
	return err
}

func (db *DB) GetTenantAnalytics(ctx context.Context, tenantID string, from, to time.Time) (*models.UsageStats, error) {
	query := `
        SELECT endpoint, COUNT(*), COALESCE(SUM(query_count), 0),
               COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0),
               COALESCE(AVG(latency_ms), 0)
        FROM usage_logs
        WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3
        GROUP BY endpoint
    `

	rows, err := db.Pool.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.UsageStats{
		ByEndpoint:  make(map[string]int),
		PeriodStart: from,
		PeriodEnd:   to,
	}

	var cacheHits int
	var latencySum float64
	for rows.Next() {
		var endpoint string
		var requests, queries, hits int
		var avgLatency float64
		if err := rows.Scan(&endpoint, &requests, &queries, &hits, &avgLatency); err != nil {
			return nil, err
		}
		stats.TotalRequests += requests
		stats.TotalQueries += queries
		stats.ByEndpoint[endpoint] = queries
		cacheHits += hits
		latencySum += avgLatency * float64(requests)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(cacheHits) / float64(stats.TotalRequests)
		stats.AvgLatencyMs = latencySum / float64(stats.TotalRequests)
	}
	return stats, nil
}

func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanTenant(row rowScanner) (*models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&tenant.StripeCustomerID,
		&tenant.StripeSubscriptionID,
		&tenant.PlanTier,
		&tenant.SubscriptionStatus,
		&tenant.SSOEnabled,
		&tenant.SSOProvider,
		&tenant.SSODomain,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (db *DB) scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var key models.APIKey
	err := row.Scan(
		&key.ID,
		&key.TenantID,
		&key.UserID,
		&key.Name,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Scopes,
		&key.RateLimitOverride,
		&key.ExpiresAt,
		&key.LastUsedAt,
		&key.IsActive,
		&key.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}
