package models

import "time"

// Plan tiers, lowest to highest.
const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// ValidPlanTier reports whether tier is one of the known plans.
func ValidPlanTier(tier string) bool {
	switch tier {
	case PlanFree, PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// Subscription statuses. past_due and canceled tenants fail authentication.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

type Tenant struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Slug                 string    `json:"slug"`
	StripeCustomerID     *string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id,omitempty"`
	PlanTier             string    `json:"plan_tier"`
	SubscriptionStatus   string    `json:"subscription_status"`
	SSOEnabled           bool      `json:"sso_enabled"`
	SSOProvider          *string   `json:"sso_provider,omitempty"`
	SSODomain            *string   `json:"sso_domain,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Billable returns false when the subscription no longer admits API traffic.
func (t *Tenant) Billable() bool {
	return t.SubscriptionStatus != StatusPastDue && t.SubscriptionStatus != StatusCanceled
}

type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AuthProvider string    `json:"auth_provider"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIKey holds the persisted form of a key. The raw key is never stored;
// only its sha256 digest and a short display prefix survive creation.
type APIKey struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	KeyHash           string     `json:"-"`
	KeyPrefix         string     `json:"prefix"`
	Scopes            []string   `json:"scopes"`
	RateLimitOverride *int       `json:"rate_limit_override,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// SearchResult is one ranked hit from the search engine.
type SearchResult struct {
	Code       string  `json:"code"`
	Title      string  `json:"title"`
	Table      string  `json:"table"`
	Similarity float64 `json:"similarity"`
}

type UsageLog struct {
	ID         int64     `json:"id"`
	TenantID   string    `json:"tenant_id"`
	APIKeyID   string    `json:"api_key_id"`
	Endpoint   string    `json:"endpoint"`
	QueryCount int       `json:"query_count"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int       `json:"latency_ms"`
	StatusCode int       `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageStats aggregates usage_logs over a reporting period.
type UsageStats struct {
	TotalRequests int            `json:"total_requests"`
	TotalQueries  int            `json:"total_queries"`
	CacheHitRate  float64        `json:"cache_hit_rate"`
	AvgLatencyMs  float64        `json:"avg_latency_ms"`
	ByEndpoint    map[string]int `json:"by_endpoint"`
	PeriodStart   time.Time      `json:"period_start"`
	PeriodEnd     time.Time      `json:"period_end"`
}
