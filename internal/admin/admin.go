// Package admin exposes the operator API for tenant management and
// analytics. All routes are mounted behind the JWT middleware; API keys
// never reach these endpoints.
package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/uniclass/search-gateway/internal/auth"
	"github.com/uniclass/search-gateway/internal/db"
	"github.com/uniclass/search-gateway/internal/models"
)

type AdminHandler struct {
	db   *db.DB
	keys *auth.KeyService
}

func NewAdminHandler(database *db.DB, keys *auth.KeyService) *AdminHandler {
	return &AdminHandler{db: database, keys: keys}
}

// RegisterRoutes mounts the handlers on a router already rooted at /admin.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	// Tenant management
	router.HandleFunc("/tenants", h.ListTenants).Methods("GET")
	router.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/tenants/{id}", h.GetTenant).Methods("GET")
	router.HandleFunc("/tenants/{id}", h.UpdateTenant).Methods("PUT")
	router.HandleFunc("/tenants/{id}", h.DeleteTenant).Methods("DELETE")

	// Analytics
	router.HandleFunc("/tenants/{id}/analytics", h.GetAnalytics).Methods("GET")
}

func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		PlanTier string `json:"plan_tier"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	if req.Slug == "" {
		req.Slug = slugify(req.Name)
	}
	if req.PlanTier == "" {
		req.PlanTier = models.PlanFree
	}
	if !models.ValidPlanTier(req.PlanTier) {
		http.Error(w, "Unknown plan tier", http.StatusBadRequest)
		return
	}

	tenant := &models.Tenant{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Slug:               req.Slug,
		PlanTier:           req.PlanTier,
		SubscriptionStatus: models.StatusActive,
	}

	if err := h.db.CreateTenant(r.Context(), tenant); err != nil {
		log.Printf("Failed to create tenant: %v", err)
		http.Error(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}

	// Every new tenant gets a first key so it can call the API immediately.
	// The raw key appears in this response and nowhere else.
	rawKey, key, err := h.keys.CreateKey(r.Context(), tenant.ID, "", "Default key", nil, nil, nil)
	if err != nil {
		log.Printf("Failed to create initial API key for tenant %s: %v", tenant.ID, err)
		http.Error(w, "Failed to create initial API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"tenant":     tenant,
		"api_key":    rawKey,
		"key_prefix": key.KeyPrefix,
		"warning":    "Save this key! It will not be shown again.",
	})
}

func (h *AdminHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.db.ListTenants(r.Context())
	if err != nil {
		http.Error(w, "Failed to list tenants", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenants)
}

func (h *AdminHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.db.GetTenant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Failed to get tenant", http.StatusInternalServerError)
		return
	}
	if tenant == nil {
		http.Error(w, "Tenant not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

func (h *AdminHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var updates struct {
		PlanTier           *string `json:"plan_tier"`
		SubscriptionStatus *string `json:"subscription_status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tenant, err := h.db.GetTenant(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to get tenant", http.StatusInternalServerError)
		return
	}
	if tenant == nil {
		http.Error(w, "Tenant not found", http.StatusNotFound)
		return
	}

	planTier := tenant.PlanTier
	if updates.PlanTier != nil {
		planTier = *updates.PlanTier
	}
	status := tenant.SubscriptionStatus
	if updates.SubscriptionStatus != nil {
		status = *updates.SubscriptionStatus
	}
	if !models.ValidPlanTier(planTier) {
		http.Error(w, "Unknown plan tier", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateTenantSubscription(r.Context(), id, planTier, status); err != nil {
		http.Error(w, "Failed to update tenant", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

func (h *AdminHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteTenant(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, "Failed to delete tenant", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["id"]

	// Defaults to the current UTC month when no range is given.
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := now

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			http.Error(w, "Invalid 'from' date", http.StatusBadRequest)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			http.Error(w, "Invalid 'to' date", http.StatusBadRequest)
			return
		}
	}

	stats, err := h.db.GetTenantAnalytics(r.Context(), tenantID, from, to)
	if err != nil {
		http.Error(w, "Failed to get analytics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(slug, " ", "-")
}
