package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"

	"github.com/uniclass/search-gateway/internal/admin"
	"github.com/uniclass/search-gateway/internal/auth"
	"github.com/uniclass/search-gateway/internal/cache"
	"github.com/uniclass/search-gateway/internal/config"
	"github.com/uniclass/search-gateway/internal/db"
	"github.com/uniclass/search-gateway/internal/gateway"
	"github.com/uniclass/search-gateway/internal/models"
	"github.com/uniclass/search-gateway/internal/quota"
	"github.com/uniclass/search-gateway/internal/ratelimit"
	"github.com/uniclass/search-gateway/internal/search"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Database is optional. Without it the gateway still serves search
	// behind the legacy shared secret, with in-process tracking.
	var database *db.DB
	if cfg.HasDatabase() {
		database, err = db.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		defer database.Close()
	} else {
		log.Printf("DATABASE_URL not set, running without API key management")
	}

	// Operator TTL overrides apply to both cache backends.
	if cfg.CacheTTLFree > 0 {
		cache.PlanTTLs[models.PlanFree] = time.Duration(cfg.CacheTTLFree) * time.Second
	}
	if cfg.CacheTTLPaid > 0 {
		for _, tier := range []string{models.PlanStarter, models.PlanProfessional, models.PlanEnterprise} {
			cache.PlanTTLs[tier] = time.Duration(cfg.CacheTTLPaid) * time.Second
		}
	}

	// Rate limiter and cache: Redis when configured, in-memory otherwise.
	var limiter ratelimit.Limiter
	var responseCache cache.Cache
	if cfg.HasRedis() {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to initialize rate limiter:", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter

		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to initialize response cache:", err)
		}
		defer redisCache.Close()
		responseCache = redisCache
	} else {
		log.Printf("REDIS_URL not set, using in-memory rate limiting and caching")
		limiter = ratelimit.NewMemoryLimiter()
		responseCache = cache.NewMemoryCache(cfg.CacheMaxEntries)
	}

	// Quota: durable counters when the database is up, in-memory otherwise.
	var tracker quota.Tracker
	var keys *auth.KeyService
	var logs gateway.UsageLogger
	if database != nil {
		tracker = quota.NewStoreTracker(database)
		keys = auth.NewKeyService(database, cfg.IsProduction())
		logs = database
	} else {
		tracker = quota.NewMemoryTracker()
	}

	engine := search.NewClient(cfg.SearchEngineURL)

	svc := gateway.NewService(gateway.ServiceConfig{
		Keys:         keys,
		Limiter:      limiter,
		Quota:        tracker,
		Cache:        responseCache,
		Engine:       engine,
		Logs:         logs,
		LegacyAPIKey: cfg.LegacyAPIKey,
	})

	// Initialize router
	router := mux.NewRouter()

	jwtMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	// Public routes
	router.HandleFunc("/health", healthHandler(cfg, database)).Methods("GET")
	if database != nil {
		router.HandleFunc("/auth/token", tokenHandler(database, cfg.JWTSecret)).Methods("POST")
		router.HandleFunc("/auth/refresh", refreshHandler(cfg.JWTSecret)).Methods("POST")

		// Admin routes, JWT-guarded
		adminRouter := router.PathPrefix("/admin").Subrouter()
		adminRouter.Use(jwtMiddleware.RequireToken)
		adminHandler := admin.NewAdminHandler(database, keys)
		adminHandler.RegisterRoutes(adminRouter)
	}

	// API-key-authenticated routes
	guard := inflightGuard(cfg.MaxInflight)
	authed := apiKeyAuth(svc)
	protect := func(h http.Handler) http.Handler { return guard(authed(h)) }
	router.Handle("/search", protect(searchHandler(svc))).Methods("POST")
	router.Handle("/info", protect(infoHandler(svc))).Methods("POST")
	router.Handle("/api_keys", protect(apiKeysHandler(svc))).Methods("POST")

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := http.ListenAndServe(":"+cfg.ServerPort, router); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func healthHandler(cfg *config.Config, database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := map[string]string{
			"database": "disabled",
			"redis":    "disabled",
		}
		if database != nil {
			services["database"] = "up"
			if err := database.Pool.Ping(r.Context()); err != nil {
				services["database"] = "down"
			}
		}
		if cfg.HasRedis() {
			services["redis"] = "configured"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"version":  "1.0.0",
			"services": services,
		})
	}
}

func tokenHandler(database *db.DB, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		user, err := database.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			log.Printf("User lookup failed: %v", err)
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}
		if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}

		pair, err := auth.GenerateTokenPair(user.ID, user.TenantID, user.Email, user.Role, jwtSecret)
		if err != nil {
			log.Printf("Token generation failed: %v", err)
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, pair)
	}
}

func refreshHandler(jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		access, err := auth.RefreshAccessToken(req.RefreshToken, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
	}
}

// inflightGuard caps concurrent in-flight API requests. Requests over the
// cap are rejected immediately rather than queued.
func inflightGuard(max int) mux.MiddlewareFunc {
	sem := semaphore.NewWeighted(int64(max))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sem.TryAcquire(1) {
				writeError(w, gateway.NewError(gateway.CodeServiceUnavailable, "Server is at capacity, please retry"))
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}

type tenantContextKey string

const (
	ctxTenant tenantContextKey = "tenant"
	ctxAPIKey tenantContextKey = "api_key"
)

func apiKeyAuth(svc *gateway.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, key, gwErr := svc.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if gwErr != nil {
				writeError(w, gwErr)
				return
			}

			ctx := context.WithValue(r.Context(), ctxTenant, tenant)
			if key != nil {
				ctx = context.WithValue(ctx, ctxAPIKey, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tenantFrom(r *http.Request) (*models.Tenant, *models.APIKey) {
	tenant, _ := r.Context().Value(ctxTenant).(*models.Tenant)
	key, _ := r.Context().Value(ctxAPIKey).(*models.APIKey)
	return tenant, key
}

func searchHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gateway.NewError(gateway.CodeMissingParam, "Invalid JSON body"))
			return
		}

		tenant, key := tenantFrom(r)
		body, headers, gwErr := svc.HandleSearch(r.Context(), &req, tenant, key)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		if gwErr != nil {
			writeError(w, gwErr)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func infoHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.InfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gateway.NewError(gateway.CodeMissingParam, "Invalid JSON body"))
			return
		}

		tenant, _ := tenantFrom(r)
		body, gwErr := svc.HandleInfo(r.Context(), &req, tenant)
		if gwErr != nil {
			writeError(w, gwErr)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func apiKeysHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.APIKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gateway.NewError(gateway.CodeMissingParam, "Invalid JSON body"))
			return
		}

		tenant, _ := tenantFrom(r)
		body, gwErr := svc.HandleAPIKeyAction(r.Context(), &req, tenant)
		if gwErr != nil {
			writeError(w, gwErr)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, gwErr *gateway.Error) {
	writeJSON(w, httpStatus(gwErr.Code), gwErr)
}

// httpStatus maps error codes to HTTP statuses.
func httpStatus(code string) int {
	switch code {
	case gateway.CodeAuthRequired, gateway.CodeInvalidAPIKey:
		return http.StatusUnauthorized
	case gateway.CodeRateLimited:
		return http.StatusTooManyRequests
	case gateway.CodeQuotaExceeded:
		return http.StatusPaymentRequired
	case gateway.CodeMissingParam, gateway.CodeInvalidAction:
		return http.StatusBadRequest
	case gateway.CodeNotFound:
		return http.StatusNotFound
	case gateway.CodeServiceUnavailable, gateway.CodeQuotaUnavailable:
		return http.StatusServiceUnavailable
	case gateway.CodeSearchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
