package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/middleware"
	"github.com/redtrack-io/redtrack/internal/service"
)

// Services are the operations exposed over HTTP.
type Services struct {
	Auth        *service.AuthService
	Permissions *service.PermissionService
	Issues      *service.IssueService
	Relations   *service.RelationService
	Roles       *service.RoleService
	Members     *service.MemberService
	Workflows   *service.WorkflowService
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// APIRouter handles all v1 API routes
type APIRouter struct {
	router         *gin.Engine
	services       Services
	authMiddleware *middleware.AuthMiddleware
	health         map[string]HealthCheck
	version        string
	metricsPath    string
}

type Option func(*APIRouter)

// WithHealthCheck adds a named dependency to /api/v1/health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(r *APIRouter) { r.health[name] = check }
}

func WithVersion(version string) Option {
	return func(r *APIRouter) { r.version = version }
}

// WithMetricsPath sets where prometheus metrics are served. An empty path disables them.
func WithMetricsPath(path string) Option {
	return func(r *APIRouter) { r.metricsPath = path }
}

// NewAPIRouter creates a new API router
func NewAPIRouter(router *gin.Engine, services Services, jwtManager *auth.JWTManager, opts ...Option) *APIRouter {
	r := &APIRouter{
		router:         router,
		services:       services,
		authMiddleware: middleware.NewAuthMiddleware(jwtManager),
		health:         make(map[string]HealthCheck),
		version:        "dev",
		metricsPath:    "/metrics",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewEngine builds a gin engine with the standard middleware chain.
func NewEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), gin.Logger(), middleware.Metrics())
	return engine
}

// SetupRoutes configures all API v1 routes
func (r *APIRouter) SetupRoutes() {
	if r.metricsPath != "" {
		r.router.GET(r.metricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.router.Group("/api/v1")
	v1.GET("/health", r.healthCheck)
	v1.POST("/auth/login", r.handleLogin)

	protected := v1.Group("")
	protected.Use(r.authMiddleware.RequireAuth())
	{
		protected.GET("/permissions", r.handlePermissionCatalog)
		protected.GET("/projects/:project_id/permissions", r.handleProjectPermissions)

		protected.GET("/issues/:id/transitions", r.handleTransitions)
		protected.GET("/issues/:id/field_rules", r.handleFieldRules)
		protected.POST("/issues/:id/transition", r.handleTransition)
		protected.GET("/issues/:id/relations", r.handleListRelations)
		protected.POST("/issues/:id/relations", r.handleAddRelation)
		protected.DELETE("/relations/:id", r.handleDeleteRelation)

		protected.GET("/roles", r.handleListRoles)
		protected.POST("/roles", r.handleCreateRole)
		protected.PUT("/roles/:id", r.handleUpdateRole)
		protected.DELETE("/roles/:id", r.handleDeleteRole)

		protected.PUT("/projects/:project_id/members/:user_id", r.handleSetMemberRoles)
		protected.DELETE("/projects/:project_id/members/:user_id", r.handleRemoveMember)

		protected.PUT("/workflows", r.handleReplaceWorkflow)
		protected.POST("/workflows/import", r.handleImportWorkflow)
	}
}

func (r *APIRouter) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.health))
	for name, check := range r.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"version":   r.version,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
