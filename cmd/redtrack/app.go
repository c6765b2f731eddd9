package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/redtrack-io/redtrack/internal/api/v1"
	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/cache"
	"github.com/redtrack-io/redtrack/internal/config"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/relations"
	"github.com/redtrack-io/redtrack/internal/repository"
	"github.com/redtrack-io/redtrack/internal/service"
	"github.com/redtrack-io/redtrack/internal/version"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

// app holds the wired dependencies of a running process.
type app struct {
	db       *database.DB
	resolver *auth.Resolver
	engine   *gin.Engine
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, closers: []func() error{db.Close}}

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	members := repository.NewMemberRepository(db)
	rules := repository.NewWorkflowRuleRepository(db)
	statuses := repository.NewIssueStatusRepository(db)
	issues := repository.NewIssueRepository(db)

	a.resolver = auth.NewResolver(members, roles)
	if err := a.attachCache(cfg); err != nil {
		a.Close()
		return nil, err
	}
	gate := auth.NewGate(users, a.resolver)

	secret := cfg.Auth.JWT.Secret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Printf("auth: no jwt secret configured, tokens will not survive a restart")
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Auth.JWT.AccessTokenTTL)

	graph := relations.NewGraph(issues, relations.WithCrossProjectRelations(cfg.Workflow.CrossProjectRelations))
	config.OnChange(func(c *config.Config) {
		graph.SetCrossProjectRelations(c.Workflow.CrossProjectRelations)
		log.Printf("config: cross_project_relations=%t", c.Workflow.CrossProjectRelations)
	})

	services := v1.Services{
		Auth:        service.NewAuthService(users, a.resolver, jwtManager),
		Permissions: service.NewPermissionService(gate),
		Issues:      service.NewIssueService(issues, roles, gate, workflow.NewEngine(rules, statuses, issues)),
		Relations:   service.NewRelationService(issues, gate, graph, cfg.Workflow.RelationRetry),
		Roles:       service.NewRoleService(roles, members, gate),
		Members:     service.NewMemberService(users, members, roles, gate),
		Workflows:   service.NewWorkflowService(rules, gate),
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	a.engine = v1.NewEngine()
	v1.NewAPIRouter(a.engine, services, jwtManager,
		v1.WithVersion(version.Version),
		v1.WithMetricsPath(metricsPath),
		v1.WithHealthCheck("database", db.PingContext),
	).SetupRoutes()
	return a, nil
}

func (a *app) attachCache(cfg *config.Config) error {
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisCacheConfig())
		if err != nil {
			return fmt.Errorf("permission cache: %w", err)
		}
		a.resolver.WithCache(rc)
		a.closers = append(a.closers, rc.Close)
	case "local":
		lc := cache.NewLocalCache(cache.LocalCacheConfig{MaxSize: cfg.Cache.MaxSize, DefaultTTL: cfg.Cache.TTL})
		a.resolver.WithCache(lc)
		a.closers = append(a.closers, func() error { lc.Stop(); return nil })
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
