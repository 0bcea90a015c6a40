// Package container wires the application dependencies and owns their
// lifecycle: ordered initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/application/dispatcher"
	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/application/service"
	"github.com/ledgerflow/approval-engine/internal/application/tx"
	engine "github.com/ledgerflow/approval-engine/internal/application/workflow"
	"github.com/ledgerflow/approval-engine/internal/config"
	"github.com/ledgerflow/approval-engine/internal/domain/event"
	"github.com/ledgerflow/approval-engine/internal/domain/permission"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
	"github.com/ledgerflow/approval-engine/internal/repository"
	"github.com/ledgerflow/approval-engine/pkg/database"
	"github.com/ledgerflow/approval-engine/pkg/utils"
)

// RepositoryBundle groups the sqlite port implementations.
type RepositoryBundle struct {
	Entities      port.EntityRepository
	History       port.HistoryRepository
	Audit         port.AuditRepository
	Rules         port.RuleRepository
	Notifications port.NotificationRepository
}

// ServiceBundle groups the application services.
type ServiceBundle struct {
	Workflow service.WorkflowService
	Rules    service.RuleService
	Audit    service.AuditService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Container manages all application dependencies.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DB
	repositories *RepositoryBundle

	bus       dispatcher.Bus
	txManager *tx.Manager
	gate      *permission.Gate
	machine   *domainwf.Machine
	evaluator *rule.Evaluator
	engine    engine.Engine
	services  *ServiceBundle

	effectRunner *service.EffectRunner

	unsubscribes []func()

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations, repositories
// 2. Domain components (registry, machine, gate, evaluator)
// 3. Event bus and transaction manager
// 4. Transition engine and services
// 5. Bus subscriptions
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.initDomain()
	c.logger.Info("Domain components initialized")

	c.initApplication()
	c.logger.Info("Application components initialized")

	c.initServices()
	c.logger.Info("Services initialized")

	c.initSubscriptions()
	c.logger.Info("Event subscriptions registered")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	c.repositories = &RepositoryBundle{
		Entities:      repository.NewEntityRepository(db.DB, c.logger),
		History:       repository.NewHistoryRepository(db.DB, c.logger),
		Audit:         repository.NewAuditRepository(db.DB, c.logger),
		Rules:         repository.NewRuleRepository(db.DB, c.logger),
		Notifications: repository.NewNotificationRepository(db.DB, c.logger),
	}
	return nil
}

func (c *Container) initDomain() {
	matrix := permission.DefaultMatrix()
	if len(c.config.Permissions.Matrix) > 0 {
		matrix = permission.Matrix(c.config.Permissions.Matrix)
	}
	c.gate = permission.NewGate(matrix)

	c.machine = domainwf.NewMachine(domainwf.DefaultRegistry(), domainwf.DefaultValidatorRegistry())
	c.evaluator = rule.NewEvaluator(c.config.Rules.MaxDepth)
}

func (c *Container) initApplication() {
	kv := c.kvLogger()

	c.bus = dispatcher.NewBus(
		dispatcher.WithLogger(kv),
		dispatcher.WithHistory(c.config.Workflow.EventHistorySize),
	)

	txm := repository.NewTxManager(c.db.DB, c.logger)
	c.txManager = tx.NewManager(txm, kv, tx.Options{
		MaxRetries: c.config.Workflow.MaxRetries,
		Backoff:    c.config.Workflow.RetryBackoff,
		BackoffMax: c.config.Workflow.RetryBackoffMax,
		Timeout:    c.config.Workflow.TxTimeout,
	})
}

func (c *Container) initServices() {
	kv := c.kvLogger()

	audit := service.NewAuditService(c.repositories.Audit, kv)
	effects := service.NewEffectRunner(audit, c.repositories.Notifications, kv)

	c.engine = engine.NewEngine(
		c.machine,
		c.gate,
		c.repositories.Entities,
		c.repositories.History,
		c.txManager,
		engine.WithBus(c.bus),
		engine.WithEffectRunner(effects),
		engine.WithLogger(kv),
	)

	c.services = &ServiceBundle{
		Workflow: service.NewWorkflowService(
			c.gate,
			c.machine,
			c.evaluator,
			c.engine,
			c.txManager,
			c.repositories.Entities,
			c.repositories.History,
			c.repositories.Rules,
			c.repositories.Notifications,
			audit,
			c.bus,
			kv,
		),
		Rules: service.NewRuleService(c.repositories.Rules, c.evaluator, c.gate, audit, kv),
		Audit: audit,
	}

	c.effectRunner = effects
}

func (c *Container) initSubscriptions() {
	kv := c.kvLogger()

	handler := service.NewAsyncEffectHandler(c.effectRunner, c.repositories.Entities, kv)
	c.unsubscribes = append(c.unsubscribes,
		c.bus.Subscribe(event.TypeNotifyRequested, "async-side-effects", handler),
	)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	for _, unsub := range c.unsubscribes {
		unsub()
	}

	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			c.logger.Error("Failed to close event bus", zap.Error(err))
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.bus != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// Services returns the application service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Bus returns the event bus.
func (c *Container) Bus() dispatcher.Bus {
	return c.bus
}

func (c *Container) kvLogger() utils.KV {
	return utils.NewKV(c.logger)
}
