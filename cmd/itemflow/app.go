package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/blingmoon/itemflow/filter"
	"github.com/blingmoon/itemflow/internal/config"
	"github.com/blingmoon/itemflow/internal/logging"
	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// app 一次命令执行需要的所有服务
type app struct {
	config   *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	redis    *redis.Client
	graph    workflow.WorkflowGraphService
	items    workflow.ItemService
	projects workflow.ProjectService
	filters  *filter.Service
	engine   *filter.Engine
	out      io.Writer
}

func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}
	if dsn := command.String("dsn"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := command.String("redis-addr"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if level := command.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, cfg.Validate()
}

func newApp(ctx context.Context, command *cli.Command) (*app, error) {
	cfg, err := loadConfig(command)
	if err != nil {
		return nil, errors.WithMessage(err, "load config failed")
	}
	logging.Setup(cfg.Log.Level)
	log := logging.WithModule("itemflow").With("command", command.Name)

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "open database %s failed", cfg.Database.DSN)
	}

	a := &app{config: cfg, logger: log, db: db, out: command.Root().Writer}
	if a.out == nil {
		a.out = os.Stdout
	}

	lock := workflow.NewLocalWorkflowLock()
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.Timeout,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, errors.WithMessagef(err, "ping redis %s failed", cfg.Redis.Addr)
		}
		lock = workflow.NewRedisWorkflowLock(a.redis)
		log.Debug("using redis locks", "addr", cfg.Redis.Addr)
	}

	workflowRepo := workflow.NewWorkflowRepo(db)
	itemRepo := workflow.NewItemRepo(db)
	projectRepo := workflow.NewProjectRepo(db)
	principalRepo := workflow.NewPrincipalRepo(db)

	a.graph = workflow.NewWorkflowGraphService(workflowRepo, lock)
	a.items = workflow.NewItemService(itemRepo, workflowRepo, projectRepo, principalRepo)
	a.projects = workflow.NewProjectService(projectRepo, principalRepo, workflowRepo, lock)
	a.filters = filter.NewService(filter.NewRepo(db), lock, filter.WithFavoriteLimit(cfg.Filter.FavoriteLimit))
	a.engine = filter.NewEngine(a.items, a.projects)
	a.items.RegisterTransitionHook(workflow.TransitionHookFunc(func(ctx context.Context, event *workflow.TransitionEvent) error {
		log.Info("item moved",
			"item_id", event.Item.ID,
			"seq", event.Item.Seq,
			"from", event.FromNodeID,
			"to", event.ToNode.Title,
			"responsible", event.Item.ResponsibleID,
		)
		return nil
	}))
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis failed", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Error("close database failed", "error", err)
		}
	}
}

func (a *app) migrate() error {
	models := append(workflow.AllModels(), filter.AllModels()...)
	return a.db.AutoMigrate(models...)
}

// print 结果统一输出为yaml
func (a *app) print(v any) error {
	encoder := yaml.NewEncoder(a.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return errors.WithMessage(err, "print result failed")
	}
	return encoder.Close()
}

// withApp 每个子命令的Action都通过它拿到服务并在结束时释放
func withApp(fn func(ctx context.Context, command *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		a, err := newApp(ctx, command)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, command, a)
	}
}
