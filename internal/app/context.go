package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"mpcasos/internal/audit"
	"mpcasos/internal/config"
	"mpcasos/internal/db"
	"mpcasos/internal/metrics"
	"mpcasos/internal/migrate"
	"mpcasos/internal/reassign"
	"mpcasos/internal/repo"
	"mpcasos/internal/store"
)

// App holds the wired dependencies for one workspace.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	AuditDB   *sql.DB
	Repo      repo.Repo
	Store     *store.SQL
	Audit     *audit.Log
	// Table is set when the table sink is configured.
	Table    *audit.TableSink
	Service  *reassign.Service
	Registry *prometheus.Registry
	Logger   *logrus.Logger

	closers []func() error
}

// ResolveConfig returns the workspace config, or the defaults when none exists.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// Open migrates the workspace databases and builds the service graph.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = ResolveConfig(workspace); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &App{Workspace: workspace, Config: cfg, Logger: logger}

	busy := time.Duration(cfg.Store.BusyTimeoutMS) * time.Millisecond
	conn, err := db.Open(db.Config{Workspace: workspace, Name: db.CasesDB, BusyTimeout: busy})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	if err := migrate.Migrate(conn); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate case store: %w", err)
	}
	a.DB = conn
	a.Repo = repo.Repo{DB: conn}
	a.Store = store.NewSQL(conn)

	sink, err := a.openSink(cfg, busy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.Registry)

	a.Audit = audit.NewLog(sink)
	a.Audit.Observer = m
	caseStore := store.WithTimeout(a.Store, time.Duration(cfg.Store.RequestTimeoutMS)*time.Millisecond)
	a.Service = reassign.New(caseStore, a.Audit,
		reassign.WithLogger(logger.WithField("component", "reassign")),
		reassign.WithMetrics(m),
	)
	return a, nil
}

func (a *App) openSink(cfg *config.Config, busy time.Duration) (audit.Sink, error) {
	var sinks audit.MultiSink
	if cfg.Audit.Sink == config.SinkFile || cfg.Audit.Sink == config.SinkBoth {
		f, err := audit.OpenFile(cfg.AuditPath(a.Workspace))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f.Close)
		sinks = append(sinks, f)
	}
	if cfg.Audit.Sink == config.SinkTable || cfg.Audit.Sink == config.SinkBoth {
		conn, err := db.Open(db.Config{Workspace: a.Workspace, Name: db.AuditDB, BusyTimeout: busy})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := migrate.MigrateAudit(conn); err != nil {
			return nil, fmt.Errorf("migrate audit store: %w", err)
		}
		a.AuditDB = conn
		a.Table = &audit.TableSink{DB: conn}
		sinks = append(sinks, a.Table)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// Close releases every resource opened by Open, in reverse order.
func (a *App) Close() error {
	var errs *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}
