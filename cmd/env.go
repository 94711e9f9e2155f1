package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/catalog"
	"github.com/ripefield/quality-cli/internal/experiment"
	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/predictor"
	"github.com/ripefield/quality-cli/internal/store"
	"github.com/ripefield/quality-cli/internal/triage"
	"github.com/ripefield/quality-cli/internal/validate"
)

// env wires the shared subsystems commands run against.
type env struct {
	Store  store.Store
	Router *predictor.Router
	Queue  *triage.Queue
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func initRouter() (*predictor.Router, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	var bucketer *experiment.Bucketer
	if cfg.Experiment.Active {
		bucketer, err = experiment.NewBucketer(cfg.Experiment)
		if err != nil {
			return nil, err
		}
	}

	r := predictor.NewRouter(validate.NewEngine(cfg.Anomaly), bucketer)
	r.RegisterCategory(model.CategoryProduce, predictor.NewGradientEvaluator(cat.Produce, model.MetricBrix, "°Bx"))
	r.RegisterCategory(model.CategoryCoffee, predictor.NewGradientEvaluator(cat.Coffee, model.MetricCupping, "pts"))
	r.RegisterCategory(model.CategoryEggs, predictor.NewClaimsEvaluator(cat.Eggs))
	return r, nil
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	r, err := initRouter()
	if err != nil {
		st.Close()
		return nil, err
	}
	return &env{Store: st, Router: r, Queue: triage.NewQueue(st, cfg.Triage)}, nil
}
