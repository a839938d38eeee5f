package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/metroflow/internal/adapters/amap"
	"github.com/okian/metroflow/internal/adapters/repository"
	service "github.com/okian/metroflow/internal/app"
	"github.com/okian/metroflow/internal/config"
	"github.com/okian/metroflow/internal/domain/poi"
	"github.com/okian/metroflow/pkg/logger"
)

// Run executes one command against the configured tables.
func Run(ctx context.Context, cfg *config.Config, opts *Options) error {
	started := time.Now()
	log := logger.Named("pipeline")
	log.Info(ctx, "starting command", logger.String("command", opts.Command))

	var err error
	switch opts.Command {
	case CommandTransform:
		_, err = service.Transform(ctx,
			pick(opts.Input, cfg.Path(cfg.RawFile)),
			pick(opts.Output, cfg.Path(cfg.TransactionsFile)))
	case CommandNormalize:
		_, err = service.Normalize(ctx,
			pick(opts.Input, cfg.Path(cfg.TransactionsFile)),
			pick(opts.Output, cfg.Path(cfg.NormalizedFile)))
	case CommandConvert:
		_, err = service.ConvertStations(ctx,
			pick(opts.Input, cfg.Path(cfg.StationsGCJ02File)),
			pick(opts.Output, cfg.Path(cfg.StationsFile)))
	case CommandLocate:
		err = runLocate(ctx, cfg, opts)
	case CommandCollect:
		err = runCollect(ctx, cfg, opts)
	default:
		err = fmt.Errorf("%w: unknown command %q", ErrUsage, opts.Command)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Command, err)
	}

	log.Info(ctx, "command finished",
		logger.String("command", opts.Command),
		logger.Duration("took", time.Since(started)),
	)
	return nil
}

func newAMapClient(cfg *config.Config) *amap.Client {
	return amap.NewClient(cfg.AMapKey,
		amap.WithBaseURL(cfg.AMapBaseURL),
		amap.WithTimeout(cfg.RequestTimeout()),
	)
}

func runLocate(ctx context.Context, cfg *config.Config, opts *Options) error {
	if err := cfg.RequireAMapKey(); err != nil {
		return err
	}
	out := pick(opts.Output, cfg.Path(cfg.StationsGCJ02File))

	names, err := service.StationNames(ctx, pick(opts.Input, cfg.Path(cfg.NormalizedFile)))
	if err != nil {
		return err
	}
	existing, err := service.LoadStations(out)
	if err != nil {
		return err
	}

	locator := service.NewLocator(newAMapClient(cfg),
		service.WithCity(cfg.AMapCity),
		service.WithLookupDelay(cfg.GroupDelay()),
	)
	stations, _, err := locator.Locate(ctx, names, existing)
	if err != nil {
		return err
	}
	return repository.WriteStations(out, stations)
}

func runCollect(ctx context.Context, cfg *config.Config, opts *Options) error {
	if err := cfg.RequireAMapKey(); err != nil {
		return err
	}
	stations, err := repository.ReadStations(pick(opts.Input, cfg.Path(cfg.StationsGCJ02File)))
	if err != nil {
		return err
	}
	store, err := repository.OpenCollectionStore(cfg.Path(cfg.ScoresFile), cfg.Path(cfg.POIsFile))
	if err != nil {
		return err
	}

	workers := cfg.WorkerCount
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	collector := service.NewCollector(newAMapClient(cfg), store,
		service.WithClassifier(poi.NewClassifier(cfg.POIWeights, cfg.POIPrefixes)),
		service.WithSearch(cfg.SearchRadius, cfg.PageSize),
		service.WithGroupDelay(cfg.GroupDelay()),
		service.WithCollectorWorkers(workers),
	)
	report, err := collector.Run(ctx, stations)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		logger.Named("pipeline").Warn(ctx, "some stations failed and will be retried on the next run",
			logger.String("run_id", report.RunID),
			logger.Int("failed", report.Failed),
		)
	}
	return nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
