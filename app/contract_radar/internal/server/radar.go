package server

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer/factory"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/archive"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/cache"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/chunker"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/engine"
	crLogger "github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/notify"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/storage"
)

// Radar 引擎及其可选下游
type Radar struct {
	Engine  *engine.Engine
	Store   *storage.Storage // 未配置 db.driver 时为 nil
	Archive *archive.Archive // 未配置 s3.bucket 时为 nil
}

// NewRadar 按配置组装引擎：模型客户端、限流、缓存、存储、归档和邮件
func NewRadar(ctx context.Context, cfg *config.Config, logger log.Logger, opts ...engine.Option) (*Radar, func(), error) {
	helper := log.NewHelper(logger)

	// 初始化日志
	if err := crLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init contract_radar logger: %v", err)
		_ = crLogger.InitLogger("info", "") // 降级处理
	}

	client, err := factory.NewClient(ctx, cfg.LLM)
	if err != nil {
		helper.Errorf("Failed to init analyzer client: %v", err)
		return nil, nil, err
	}

	r := &Radar{}
	var closers []func()
	cleanup := func() {
		helper.Info("Cleaning up contract_radar engine")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	engineOpts := []engine.Option{
		engine.WithLimiter(engine.NewLimiter(cfg.Concurrency)),
		engine.WithOptions(engine.OptionsFromConfig(cfg.Concurrency)),
	}

	if cfg.Redis.Addr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		c, err := cache.NewRedisCache(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			// 缓存不可用不影响分析
			helper.Warnf("Redis cache disabled: %v", err)
		} else {
			closers = append(closers, func() { c.Close() })
			engineOpts = append(engineOpts, engine.WithCache(c))
		}
	}

	if cfg.DB.Driver != "" {
		store, err := storage.NewStorage(ctx, cfg.DB)
		if err != nil {
			cleanup()
			helper.Errorf("Failed to init storage: %v", err)
			return nil, nil, err
		}
		r.Store = store
		closers = append(closers, func() { store.Close() })
		engineOpts = append(engineOpts, engine.WithSinks(store))
	}

	if cfg.S3.Bucket != "" {
		a, err := archive.NewArchive(ctx, cfg.S3)
		if err != nil {
			cleanup()
			helper.Errorf("Failed to init archive: %v", err)
			return nil, nil, err
		}
		r.Archive = a
		engineOpts = append(engineOpts, engine.WithSinks(a))
	}

	if notify.Enabled(cfg.Email) {
		engineOpts = append(engineOpts, engine.WithSinks(notify.NewEmailSender(cfg.Email)))
	}

	ch := chunker.New(chunker.Options{
		MaxSize:       cfg.Chunk.MaxSize,
		MinSize:       cfg.Chunk.MinSize,
		DropShortTail: cfg.Chunk.DropShortTail,
	})
	r.Engine = engine.New(client, ch, append(engineOpts, opts...)...)

	helper.Infof("contract_radar engine ready (provider=%s, model=%s)", cfg.LLM.Provider, client.Model())
	return r, cleanup, nil
}
