package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/cache"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/chunker"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/extract"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/merge"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// Sink 分析结果的下游消费者（存储、归档、邮件）
type Sink interface {
	Consume(ctx context.Context, res *model.AnalysisResult) error
}

// SinkFunc 函数适配器
type SinkFunc func(ctx context.Context, res *model.AnalysisResult) error

// Consume 实现 Sink
func (f SinkFunc) Consume(ctx context.Context, res *model.AnalysisResult) error {
	return f(ctx, res)
}

// Options 调度参数
type Options struct {
	Workers        int           // <=1 时严格顺序执行
	MaxRetries     int           // 限流和格式错误的最大重试次数
	RetryBaseDelay time.Duration // 限流退避基数，第 i 次重试等待 base*2^i
}

// DefaultOptions 默认调度参数
func DefaultOptions() Options {
	return Options{Workers: 1, MaxRetries: 3, RetryBaseDelay: 2 * time.Second}
}

// Engine 核心处理引擎：提取、分段、逐段分析、合并
type Engine struct {
	client   analyzer.Client
	chunker  *chunker.Chunker
	limiter  *rate.Limiter
	cache    cache.Cache
	registry *extract.Registry
	sinks    []Sink
	progress func(done, total int)
	opts     Options
}

// Option 引擎可选项
type Option func(*Engine)

// WithLimiter 设置模型调用限流器
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithCache 设置分段结果缓存
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRegistry 设置文本提取器
func WithRegistry(r *extract.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithSinks 追加结果消费者
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithProgress 设置进度回调，每完成一个分段调用一次，调用是串行的
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithOptions 设置调度参数
func WithOptions(opts Options) Option {
	return func(e *Engine) { e.opts = opts }
}

// New 创建引擎实例
func New(client analyzer.Client, ch *chunker.Chunker, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		chunker:  ch,
		registry: extract.DefaultRegistry(),
		opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.chunker == nil {
		e.chunker = chunker.New(chunker.DefaultOptions())
	}
	if e.opts.MaxRetries < 0 {
		e.opts.MaxRetries = 0
	}
	return e
}

// NewLimiter 按配置创建限流器：每分钟 RPM 次，突发 QPS 次
func NewLimiter(cfg config.ConcurrencyConfig) *rate.Limiter {
	limit := rate.Limit(float64(cfg.RPM) / 60.0)
	burst := max(cfg.QPS, 1)
	return rate.NewLimiter(limit, burst)
}

// OptionsFromConfig 从配置读取调度参数
func OptionsFromConfig(cfg config.ConcurrencyConfig) Options {
	opts := DefaultOptions()
	opts.Workers = cfg.Workers
	opts.MaxRetries = cfg.MaxRetries
	return opts
}

// AnalyzeSegments 逐段调用分析器，返回与输入顺序一致的结果。
// 单个分段失败记为错误记录，只有 ctx 取消或超时时返回错误，且不返回任何结果。
func (e *Engine) AnalyzeSegments(ctx context.Context, segs []model.Segment) ([]model.AnalysisRecord, error) {
	n := len(segs)
	records := make([]model.AnalysisRecord, n)
	if n == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return records, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if e.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		e.progress(done, n)
	}

	if e.opts.Workers <= 1 {
		for i := range segs {
			rec, err := e.analyzeOne(ctx, model.Segment{Text: segs[i].Text, Index: i, Total: n})
			if err != nil {
				return nil, err
			}
			records[i] = rec
			report()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range segs {
		seg := model.Segment{Text: segs[i].Text, Index: i, Total: n}
		g.Go(func() error {
			rec, err := e.analyzeOne(gctx, seg)
			if err != nil {
				return err
			}
			records[seg.Index] = rec
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// analyzeOne 分析单个分段，只在 ctx 结束或限流器在截止前等不到令牌时返回错误
func (e *Engine) analyzeOne(ctx context.Context, seg model.Segment) (model.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.AnalysisRecord{}, err
	}
	log := logger.Log.WithFields(logrus.Fields{"segment": seg.Index + 1, "total": seg.Total})

	key := cache.Key(e.client.Model(), seg.Text)
	if e.cache != nil {
		rec, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			log.Warnf("读取分段缓存失败: %v", err)
		} else if ok {
			log.Debug("命中分段缓存")
			return *rec, nil
		}
	}

	var (
		lastErr error
		lastRaw string
	)
	for i := 0; i <= e.opts.MaxRetries; i++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return model.AnalysisRecord{}, ctx.Err()
				}
				// 截止时间前等不到令牌，整批按超时处理
				if _, ok := ctx.Deadline(); ok {
					return model.AnalysisRecord{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
				}
				return model.AnalysisRecord{}, fmt.Errorf("rate limiter: %w", err)
			}
		}

		raw, err := e.client.Complete(ctx, seg)
		if err != nil {
			if ctx.Err() != nil {
				return model.AnalysisRecord{}, ctx.Err()
			}
			lastErr, lastRaw = err, ""
			if analyzer.IsRateLimited(err) && i < e.opts.MaxRetries {
				delay := e.opts.RetryBaseDelay * time.Duration(1<<i)
				log.Warnf("模型限流，%v 后重试: %v", delay, err)
				if err := sleepWithCtx(ctx, delay); err != nil {
					return model.AnalysisRecord{}, err
				}
				continue
			}
			break
		}

		rec, err := analyzer.Parse(raw)
		if err != nil {
			lastErr, lastRaw = err, raw
			log.Debugf("模型输出解析失败 (第 %d 次): %v", i+1, err)
			continue
		}

		if e.cache != nil {
			if err := e.cache.Set(ctx, key, rec); err != nil {
				log.Warnf("写入分段缓存失败: %v", err)
			}
		}
		return *rec, nil
	}

	log.Errorf("分段分析失败: %v", lastErr)
	return model.NewErrorRecord(seg.Index, lastErr.Error(), lastRaw), nil
}

// AnalyzeText 分段、分析并合并一段文本
func (e *Engine) AnalyzeText(ctx context.Context, text string) (*model.CombinedReport, error) {
	report, _, err := e.analyzeText(ctx, text)
	return report, err
}

func (e *Engine) analyzeText(ctx context.Context, text string) (*model.CombinedReport, int, error) {
	segs := e.chunker.Split(text)
	logger.Log.Infof("文本切分为 %d 个分段", len(segs))

	records, err := e.AnalyzeSegments(ctx, segs)
	if err != nil {
		return nil, 0, err
	}
	return merge.Combine(records), len(segs), nil
}

// AnalyzeDocument 提取文档文本并生成合并报告，随后交给所有下游。
// 提取失败直接返回错误；下游失败只记录日志。
func (e *Engine) AnalyzeDocument(ctx context.Context, doc extract.Document) (*model.AnalysisResult, error) {
	if doc.MIMEType == "" {
		doc.MIMEType = extract.DetectMIME(doc.Name, doc.Data)
	}
	logger.Log.Infof("开始分析文档 [%s] (%s, %d 字节)", doc.Name, doc.MIMEType, len(doc.Data))

	text, err := e.registry.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.Name, err)
	}

	report, segCount, err := e.analyzeText(ctx, text)
	if err != nil {
		return nil, err
	}

	res := &model.AnalysisResult{
		ID:           NewID(),
		FileName:     doc.Name,
		MIMEType:     doc.MIMEType,
		SegmentCount: segCount,
		CreatedAt:    time.Now().UTC(),
		Report:       report,
	}
	logger.Log.Infof("文档 [%s] 分析完成: 评分 %d, 失败分段 %d", doc.Name, report.OverallScore, len(report.Errors))

	for _, s := range e.sinks {
		if err := s.Consume(ctx, res); err != nil {
			logger.Log.Errorf("分析结果下游处理失败 [%s]: %v", res.ID, err)
		}
	}
	return res, nil
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID 生成按时间排序的报告 ID
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Now(), idEntropy).String()
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
