// Package queue 从 Kafka 消费分析任务，拉取 S3 中的文件后交给引擎处理
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/archive"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/extract"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// AnalysisJob Kafka 消息体
type AnalysisJob struct {
	Bucket   string `json:"bucket,omitempty"` // 为空时使用归档默认桶
	Key      string `json:"key"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Validate 校验任务字段
func (j *AnalysisJob) Validate() error {
	if strings.TrimSpace(j.Key) == "" {
		return errors.New("job key is required")
	}
	return nil
}

// Name 文件名，缺省取对象键的最后一段
func (j *AnalysisJob) Name() string {
	if j.FileName != "" {
		return j.FileName
	}
	return path.Base(j.Key)
}

// Fetcher 读取任务指向的文件
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// DocumentAnalyzer 分析一个文档，由 *engine.Engine 实现
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, doc extract.Document) (*model.AnalysisResult, error)
}

// JobHandler 处理单条任务消息
type JobHandler struct {
	fetcher  Fetcher
	analyzer DocumentAnalyzer
}

func NewJobHandler(f Fetcher, a DocumentAnalyzer) *JobHandler {
	return &JobHandler{fetcher: f, analyzer: a}
}

// HandleMessage 处理消息并返回是否提交位移。
// 无法处理的消息（格式错误、文件不存在、类型不支持、提取失败）提交后跳过；
// 其余失败不提交，消费会话随之结束，重新加入后从该消息起重新投递。
func (h *JobHandler) HandleMessage(ctx context.Context, value []byte) (bool, error) {
	var job AnalysisJob
	if err := json.Unmarshal(value, &job); err != nil {
		logger.Log.Errorf("任务消息格式错误，跳过: %v", err)
		return true, nil
	}
	if err := job.Validate(); err != nil {
		logger.Log.Errorf("任务消息校验失败，跳过: %v", err)
		return true, nil
	}

	log := logger.Log.WithFields(logrus.Fields{"bucket": job.Bucket, "key": job.Key})

	data, err := h.fetcher.Fetch(ctx, job.Bucket, job.Key)
	if err != nil {
		if errors.Is(err, archive.ErrObjectNotFound) {
			log.Warnf("任务文件不存在，跳过")
			return true, err
		}
		return false, fmt.Errorf("fetch %s: %w", job.Key, err)
	}

	res, err := h.analyzer.AnalyzeDocument(ctx, extract.Document{
		Name:     job.Name(),
		MIMEType: job.MimeType,
		Data:     data,
	})
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrExtraction) {
			log.Warnf("文件无法提取，跳过: %v", err)
			return true, err
		}
		return false, err
	}

	log.Infof("任务完成: 报告 %s, 评分 %d", res.ID, res.Report.OverallScore)
	return true, nil
}

// transientRetryDelay 暂时性失败后重新加入消费组前的等待时间
const transientRetryDelay = 5 * time.Second

// Consumer Kafka 消费者组
type Consumer struct {
	group   sarama.ConsumerGroup
	handler *JobHandler
	topic   string
	groupID string
}

// NewConsumer 创建消费者组
func NewConsumer(cfg config.KafkaConfig, handler *JobHandler) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &Consumer{group: group, handler: handler, topic: cfg.Topic, groupID: cfg.GroupID}, nil
}

// Run 阻塞消费直到 ctx 结束
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			logger.Log.Errorf("Kafka 消费错误: %v", err)
		}
	}()

	logger.Log.Infof("Kafka 消费者启动 (group: %s, topic: %s)", c.groupID, c.topic)
	h := &groupHandler{handler: c.handler, retryDelay: transientRetryDelay}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Log.Errorf("Kafka 消费会话异常: %v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close 关闭消费者组
func (c *Consumer) Close() error {
	logger.Log.Info("关闭 Kafka 消费者")
	return c.group.Close()
}

// groupHandler 实现 sarama.ConsumerGroupHandler
type groupHandler struct {
	handler    *JobHandler
	retryDelay time.Duration
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 逐条处理分区消息，按 HandleMessage 的结果决定是否提交。
// 暂时性失败时返回错误结束会话，后续消息不再提交，
// 重新加入消费组后从最后提交的位移继续，失败的消息会被再次投递。
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			logger.Log.Debugf("收到任务消息: partition=%d, offset=%d", msg.Partition, msg.Offset)

			mark, err := h.handler.HandleMessage(session.Context(), msg.Value)
			if mark {
				if err != nil {
					logger.Log.Errorf("任务处理失败，已跳过 (offset=%d): %v", msg.Offset, err)
				}
				session.MarkMessage(msg, "")
				continue
			}
			if err != nil {
				logger.Log.Errorf("任务处理失败，等待重新投递 (offset=%d): %v", msg.Offset, err)
				h.wait(session.Context())
				return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) wait(ctx context.Context) {
	if h.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(h.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
