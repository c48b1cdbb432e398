package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"

	"github.com/iWorld-y/contract_radar/app/contract_radar/internal/server"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/queue"
)

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "app/contract_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		log.Fatal("配置错误: 未设置 kafka.brokers 或 kafka.topic")
	}
	if cfg.S3.Bucket == "" {
		log.Fatal("配置错误: 未设置 s3.bucket")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	radar, cleanup, err := server.NewRadar(ctx, cfg, klog.DefaultLogger)
	if err != nil {
		log.Fatalf("引擎初始化失败: %v", err)
	}
	defer cleanup()

	consumer, err := queue.NewConsumer(cfg.Kafka, queue.NewJobHandler(radar.Archive, radar.Engine))
	if err != nil {
		logger.Log.Fatalf("Kafka 消费者创建失败: %v", err)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		logger.Log.Errorf("Kafka 消费者退出: %v", err)
	}
	logger.Log.Info("worker 已停止")
}
