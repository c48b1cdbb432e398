package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/joho/godotenv"

	"github.com/iWorld-y/contract_radar/app/contract_radar/internal/server"
	"github.com/iWorld-y/contract_radar/app/contract_radar/internal/service"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "contract_radar"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/contract_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}

func main() {
	flag.Parse()
	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	_ = godotenv.Load()
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}

	radar, cleanup, err := server.NewRadar(context.Background(), cfg, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 未配置数据库时报告查询接口返回 503
	var store service.ReportStore
	if radar.Store != nil {
		store = radar.Store
	}
	svc := service.NewContractService(radar.Engine, store, logger)

	app := newApp(logger, server.NewHTTPServer(cfg.Server, svc, logger))
	if err := app.Run(); err != nil {
		panic(err)
	}
}
