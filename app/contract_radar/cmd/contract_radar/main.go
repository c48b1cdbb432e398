package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"

	"github.com/iWorld-y/contract_radar/app/contract_radar/internal/server"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/engine"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/extract"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/render"
)

var (
	flagconf   string
	flagOut    string
	flagFormat string
	flagMime   string
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/contract_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagOut, "out", "", "output file, stdout when empty")
	flag.StringVar(&flagFormat, "format", "", "text | html | json, inferred from -out when empty")
	flag.StringVar(&flagMime, "mime", "", "override detected MIME type")
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	// 1. 加载配置
	_ = godotenv.Load()
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 初始化引擎
	radar, cleanup, err := server.NewRadar(ctx, cfg, klog.DefaultLogger, engine.WithProgress(func(done, total int) {
		logger.Log.Infof("分析进度: %d/%d", done, total)
	}))
	if err != nil {
		log.Fatalf("引擎初始化失败: %v", err)
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Log.Fatalf("无法读取文件: %v", err)
	}

	// 3. 分析
	fileName := filepath.Base(path)
	res, err := radar.Engine.AnalyzeDocument(ctx, extract.Document{Name: fileName, MIMEType: flagMime, Data: data})
	if err != nil {
		logger.Log.Fatalf("分析失败: %v", err)
	}

	// 4. 输出
	out, err := format(res.Report, fileName)
	if err != nil {
		logger.Log.Fatalf("报告渲染失败: %v", err)
	}
	if flagOut == "" {
		fmt.Println(out)
		return
	}
	if err := os.WriteFile(flagOut, []byte(out), 0o644); err != nil {
		logger.Log.Fatalf("无法写入报告: %v", err)
	}
	logger.Log.Infof("报告已生成: %s", flagOut)
}

func format(r *model.CombinedReport, fileName string) (string, error) {
	f := flagFormat
	if f == "" {
		switch strings.ToLower(filepath.Ext(flagOut)) {
		case ".html", ".htm":
			f = "html"
		case ".json":
			f = "json"
		default:
			f = "text"
		}
	}

	switch f {
	case "html":
		return render.HTML(r, fileName)
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		return string(b), err
	case "text":
		return render.Text(r, fileName), nil
	}
	return "", fmt.Errorf("unknown format %q", f)
}
