package server

import (
	"context"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/contract_radar/app/contract_radar/internal/service"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
)

const (
	OperationAnalyze     = "/contract_radar.v1.ContractRadar/Analyze"
	OperationListReports = "/contract_radar.v1.ContractRadar/ListReports"
	OperationGetReport   = "/contract_radar.v1.ContractRadar/GetReport"
)

// MaxBodySize 上传请求体上限，base64 后约 50MB 文件
const MaxBodySize = 70 << 20

func NewHTTPServer(c config.ServerConfig, s *service.ContractService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
		http.Filter(cors, limitBody),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(time.Duration(c.Timeout)*time.Second))
	}

	srv := http.NewServer(opts...)
	RegisterRoutes(srv, s)
	return srv
}

// RegisterRoutes 注册 HTTP 路由
func RegisterRoutes(srv *http.Server, s *service.ContractService) {
	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte("ok"))
	})

	r := srv.Route("/api")
	r.POST("/analyze", func(ctx http.Context) error {
		var req service.AnalyzeRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAnalyze)
		h := ctx.Middleware(func(c context.Context, in any) (any, error) {
			return s.Analyze(c, in.(*service.AnalyzeRequest))
		})
		out, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/reports", func(ctx http.Context) error {
		q := ctx.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		http.SetOperation(ctx, OperationListReports)
		h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
			return s.ListReports(c, limit, offset)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/reports/{id}", func(ctx http.Context) error {
		id := ctx.Vars().Get("id")
		http.SetOperation(ctx, OperationGetReport)
		h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
			return s.GetReport(c, id)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
}

func cors(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == nethttp.MethodOptions {
			w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		r.Body = nethttp.MaxBytesReader(w, r.Body, MaxBodySize)
		next.ServeHTTP(w, r)
	})
}
