package service

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/extract"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/render"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/storage"
)

// DocumentAnalyzer 由 *engine.Engine 实现
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, doc extract.Document) (*model.AnalysisResult, error)
}

// ReportStore 由 *storage.Storage 实现
type ReportStore interface {
	Get(ctx context.Context, id string) (*model.AnalysisResult, error)
	List(ctx context.Context, limit, offset int) ([]storage.Summary, int, error)
}

type AnalyzeRequest struct {
	Content  string `json:"content"` // base64 或 data: URL
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType,omitempty"`
}

type AnalyzeReply struct {
	ID       string               `json:"id"`
	Summary  string               `json:"summary"`
	Analysis *model.CombinedReport `json:"analysis"`
}

type ListReportsReply struct {
	Reports []storage.Summary `json:"reports"`
	Total   int               `json:"total"`
}

type ContractService struct {
	analyzer DocumentAnalyzer
	store    ReportStore
	log      *log.Helper
}

// NewContractService store 可以为 nil，此时报告查询接口不可用
func NewContractService(analyzer DocumentAnalyzer, store ReportStore, logger log.Logger) *ContractService {
	return &ContractService{
		analyzer: analyzer,
		store:    store,
		log:      log.NewHelper(logger),
	}
}

// Analyze 解码上传内容并生成分析报告
func (s *ContractService) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeReply, error) {
	if req == nil || req.Content == "" || req.FileName == "" {
		return nil, errors.BadRequest("MISSING_FIELDS", "Missing required fields: content, fileName")
	}

	data, dataURLMime, err := decodeContent(req.Content)
	if err != nil {
		return nil, errors.BadRequest("INVALID_CONTENT", "content is not valid base64").WithCause(err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = dataURLMime
	}
	s.log.WithContext(ctx).Infof("Analyzing %s (%d bytes)", req.FileName, len(data))

	res, err := s.analyzer.AnalyzeDocument(ctx, extract.Document{Name: req.FileName, MIMEType: mimeType, Data: data})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &AnalyzeReply{
		ID:       res.ID,
		Summary:  render.Text(res.Report, req.FileName),
		Analysis: res.Report,
	}, nil
}

// ListReports 分页列出历史报告
func (s *ContractService) ListReports(ctx context.Context, limit, offset int) (*ListReportsReply, error) {
	if s.store == nil {
		return nil, errors.ServiceUnavailable("STORAGE_DISABLED", "report storage is not configured")
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	list, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &ListReportsReply{Reports: list, Total: total}, nil
}

// GetReport 按 ID 查询报告
func (s *ContractService) GetReport(ctx context.Context, id string) (*model.AnalysisResult, error) {
	if s.store == nil {
		return nil, errors.ServiceUnavailable("STORAGE_DISABLED", "report storage is not configured")
	}
	if id == "" {
		return nil, errors.BadRequest("MISSING_ID", "report id is required")
	}

	res, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return res, nil
}

func (s *ContractService) mapError(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(err, extract.ErrUnsupportedType):
		return errors.New(415, "UNSUPPORTED_TYPE", err.Error())
	case stderrors.Is(err, extract.ErrExtraction):
		return errors.New(422, "EXTRACTION_FAILED", err.Error())
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.NotFound("REPORT_NOT_FOUND", err.Error())
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.GatewayTimeout("CANCELLED", err.Error())
	}
	s.log.WithContext(ctx).Errorf("request failed: %v", err)
	return errors.InternalServer("INTERNAL", err.Error())
}

// decodeContent 支持纯 base64 和 data:<mime>;base64,<payload>
func decodeContent(content string) ([]byte, string, error) {
	var mimeType string
	if strings.HasPrefix(content, "data:") {
		header, payload, ok := strings.Cut(content, ",")
		if !ok {
			return nil, "", stderrors.New("data URL without payload")
		}
		mimeType, _, _ = strings.Cut(strings.TrimPrefix(header, "data:"), ";")
		content = payload
	}

	content = strings.Join(strings.Fields(content), "")
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(content)
		if err != nil {
			return nil, "", err
		}
	}
	return data, mimeType, nil
}
