package service

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/extract"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/storage"
)

// mockAnalyzer 模拟分析引擎
type mockAnalyzer struct {
	doc extract.Document
	err error
}

func (m *mockAnalyzer) AnalyzeDocument(ctx context.Context, doc extract.Document) (*model.AnalysisResult, error) {
	m.doc = doc
	if m.err != nil {
		return nil, m.err
	}
	r := model.NewCombinedReport()
	r.OverallScore = 80
	r.CriticalPoints = []model.Finding{model.NewFinding(map[string]any{"title": "A"})}
	return &model.AnalysisResult{ID: "01ABC", FileName: doc.Name, Report: r}, nil
}

// mockStore 模拟报告仓库
type mockStore struct {
	limit, offset int
}

func (m *mockStore) Get(ctx context.Context, id string) (*model.AnalysisResult, error) {
	if id != "01ABC" {
		return nil, storage.ErrNotFound
	}
	return &model.AnalysisResult{ID: id, Report: model.NewCombinedReport()}, nil
}

func (m *mockStore) List(ctx context.Context, limit, offset int) ([]storage.Summary, int, error) {
	m.limit, m.offset = limit, offset
	return []storage.Summary{{ID: "01ABC", FileName: "lease.txt"}}, 1, nil
}

func TestContractService_Analyze(t *testing.T) {
	a := &mockAnalyzer{}
	s := NewContractService(a, nil, log.DefaultLogger)

	reply, err := s.Analyze(context.Background(), &AnalyzeRequest{
		Content:  base64.StdEncoding.EncodeToString([]byte("The tenant shall pay.")),
		FileName: "lease.txt",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if reply.ID != "01ABC" || reply.Analysis.OverallScore != 80 {
		t.Errorf("Analyze() reply = %+v", reply)
	}
	if !strings.Contains(reply.Summary, "Legal Document Analysis Report: *lease.txt*") || !strings.Contains(reply.Summary, "- A") {
		t.Errorf("Analyze() summary = %q", reply.Summary)
	}
	if string(a.doc.Data) != "The tenant shall pay." || a.doc.MIMEType != "" {
		t.Errorf("document = %+v", a.doc)
	}
}

func TestContractService_AnalyzeDataURL(t *testing.T) {
	a := &mockAnalyzer{}
	s := NewContractService(a, nil, log.DefaultLogger)

	payload := base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n"))
	if _, err := s.Analyze(context.Background(), &AnalyzeRequest{Content: "data:text/csv;base64," + payload, FileName: "x"}); err != nil {
		t.Fatal(err)
	}
	if a.doc.MIMEType != "text/csv" || string(a.doc.Data) != "a,b\n1,2\n" {
		t.Errorf("document = %+v", a.doc)
	}

	// 显式 mimeType 优先
	if _, err := s.Analyze(context.Background(), &AnalyzeRequest{Content: "data:text/csv;base64," + payload, FileName: "x", MimeType: "text/plain"}); err != nil {
		t.Fatal(err)
	}
	if a.doc.MIMEType != "text/plain" {
		t.Errorf("MIMEType = %q, want text/plain", a.doc.MIMEType)
	}
}

func TestContractService_AnalyzeErrors(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString([]byte("x"))
	tests := []struct {
		name     string
		req      *AnalyzeRequest
		err      error
		wantCode int
	}{
		{"missing content", &AnalyzeRequest{FileName: "a.txt"}, nil, 400},
		{"missing file name", &AnalyzeRequest{Content: valid}, nil, 400},
		{"bad base64", &AnalyzeRequest{Content: "!!!", FileName: "a.txt"}, nil, 400},
		{"unsupported", &AnalyzeRequest{Content: valid, FileName: "a.png"}, fmt.Errorf("extract a.png: %w", extract.ErrUnsupportedType), 415},
		{"extraction", &AnalyzeRequest{Content: valid, FileName: "a.pdf"}, fmt.Errorf("extract a.pdf: %w", extract.ErrExtraction), 422},
		{"cancelled", &AnalyzeRequest{Content: valid, FileName: "a.txt"}, context.Canceled, 504},
		{"internal", &AnalyzeRequest{Content: valid, FileName: "a.txt"}, stderrors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewContractService(&mockAnalyzer{err: tt.err}, nil, log.DefaultLogger)
			_, err := s.Analyze(context.Background(), tt.req)
			if got := errors.Code(err); got != tt.wantCode {
				t.Errorf("Analyze() code = %d, want %d (err %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestContractService_Reports(t *testing.T) {
	store := &mockStore{}
	s := NewContractService(&mockAnalyzer{}, store, log.DefaultLogger)
	ctx := context.Background()

	reply, err := s.ListReports(ctx, 0, -3)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if reply.Total != 1 || len(reply.Reports) != 1 || store.limit != 20 || store.offset != 0 {
		t.Errorf("ListReports() = %+v (limit %d offset %d)", reply, store.limit, store.offset)
	}

	if _, err := s.GetReport(ctx, "01ABC"); err != nil {
		t.Errorf("GetReport() error = %v", err)
	}
	if _, err := s.GetReport(ctx, "nope"); errors.Code(err) != 404 {
		t.Errorf("GetReport() missing code = %d", errors.Code(err))
	}

	disabled := NewContractService(&mockAnalyzer{}, nil, log.DefaultLogger)
	if _, err := disabled.ListReports(ctx, 10, 0); errors.Code(err) != 503 {
		t.Errorf("ListReports() without storage code = %d", errors.Code(err))
	}
}

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		wantMime string
		wantErr  bool
	}{
		{"aGVsbG8=", "hello", "", false},
		{"aGVsbG8", "hello", "", false},
		{"aGVs\nbG8=", "hello", "", false},
		{"data:application/pdf;base64,aGVsbG8=", "hello", "application/pdf", false},
		{"data:text/plain", "", "", true},
		{"%%%", "", "", true},
	}
	for _, tt := range tests {
		got, mime, err := decodeContent(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeContent(%q) err = %v", tt.in, err)
			continue
		}
		if string(got) != tt.want || mime != tt.wantMime {
			t.Errorf("decodeContent(%q) = %q, %q", tt.in, got, mime)
		}
	}
}
