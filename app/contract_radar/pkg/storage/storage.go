package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// ErrNotFound 报告不存在
var ErrNotFound = errors.New("report not found")

const timeLayout = "2006-01-02 15:04:05.000000000"

// Summary 报告列表项
type Summary struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	MIMEType     string    `json:"mimeType"`
	OverallScore int       `json:"overallScore"`
	ErrorCount   int       `json:"errorCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Storage struct {
	db     *sql.DB
	driver string
}

// NewStorage 按配置打开数据库并初始化表结构
func NewStorage(ctx context.Context, cfg config.DBConfig) (*Storage, error) {
	return Open(ctx, cfg.Driver, cfg.DSN())
}

// Open 打开 postgres 或 sqlite 数据库
func Open(ctx context.Context, driver, dsn string) (*Storage, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	if driver == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == "sqlite" {
		// sqlite 单写者
		db.SetMaxOpenConns(1)
	}

	s := &Storage{db: db, driver: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	segment_count INTEGER NOT NULL,
	overall_score INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	report TEXT NOT NULL,
	created_at TEXT NOT NULL
)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind 将 ? 占位符转换为 postgres 的 $n
func (s *Storage) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SaveResult 保存分析结果，同 ID 覆盖
func (s *Storage) SaveResult(ctx context.Context, res *model.AnalysisResult) error {
	if res == nil || res.Report == nil {
		return errors.New("empty analysis result")
	}
	data, err := json.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	query := s.rebind(`
INSERT INTO analysis_reports (id, file_name, mime_type, segment_count, overall_score, error_count, report, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	file_name = excluded.file_name,
	mime_type = excluded.mime_type,
	segment_count = excluded.segment_count,
	overall_score = excluded.overall_score,
	error_count = excluded.error_count,
	report = excluded.report,
	created_at = excluded.created_at`)

	_, err = s.db.ExecContext(ctx, query,
		res.ID,
		removeNullBytes(res.FileName),
		res.MIMEType,
		res.SegmentCount,
		res.Report.OverallScore,
		len(res.Report.Errors),
		// PostgreSQL 文本字段不支持 NULL 字节
		removeNullBytes(string(data)),
		res.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", res.ID, err)
	}
	return nil
}

// Consume 作为引擎下游保存结果
func (s *Storage) Consume(ctx context.Context, res *model.AnalysisResult) error {
	return s.SaveResult(ctx, res)
}

// Get 按 ID 读取完整报告
func (s *Storage) Get(ctx context.Context, id string) (*model.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, file_name, mime_type, segment_count, report, created_at
FROM analysis_reports WHERE id = ?`), id)

	var (
		res       model.AnalysisResult
		data      string
		createdAt string
	)
	err := row.Scan(&res.ID, &res.FileName, &res.MIMEType, &res.SegmentCount, &data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	report := model.NewCombinedReport()
	if err := json.Unmarshal([]byte(data), report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	res.Report = report
	if res.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", id, err)
	}
	return &res, nil
}

// List 按时间倒序分页列出报告摘要，同时返回总数
func (s *Storage) List(ctx context.Context, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_reports`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, file_name, mime_type, overall_score, error_count, created_at
FROM analysis_reports
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			sum       Summary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.FileName, &sum.MIMEType, &sum.OverallScore, &sum.ErrorCount, &createdAt); err != nil {
			return nil, 0, err
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, 0, err
		}
		list = append(list, sum)
	}
	return list, total, rows.Err()
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
