package notify

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/logger"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/render"
)

// dialer *gomail.Dialer 中本包用到的部分
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender 通过 SMTP 发送分析报告
type EmailSender struct {
	cfg    config.EmailConfig
	dialer dialer
}

// NewEmailSender 按配置创建发送器
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.Timeout = 10 * time.Second
	return &EmailSender{cfg: cfg, dialer: d}
}

// Enabled 是否配置了 SMTP 服务器和收件人
func Enabled(cfg config.EmailConfig) bool {
	return cfg.SMTPHost != "" && cfg.From != "" && len(cfg.To) > 0
}

// Subject 邮件标题
func Subject(fileName string, report *model.CombinedReport) string {
	if fileName == "" {
		fileName = "document"
	}
	return fmt.Sprintf("Contract analysis: %s (score %d/100)", fileName, report.OverallScore)
}

// Message 构造纯文本加 HTML 备选正文的邮件
func (s *EmailSender) Message(fileName string, report *model.CombinedReport) (*gomail.Message, error) {
	page, err := render.HTML(report, fileName)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", Subject(fileName, report))
	m.SetBody("text/plain", render.Text(report, fileName))
	m.AddAlternative("text/html", page)
	return m, nil
}

// Send 发送报告邮件
func (s *EmailSender) Send(ctx context.Context, fileName string, report *model.CombinedReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.Message(fileName, report)
	if err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		logger.Log.Errorf("报告邮件发送失败 %v (%s): %v", s.cfg.To, fileName, err)
		return fmt.Errorf("send report email: %w", err)
	}
	logger.Log.Infof("报告邮件已发送: %s", fileName)
	return nil
}

// Consume 作为引擎下游发送邮件
func (s *EmailSender) Consume(ctx context.Context, res *model.AnalysisResult) error {
	return s.Send(ctx, res.FileName, res.Report)
}
