package service

import (
	"fmt"

	"lms_backend/internal/config"
	"lms_backend/pkg/logger"

	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer 邮件发送抽象，方便本地开发和测试替换
type Mailer interface {
	Send(toName, toEmail, subject, body string) error
}

// SendGridMailer 生产实现
type SendGridMailer struct {
	cfg *config.MailConfig
}

func NewSendGridMailer(cfg *config.MailConfig) *SendGridMailer {
	return &SendGridMailer{cfg: cfg}
}

func (m *SendGridMailer) Send(toName, toEmail, subject, body string) error {
	from := mail.NewEmail(m.cfg.FromName, m.cfg.FromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	client := sendgrid.NewSendClient(m.cfg.SendGridKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ConsoleMailer 开发环境实现，只打日志
type ConsoleMailer struct{}

func (m *ConsoleMailer) Send(toName, toEmail, subject, body string) error {
	logger.Log.Info("mail (console)",
		zap.String("to", toEmail),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// NewMailer 按配置选择实现
func NewMailer(cfg *config.MailConfig) Mailer {
	if cfg.Provider == "sendgrid" && cfg.SendGridKey != "" {
		return NewSendGridMailer(cfg)
	}
	return &ConsoleMailer{}
}
