package service

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type MailMessage struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// ConsoleMailer 开发环境下只写日志
type ConsoleMailer struct{}

func (ConsoleMailer) Send(ctx context.Context, msg MailMessage) error {
	logger.Log.Info("mail",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridMailer(cfg *config.MailConfig) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(cfg.SendgridAPIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg MailMessage) error {
	to := mail.NewEmail(msg.ToName, msg.ToAddress)
	message := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func NewMailer(cfg *config.MailConfig) Mailer {
	if cfg.Provider == "sendgrid" && cfg.SendgridAPIKey != "" {
		return NewSendgridMailer(cfg)
	}
	return ConsoleMailer{}
}

// NotificationService 选课与证书通知，发送失败只记录日志
type NotificationService struct {
	Mailer Mailer
}

func NewNotificationService(mailer Mailer) *NotificationService {
	return &NotificationService{Mailer: mailer}
}

func (s *NotificationService) EnrollmentConfirmed(ctx context.Context, student *model.User, course *model.Course) {
	s.send(ctx, MailMessage{
		ToName:    student.Name,
		ToAddress: student.Email,
		Subject:   "You're enrolled in " + course.Title,
		Text:      fmt.Sprintf("Hi %s, you now have access to %q. Happy learning!", student.Name, course.Title),
		HTML:      fmt.Sprintf("<p>Hi %s,</p><p>You now have access to <strong>%s</strong>. Happy learning!</p>", student.Name, course.Title),
	})
}

func (s *NotificationService) CertificateIssued(ctx context.Context, student *model.User, cert *model.Certificate) {
	s.send(ctx, MailMessage{
		ToName:    student.Name,
		ToAddress: student.Email,
		Subject:   "Your certificate for " + cert.CourseTitle,
		Text: fmt.Sprintf("Congratulations %s! Your certificate %s is available at %s",
			student.Name, cert.CertificateID, cert.CertificateURL),
		HTML: fmt.Sprintf("<p>Congratulations %s!</p><p>Your certificate <strong>%s</strong> is available <a href=\"%s\">here</a>.</p>",
			student.Name, cert.CertificateID, cert.CertificateURL),
	})
}

func (s *NotificationService) send(ctx context.Context, msg MailMessage) {
	if s == nil || s.Mailer == nil || msg.ToAddress == "" {
		return
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		logger.Log.Warn("failed to send notification",
			zap.String("to", msg.ToAddress),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}
