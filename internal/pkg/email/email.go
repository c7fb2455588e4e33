package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// ReceiptMailer delivers rendered receipts over SMTP as PDF attachments.
type ReceiptMailer struct {
	cfg       config.SMTPConfig
	templates *template.Template
	limiter   *rate.Limiter
	send      sendFunc
	backoff   time.Duration
}

// NewReceiptMailer creates a mailer throttled to cfg.SendsPerSecond.
func NewReceiptMailer(cfg config.SMTPConfig) (*ReceiptMailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	limit := rate.Inf
	if cfg.SendsPerSecond > 0 {
		limit = rate.Limit(cfg.SendsPerSecond)
	}

	return &ReceiptMailer{
		cfg:       cfg,
		templates: tmpl,
		limiter:   rate.NewLimiter(limit, 1),
		send:      smtp.SendMail,
		backoff:   time.Second,
	}, nil
}

var _ payroll.Dispatcher = (*ReceiptMailer)(nil)

type receiptEmailData struct {
	Title        string
	EmployeeName string
	KindLabel    string
	Period       string
	ReceiptID    string
}

// SendReceipt implements payroll.Dispatcher.
func (m *ReceiptMailer) SendReceipt(ctx context.Context, msg payroll.ReceiptMessage) error {
	subject := fmt.Sprintf("Your %s receipt for %s", msg.Kind, msg.Period)

	var body bytes.Buffer
	err := m.templates.ExecuteTemplate(&body, "receipt.html", receiptEmailData{
		Title:        subject,
		EmployeeName: msg.EmployeeName,
		KindLabel:    string(msg.Kind),
		Period:       msg.Period.String(),
		ReceiptID:    msg.ReceiptID,
	})
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	// Skip sending if SMTP is not configured
	if m.cfg.Host == "" {
		slog.Warn("SMTP not configured, skipping email send", "to", msg.To, "subject", subject)
		return nil
	}

	message, err := m.buildMessage(msg.To, subject, body.String(), msg.FileName, msg.Document)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg.To, subject, message)
}

func (m *ReceiptMailer) buildMessage(to, subject, htmlBody, fileName string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", mime.QEncoding.Encode("utf-8", m.cfg.FromName)+" <"+m.cfg.From+">")
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if len(attachment) > 0 {
		filePart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/pdf"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": fileName})},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(attachment)
		for len(encoded) > 76 {
			if _, err := filePart.Write([]byte(encoded[:76] + "\r\n")); err != nil {
				return nil, err
			}
			encoded = encoded[76:]
		}
		if _, err := filePart.Write([]byte(encoded + "\r\n")); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *ReceiptMailer) deliver(ctx context.Context, to, subject string, message []byte) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("email rate limit wait: %w", err)
		}

		err := m.send(addr, auth, m.cfg.From, []string{to}, message)
		if err == nil {
			slog.Info("Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Wait before retrying (exponential backoff: 1s, 2s, 4s)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.backoff * time.Duration(1<<(attempt-1))):
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
