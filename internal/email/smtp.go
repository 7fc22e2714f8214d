package email

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

func (s *SMTPSender) auth() smtp.Auth {
	// Local dev relays (MailHog and friends) accept unauthenticated mail.
	if s.User == "" || s.Password == "" {
		return nil
	}
	return smtp.PlainAuth("", s.User, s.Password, s.Host)
}

func (s *SMTPSender) SendDownloadLink(email, downloadURL string, stats string) {
	// Run in background to not block the worker.
	go func() {
		addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

		subject := "Your Frame Snapshot is Ready"
		body := fmt.Sprintf("Hello,\n\nYour read job has completed successfully.\n\nStats: %s\n\nDownload Link:\n%s\n\nThis link will expire depending on your storage policy.\n", stats, downloadURL)

		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"Subject: %s\r\n"+
			"\r\n"+
			"%s\r\n", email, subject, body))

		slog.Info("Sending email via SMTP", "to", email, "host", s.Host)

		if err := smtp.SendMail(addr, s.auth(), s.From, []string{email}, msg); err != nil {
			slog.Error("Failed to send email", "error", err, "to", email)
		} else {
			slog.Info("Email sent successfully", "to", email)
		}
	}()
}

func (s *SMTPSender) SendWithAttachment(emailAddr, filename string, content []byte, stats string) {
	go func() {
		addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

		boundary := "FrameSnapshotBoundary"
		subject := "Your Frame Snapshot is Ready (Attached)"
		bodyText := fmt.Sprintf("Hello,\n\nYour read job has completed successfully.\n\nStats: %s\n\nPlease find the snapshot attached.\n", stats)

		var msg strings.Builder
		msg.WriteString(fmt.Sprintf("To: %s\r\n", emailAddr))
		msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
		msg.WriteString("MIME-Version: 1.0\r\n")
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", boundary))
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
		msg.WriteString("\r\n" + bodyText + "\r\n")

		contentType := "application/octet-stream"
		switch {
		case strings.HasSuffix(filename, ".csv"):
			contentType = "text/csv"
		case strings.HasSuffix(filename, ".json"):
			contentType = "application/json"
		case strings.HasSuffix(filename, ".gz"):
			contentType = "application/gzip"
		}

		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString(fmt.Sprintf("Content-Type: %s; name=%q\r\n", contentType, filename))
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", filename))
		msg.WriteString("\r\n")

		// RFC 2045 caps base64 lines at 76 chars.
		encoded := base64.StdEncoding.EncodeToString(content)
		for i := 0; i < len(encoded); i += 76 {
			end := i + 76
			if end > len(encoded) {
				end = len(encoded)
			}
			msg.WriteString(encoded[i:end] + "\r\n")
		}
		msg.WriteString(fmt.Sprintf("\r\n--%s--", boundary))

		slog.Info("Sending email with attachment via SMTP", "to", emailAddr, "size", len(content))

		if err := smtp.SendMail(addr, s.auth(), s.From, []string{emailAddr}, []byte(msg.String())); err != nil {
			slog.Error("Failed to send email", "error", err, "to", emailAddr)
		} else {
			slog.Info("Email sent successfully", "to", emailAddr)
		}
	}()
}
