// Package email notifies requesters when their read job finishes.
package email

import (
	"log/slog"
	"time"
)

type Sender interface {
	SendDownloadLink(email, downloadURL string, stats string)
	SendWithAttachment(email, filename string, content []byte, stats string)
}

// LogSender logs instead of sending. It is the development default and the
// fallback when no SMTP host is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendDownloadLink(email, downloadURL string, stats string) {
	go func() {
		// Keep the async shape of a real sender.
		time.Sleep(100 * time.Millisecond)
		slog.Info("EMAIL SENT",
			"to", email,
			"url", downloadURL,
			"stats", stats,
		)
	}()
}

func (s *LogSender) SendWithAttachment(email, filename string, content []byte, stats string) {
	go func() {
		time.Sleep(100 * time.Millisecond)
		slog.Info("EMAIL SENT WITH ATTACHMENT",
			"to", email,
			"filename", filename,
			"size", len(content),
			"stats", stats,
		)
	}()
}
