package email

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.EmailSender = (*ConsoleSender)(nil)

// ConsoleSender writes messages to a writer instead of delivering them. It is the
// local-development transport: the link is readable in the terminal but never
// reaches the structured log.
type ConsoleSender struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewConsoleSender writes to w, or stderr when w is nil.
func NewConsoleSender(w io.Writer, logger *slog.Logger) *ConsoleSender {
	if w == nil {
		w = os.Stderr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSender{w: w, logger: logger.With("component", "email_console")}
}

func (s *ConsoleSender) Send(ctx context.Context, msg ports.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "----- email -----\nTo: %s\nSubject: %s\n\n%s\n-----------------\n",
		msg.To, msg.Subject, msg.Text); err != nil {
		return fmt.Errorf("write console email: %w", err)
	}
	s.logger.InfoContext(ctx, "email written to console", "to", msg.To, "subject", msg.Subject)
	return nil
}
