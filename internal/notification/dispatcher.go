package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"govbook/internal/platform/config"
	txcontext "govbook/pkg/platform/tx"
)

const dispatchBatchSize = 100

// Contacts resolves a user's delivery addresses.
type Contacts interface {
	Contact(ctx context.Context, userID int64) (email, phone string, err error)
}

// Channel delivers one notification over an external medium. Delivery runs
// outside the storage transaction; a failed channel leaves the row
// undelivered for the next sweep.
type Channel interface {
	Name() string
	Send(ctx context.Context, email, phone string, n Notification) error
}

// Dispatcher sweeps undelivered notification rows and pushes them through the
// configured channels. Rows are claimed with a locked batch read so several
// dispatcher replicas never double-send.
type Dispatcher struct {
	store    Store
	contacts Contacts
	channels []Channel
	runner   txcontext.Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewDispatcher(
	store Store,
	contacts Contacts,
	channels []Channel,
	runner txcontext.Runner,
	interval time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Dispatcher{
		store:    store,
		contacts: contacts,
		channels: channels,
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run delivers until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.ErrorContext(ctx, "notification dispatch failed", "error", err)
			}
		}
	}
}

// DispatchOnce claims one batch and delivers it. Exported so tests and
// one-shot maintenance commands can drive the dispatcher directly.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	return d.runner.RunInTx(ctx, func(ctx context.Context) error {
		batch, err := d.store.ListUndelivered(ctx, dispatchBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		delivered := make([]int64, 0, len(batch))
		for _, n := range batch {
			email, phone, err := d.contacts.Contact(ctx, n.UserID)
			if err != nil {
				d.logger.WarnContext(ctx, "cannot resolve notification recipient",
					"notification_id", n.ID, "user_id", n.UserID, "error", err)
				// Unresolvable recipients are dropped from the queue rather
				// than retried forever.
				delivered = append(delivered, n.ID)
				continue
			}
			if d.send(ctx, email, phone, n) {
				delivered = append(delivered, n.ID)
			}
		}
		return d.store.MarkDelivered(ctx, delivered)
	})
}

func (d *Dispatcher) send(ctx context.Context, email, phone string, n Notification) bool {
	ok := true
	for _, ch := range d.channels {
		if err := ch.Send(ctx, email, phone, n); err != nil {
			d.logger.WarnContext(ctx, "notification channel failed",
				"channel", ch.Name(), "notification_id", n.ID, "error", err)
			ok = false
		}
	}
	return ok
}

// SMTPChannel sends notifications by email.
type SMTPChannel struct {
	cfg config.NotifyConfig
}

func NewSMTPChannel(cfg config.NotifyConfig) *SMTPChannel {
	return &SMTPChannel{cfg: cfg}
}

func (c *SMTPChannel) Name() string { return "smtp" }

func (c *SMTPChannel) Send(_ context.Context, email, _ string, n Notification) error {
	if email == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		c.cfg.SMTPFrom, email, n.Title, n.Message)

	var auth smtp.Auth
	if c.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", c.cfg.SMTPUser, c.cfg.SMTPPassword, c.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, c.cfg.SMTPFrom, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogChannel writes deliveries to the log. Used when no SMS gateway is
// configured, so local environments still see outbound traffic.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, email, phone string, n Notification) error {
	c.logger.InfoContext(ctx, "notification delivered",
		"notification_id", n.ID, "email", email, "phone", phone, "title", n.Title)
	return nil
}
