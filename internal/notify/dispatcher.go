package notify

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// TokenPlaceholder is replaced by the escaped token in link templates.
const TokenPlaceholder = "{token}"

const (
	defaultQueueSize = 100
	defaultWorkers   = 2
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	ResetURL  string
	VerifyURL string
	QueueSize int
	Workers   int
}

// Dispatcher turns notifications into e-mails and delivers them in the
// background. It implements model.Notifier; delivery failures are logged.
type Dispatcher struct {
	mailer    Mailer
	queue     chan model.Message
	workers   int
	resetURL  string
	verifyURL string
	logger    *logger.Logger
}

func NewDispatcher(mailer Mailer, cfg DispatcherConfig, logger *logger.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Dispatcher{
		mailer:    mailer,
		queue:     make(chan model.Message, cfg.QueueSize),
		workers:   cfg.Workers,
		resetURL:  cfg.ResetURL,
		verifyURL: cfg.VerifyURL,
		logger:    logger,
	}
}

func (d *Dispatcher) SendPasswordReset(_ context.Context, to string, token string) {
	d.enqueue(model.Message{
		To:      to,
		Subject: "Reset your password",
		Body:    "Click to reset your password: " + link(d.resetURL, token),
	})
}

func (d *Dispatcher) SendVerification(_ context.Context, to string, token string) {
	d.enqueue(model.Message{
		To:      to,
		Subject: "Verify your account",
		Body:    "Click to verify your account: " + link(d.verifyURL, token),
	})
}

func (d *Dispatcher) enqueue(msg model.Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Error("Dispatcher: queue full, message dropped",
			"subject", msg.Subject)
	}
}

// Run delivers queued messages with the configured number of workers until
// ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()

	if n := len(d.queue); n > 0 {
		d.logger.Warn("Dispatcher: stopped with undelivered messages",
			"count", n)
	}
	return err
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			if err := d.mailer.Send(ctx, msg); err != nil {
				d.logger.Error("Dispatcher: failed to deliver message",
					"subject", msg.Subject,
					"error", err.Error())
			}
		}
	}
}

func link(template, token string) string {
	escaped := url.PathEscape(token)
	if !strings.Contains(template, TokenPlaceholder) {
		return strings.TrimRight(template, "/") + "/" + escaped
	}
	return strings.ReplaceAll(template, TokenPlaceholder, escaped)
}

var _ model.Notifier = (*Dispatcher)(nil)
