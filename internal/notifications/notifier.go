package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/mailer"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	sendTimeout       = 30 * time.Second
)

// Options tunes delivery retries and the links rendered into emails.
type Options struct {
	PublicBaseURL string
	MaxRetries    uint64
	Backoff       time.Duration
}

// Notifier sends transactional email in the background. A failed send is
// retried with exponential backoff, then logged; it never reaches the caller.
type Notifier struct {
	mailer  mailer.Mailer
	logg    *logger.Logger
	baseURL string
	retries uint64
	backoff time.Duration
	wg      sync.WaitGroup
}

func New(m mailer.Mailer, logg *logger.Logger, opts Options) *Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Notifier{
		mailer:  m,
		logg:    logg,
		baseURL: opts.PublicBaseURL,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
}

// SendInvoice queues the order confirmation for the buyer.
func (n *Notifier) SendInvoice(ctx context.Context, invoice Invoice) {
	if n == nil {
		return
	}
	n.dispatch(ctx, "invoice", renderInvoice(invoice, n.baseURL))
}

// SendVerification queues the email verification link for a new seller.
func (n *Notifier) SendVerification(ctx context.Context, to, username, token string) {
	if n == nil {
		return
	}
	n.dispatch(ctx, "verification", renderVerification(to, username, token, n.baseURL))
}

func (n *Notifier) dispatch(ctx context.Context, kind string, msg mailer.Message) {
	if n == nil || n.mailer == nil {
		return
	}
	// the request context ends with the response; keep its values only
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		attempts := 0
		backoff := retry.WithMaxRetries(n.retries, retry.NewExponential(n.backoff))
		err := retry.Do(sendCtx, backoff, func(ctx context.Context) error {
			attempts++
			err := n.mailer.Send(ctx, msg)
			if err == nil || errors.Is(err, mailer.ErrPermanent) {
				return err
			}
			return retry.RetryableError(err)
		})

		logCtx := n.logg.WithFields(ctx, map[string]any{
			"kind":     kind,
			"to":       msg.To,
			"attempts": attempts,
		})
		if err != nil {
			logCtx = n.logg.WithField(logCtx, "event", "email.send_failed")
			n.logg.Error(logCtx, "email delivery failed", err)
			return
		}
		n.logg.Debug(n.logg.WithField(logCtx, "event", "email.sent"), "email delivered")
	}()
}

// Wait blocks until queued emails finish or ctx ends.
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pending emails: %w", ctx.Err())
	}
}
