package ipaymuwebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/metrics"
)

// Notification is an inbound payment status push from iPaymu.
type Notification struct {
	TrxID       string `json:"trx_id"`
	SessionID   string `json:"sid"`
	Status      string `json:"status"`
	StatusCode  string `json:"status_code"`
	Via         string `json:"via"`
	Channel     string `json:"channel"`
	ReferenceID string `json:"reference_id"`
}

// Outcome says what a callback did; it is echoed back in the ack body.
type Outcome string

const (
	OutcomeRejected   Outcome = "rejected"
	OutcomeUnverified Outcome = "unverified"
	OutcomeNotFound   Outcome = "not_found"
	OutcomePending    Outcome = "pending"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUpdated    Outcome = "updated"
)

type Result struct {
	Outcome Outcome                 `json:"outcome"`
	Status  enums.TransactionStatus `json:"status,omitempty"`
	Matched int                     `json:"matched"`
	Updated int                     `json:"updated"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusChecker interface {
	CheckTransaction(ctx context.Context, transactionID string) (*ipaymu.TransactionStatus, error)
}

// Reconciler applies gateway notifications to pending transactions. Only
// Pending rows move, through a conditional update, so replays and late
// deliveries are no-ops.
type Reconciler struct {
	db      txRunner
	repo    *transactions.Repository
	machine *transactions.Machine
	guard   *Guard
	gateway statusChecker
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

type Params struct {
	DB      txRunner
	Repo    *transactions.Repository
	Machine *transactions.Machine
	Guard   *Guard
	Gateway statusChecker
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

func NewReconciler(p Params) (*Reconciler, error) {
	if p.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository required")
	}
	if p.Machine == nil {
		p.Machine = transactions.NewMachine(nil)
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Reconciler{
		db:      p.DB,
		repo:    p.Repo,
		machine: p.Machine,
		guard:   p.Guard,
		gateway: p.Gateway,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     time.Now,
	}, nil
}

// Handle reconciles one pushed notification. The push is unauthenticated, so
// any status other than Pending is confirmed with the gateway first and the
// gateway's answer is what gets applied. Business outcomes such as an unknown
// transaction are reported in the result, never as errors.
func (r *Reconciler) Handle(ctx context.Context, n Notification) (*Result, error) {
	n = n.normalized()
	if n.TrxID == "" && n.SessionID == "" {
		r.metrics.IncCallback(string(OutcomeRejected))
		r.logg.Warn(r.logg.WithField(ctx, "event", "callback.rejected"), "callback carries no transaction or session id")
		return &Result{Outcome: OutcomeRejected}, nil
	}

	ctx = r.logg.WithFields(ctx, map[string]any{
		"gateway_trx_id":     n.TrxID,
		"gateway_session_id": n.SessionID,
		"reference_id":       n.ReferenceID,
	})

	if pushed, _ := ipaymu.MapStatus(n.code()); pushed == enums.TransactionStatusPending {
		return r.reconcile(ctx, n)
	}
	confirmed, res, err := r.confirm(ctx, n)
	if err != nil {
		r.metrics.IncCallback("error")
		return nil, err
	}
	if res != nil {
		return r.finish(res), nil
	}
	return r.reconcile(ctx, confirmed)
}

// confirm replaces the pushed status with the one the gateway reports. A
// non-nil result ends handling without touching any row.
func (r *Reconciler) confirm(ctx context.Context, n Notification) (Notification, *Result, error) {
	if r.gateway == nil {
		r.logg.Warn(r.logg.WithField(ctx, "event", "callback.unverified"), "no gateway configured to confirm callback status")
		return n, &Result{Outcome: OutcomeUnverified}, nil
	}

	trxID := n.TrxID
	if trxID == "" {
		matches, err := r.repo.FindByGatewayRef(ctx, "", n.SessionID)
		if err != nil {
			return n, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find transactions by gateway session")
		}
		for _, txn := range matches {
			if txn.GatewayTransactionID != nil && *txn.GatewayTransactionID != "" {
				trxID = *txn.GatewayTransactionID
				break
			}
		}
		if trxID == "" {
			r.logg.Warn(r.logg.WithField(ctx, "event", "callback.not_found"), "no transaction matches callback")
			return n, &Result{Outcome: OutcomeNotFound}, nil
		}
	}

	remote, err := r.gateway.CheckTransaction(ctx, trxID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return n, nil, typed
		}
		return n, nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "confirm callback status")
	}
	if remote == nil {
		return n, nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no transaction status")
	}

	pushed, _ := ipaymu.MapStatus(n.code())
	if confirmed, _ := ipaymu.MapStatus(remote.StatusCode); confirmed != pushed {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"event":       "callback.status_mismatch",
			"pushed":      n.code(),
			"confirmed":   remote.StatusCode,
			"gateway_trx": trxID,
		}), "gateway status differs from callback")
	}
	n.StatusCode = remote.StatusCode
	n.Status = ""
	if remote.Via != "" {
		n.Via = remote.Via
	}
	if remote.Channel != "" {
		n.Channel = remote.Channel
	}
	return n, nil, nil
}

// reconcile applies a status already known to come from the gateway.
func (r *Reconciler) reconcile(ctx context.Context, n Notification) (*Result, error) {
	code := n.code()
	status, known := ipaymu.MapStatus(code)
	if !known {
		r.metrics.IncUnknownStatus(code)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"event":       "callback.unknown_status",
			"status_code": code,
		}), "unrecognised gateway status treated as pending")
	}
	if status == enums.TransactionStatusPending {
		return r.finish(&Result{Outcome: OutcomePending, Status: status}), nil
	}

	ref := n.ref()
	if r.guard != nil {
		seen, err := r.guard.CheckAndMark(ctx, ref, string(status))
		if err != nil {
			// redis trouble should not stop reconciliation; the DB guard still holds
			r.logg.Error(ctx, "callback dedupe check failed", err)
		} else if seen {
			return r.finish(&Result{Outcome: OutcomeDuplicate, Status: status}), nil
		}
	}

	res, err := r.apply(ctx, n, status)
	if err != nil || res.Outcome == OutcomeNotFound {
		r.release(ctx, ref, status)
	}
	if err != nil {
		r.metrics.IncCallback("error")
		return nil, err
	}
	return r.finish(res), nil
}

func (r *Reconciler) apply(ctx context.Context, n Notification, status enums.TransactionStatus) (*Result, error) {
	res := &Result{Status: status}
	change := transactions.Change{To: status}
	if status == enums.TransactionStatusPaid {
		paidAt := r.now().UTC()
		change.PaidAt = &paidAt
		change.PaymentChannel = optional(n.Channel)
		change.PaymentMethod = optional(n.Via)
	}

	var moved []string
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		matches, err := r.repo.WithTx(tx).FindByGatewayRef(ctx, n.TrxID, n.SessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find transactions by gateway reference")
		}
		res.Matched = len(matches)
		for i := range matches {
			txn := &matches[i]
			if txn.Status != enums.TransactionStatusPending {
				continue
			}
			applied, err := r.machine.Apply(ctx, tx, txn, change)
			if err != nil {
				return err
			}
			if applied {
				moved = append(moved, txn.InvoiceNumber)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Updated = len(moved)
	switch {
	case res.Matched == 0:
		res.Outcome = OutcomeNotFound
		r.logg.Warn(r.logg.WithField(ctx, "event", "callback.not_found"), "no transaction matches callback")
	case res.Updated == 0:
		res.Outcome = OutcomeIgnored
	default:
		res.Outcome = OutcomeUpdated
		for range moved {
			r.metrics.IncTransition(string(enums.TransactionStatusPending), string(status))
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"event":    "callback.applied",
			"status":   status,
			"invoices": moved,
		}), "callback reconciled")
	}
	return res, nil
}

// Sync asks the gateway for the current status of a transaction and applies it
// exactly like a pushed notification.
func (r *Reconciler) Sync(ctx context.Context, transactionID uuid.UUID) (*Result, error) {
	if r.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment gateway not configured")
	}
	txn, err := r.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.GatewayTransactionID == nil || *txn.GatewayTransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction has no gateway reference")
	}

	remote, err := r.gateway.CheckTransaction(ctx, *txn.GatewayTransactionID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "check gateway transaction")
	}

	n := Notification{
		TrxID:       *txn.GatewayTransactionID,
		StatusCode:  remote.StatusCode,
		Via:         remote.Via,
		Channel:     remote.Channel,
		ReferenceID: remote.ReferenceID,
	}
	if txn.GatewaySessionID != nil {
		n.SessionID = *txn.GatewaySessionID
	}
	n = n.normalized()
	ctx = r.logg.WithFields(ctx, map[string]any{
		"gateway_trx_id":     n.TrxID,
		"gateway_session_id": n.SessionID,
		"reference_id":       n.ReferenceID,
	})
	return r.reconcile(ctx, n)
}

func (r *Reconciler) finish(res *Result) *Result {
	r.metrics.IncCallback(string(res.Outcome))
	return res
}

func (r *Reconciler) release(ctx context.Context, ref string, status enums.TransactionStatus) {
	if r.guard == nil {
		return
	}
	if err := r.guard.Release(context.WithoutCancel(ctx), ref, string(status)); err != nil {
		r.logg.Error(ctx, "release callback dedupe key", err)
	}
}

func (n Notification) normalized() Notification {
	n.TrxID = strings.TrimSpace(n.TrxID)
	n.SessionID = strings.TrimSpace(n.SessionID)
	n.Status = strings.TrimSpace(n.Status)
	n.StatusCode = strings.TrimSpace(n.StatusCode)
	n.Via = strings.TrimSpace(n.Via)
	n.Channel = strings.TrimSpace(n.Channel)
	n.ReferenceID = strings.TrimSpace(n.ReferenceID)
	return n
}

// code prefers the numeric status_code and falls back to the status word.
func (n Notification) code() string {
	if n.StatusCode != "" {
		return n.StatusCode
	}
	return n.Status
}

func (n Notification) ref() string {
	if n.TrxID != "" {
		return n.TrxID
	}
	return fmt.Sprintf("sid:%s", n.SessionID)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
