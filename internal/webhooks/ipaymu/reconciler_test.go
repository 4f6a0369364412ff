package ipaymuwebhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/internal/transactions"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/dbtest"
	"github.com/muhamadhazim/fishit-marketplace/pkg/db/models"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ipaymu"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]struct{}{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) CallbackKey(gateway, trxID, status string) string {
	return "fishit:callback:" + gateway + ":" + trxID + ":" + status
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

// stubChecker answers with status when set, otherwise with the code recorded
// for the id in codes. Unknown ids report "0" (pending).
type stubChecker struct {
	status *ipaymu.TransactionStatus
	codes  map[string]string
	err    error
	asked  string
	calls  int
}

func (s *stubChecker) CheckTransaction(_ context.Context, id string) (*ipaymu.TransactionStatus, error) {
	s.asked = id
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.status != nil {
		return s.status, nil
	}
	code, ok := s.codes[id]
	if !ok {
		code = "0"
	}
	return &ipaymu.TransactionStatus{TransactionID: id, StatusCode: code}, nil
}

type env struct {
	client  *db.Client
	rec     *Reconciler
	store   *memoryStore
	checker *stubChecker
	seller  *models.User
	product *models.Product
}

func newEnv(t *testing.T) env {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	store := newMemoryStore()
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)
	checker := &stubChecker{codes: map[string]string{}}
	rec, err := NewReconciler(Params{
		DB:      client,
		Repo:    transactions.NewRepository(conn),
		Guard:   guard,
		Gateway: checker,
	})
	require.NoError(t, err)
	seller := dbtest.Seller(t, conn, "reelking")
	product := dbtest.Product(t, conn, seller, dbtest.Category(t, conn, "Coins"), "Golden Rod", 10000, 3)
	return env{client: client, rec: rec, store: store, checker: checker, seller: seller, product: product}
}

func (e env) gatewayTxn(t *testing.T, status enums.TransactionStatus, trxID, sid string) *models.Transaction {
	t.Helper()
	txn := dbtest.Transaction(t, e.client.DB(), e.seller, e.product, 2, status)
	require.NoError(t, e.client.DB().Model(txn).Updates(map[string]any{
		"gateway_transaction_id": trxID,
		"gateway_session_id":     sid,
	}).Error)
	return txn
}

// reports sets what the gateway says about trxID when asked.
func (e env) reports(trxID, code string) {
	e.checker.codes[trxID] = code
}

func (e env) reload(t *testing.T, id any) models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, e.client.DB().First(&txn, "id = ?", id).Error)
	return txn
}

func TestRejectsCallbackWithoutIdentifiers(t *testing.T) {
	e := newEnv(t)
	res, err := e.rec.Handle(context.Background(), Notification{StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, res.Outcome)
}

func TestPaidCallbackAppliesExactlyOnce(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	e.reports("9001", "1")
	n := Notification{TrxID: "9001", StatusCode: "1", Via: "va", Channel: "bca"}

	res, err := e.rec.Handle(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, 1, res.Updated)

	for i := 0; i < 2; i++ {
		res, err = e.rec.Handle(context.Background(), n)
		require.NoError(t, err)
		require.Equal(t, OutcomeDuplicate, res.Outcome)
	}

	got := e.reload(t, txn.ID)
	require.Equal(t, enums.TransactionStatusPaid, got.Status)
	require.Equal(t, "bca", *got.PaymentChannel)
	require.Equal(t, "va", *got.PaymentMethod)
	require.NotNil(t, got.PaidAt)
}

func TestReplayWithoutRedisIsStillANoOp(t *testing.T) {
	e := newEnv(t)
	e.rec.guard = nil
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	e.reports("9001", "1")
	n := Notification{SessionID: "sid-1", Status: "berhasil"}

	res, err := e.rec.Handle(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)

	res, err = e.rec.Handle(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Equal(t, 1, res.Matched)
	require.Equal(t, enums.TransactionStatusPaid, e.reload(t, txn.ID).Status)
}

func TestTerminalTransactionIsNotTouched(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusSuccess, "9001", "sid-1")

	for _, code := range []string{"1", "-2", "2"} {
		e.reports("9001", code)
		res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: code})
		require.NoError(t, err)
		require.Equal(t, OutcomeIgnored, res.Outcome)
	}
	require.Equal(t, enums.TransactionStatusSuccess, e.reload(t, txn.ID).Status)
	require.Equal(t, 3, dbtest.Stock(t, e.client.DB(), e.product.ID))
}

func TestExpiredCallbackRestoresStock(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")

	e.reports("9001", "-2")
	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "-2"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, enums.TransactionStatusExpired, e.reload(t, txn.ID).Status)
	require.Equal(t, 5, dbtest.Stock(t, e.client.DB(), e.product.ID))

	// a late Paid for an expired order changes nothing
	e.reports("9001", "1")
	res, err = e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Equal(t, enums.TransactionStatusExpired, e.reload(t, txn.ID).Status)
}

func TestUnknownStatusLeavesPending(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")

	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "77"})
	require.NoError(t, err)
	require.Equal(t, OutcomePending, res.Outcome)
	require.Equal(t, enums.TransactionStatusPending, e.reload(t, txn.ID).Status)
}

func TestMultiSellerCartReconciledTogether(t *testing.T) {
	e := newEnv(t)
	first := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	second := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	other := e.gatewayTxn(t, enums.TransactionStatusPending, "9002", "sid-2")
	e.reports("9001", "1")

	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", SessionID: "sid-1", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Matched)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, enums.TransactionStatusPaid, e.reload(t, first.ID).Status)
	require.Equal(t, enums.TransactionStatusPaid, e.reload(t, second.ID).Status)
	require.Equal(t, enums.TransactionStatusPending, e.reload(t, other.ID).Status)
}

func TestNotFoundReleasesDedupeKey(t *testing.T) {
	e := newEnv(t)
	e.reports("4242", "1")
	n := Notification{TrxID: "4242", StatusCode: "1"}

	res, err := e.rec.Handle(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, res.Outcome)
	require.Empty(t, e.store.keys)

	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "4242", "sid-9")
	res, err = e.rec.Handle(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, enums.TransactionStatusPaid, e.reload(t, txn.ID).Status)
}

func TestSyncUsesGatewayStatus(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	e.checker.status = &ipaymu.TransactionStatus{TransactionID: "9001", StatusCode: "1", Via: "qris", Channel: "qris"}

	res, err := e.rec.Sync(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, "9001", e.checker.asked)
	require.Equal(t, 1, e.checker.calls)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, "qris", *e.reload(t, txn.ID).PaymentMethod)

	manual := dbtest.Transaction(t, e.client.DB(), e.seller, e.product, 1, enums.TransactionStatusPending)
	_, err = e.rec.Sync(context.Background(), manual.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestForgedPaidCallbackIsNotApplied(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")

	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", Status: "berhasil", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, "9001", e.checker.asked)
	require.Equal(t, OutcomePending, res.Outcome)

	got := e.reload(t, txn.ID)
	require.Equal(t, enums.TransactionStatusPending, got.Status)
	require.Nil(t, got.PaidAt)
	require.Empty(t, e.store.keys)
}

func TestCallbackAppliesGatewayStatusOverPushedOne(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	e.reports("9001", "-2")

	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, enums.TransactionStatusExpired, res.Status)
	require.Equal(t, enums.TransactionStatusExpired, e.reload(t, txn.ID).Status)
}

func TestSessionOnlyCallbackIsConfirmedByTransactionID(t *testing.T) {
	e := newEnv(t)
	e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")

	res, err := e.rec.Handle(context.Background(), Notification{SessionID: "sid-7", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, res.Outcome)
	require.Zero(t, e.checker.calls)

	e.reports("9001", "1")
	res, err = e.rec.Handle(context.Background(), Notification{SessionID: "sid-1", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, "9001", e.checker.asked)
	require.Equal(t, OutcomeUpdated, res.Outcome)
}

func TestCallbackWithoutGatewayIsNotApplied(t *testing.T) {
	e := newEnv(t)
	e.rec.gateway = nil
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")

	res, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUnverified, res.Outcome)
	require.Equal(t, enums.TransactionStatusPending, e.reload(t, txn.ID).Status)
}

func TestCallbackGatewayFailureLeavesPending(t *testing.T) {
	e := newEnv(t)
	txn := e.gatewayTxn(t, enums.TransactionStatusPending, "9001", "sid-1")
	e.checker.err = errors.New("dial tcp: i/o timeout")

	_, err := e.rec.Handle(context.Background(), Notification{TrxID: "9001", StatusCode: "1"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGateway), "got %v", err)
	require.Equal(t, enums.TransactionStatusPending, e.reload(t, txn.ID).Status)
	require.Empty(t, e.store.keys)
}
