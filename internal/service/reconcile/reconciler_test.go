package reconcile_test

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/provider"
	"github.com/corepay/ledger-service/internal/repository"
	"github.com/corepay/ledger-service/internal/service"
	"github.com/corepay/ledger-service/internal/service/reconcile"
	"github.com/corepay/ledger-service/internal/testutil"
)

type fixture struct {
	db         *sql.DB
	store      *repository.Store
	reconciler *reconcile.Reconciler
	svc        *service.TransactionService
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	store := repository.NewStore(db)
	logger := slog.Default()

	return &fixture{
		db:         db,
		store:      store,
		reconciler: reconcile.New(store, logger),
		svc:        service.NewTransactionService(store, logger),
	}
}

func (f *fixture) initiateDeposit(t *testing.T, accountID uuid.UUID, amount, fee int64, currency domain.Currency, key string) *domain.Transaction {
	t.Helper()
	tx, err := f.svc.Initiate(context.Background(), service.InitiateRequest{
		Type:           domain.TransactionTypeDeposit,
		AccountID:      accountID,
		AmountMinor:    amount,
		FeeMinor:       fee,
		Currency:       currency,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return tx
}

func succeededEvent(transactionID uuid.UUID, reference string) *provider.Event {
	return &provider.Event{
		Type:       provider.EventPaymentSucceeded,
		RawType:    "payment.succeeded",
		DeliveryID: "dlv_" + uuid.NewString(),
		Data: provider.EventData{
			TransactionID:     transactionID.String(),
			ExternalReference: reference,
		},
	}
}

func failedEvent(transactionID uuid.UUID) *provider.Event {
	return &provider.Event{
		Type:       provider.EventPaymentFailed,
		RawType:    "payment.failed",
		DeliveryID: "dlv_" + uuid.NewString(),
		Data: provider.EventData{
			TransactionID: transactionID.String(),
			ErrorCode:     "card_declined",
			ErrorMessage:  "insufficient funds",
		},
	}
}

func TestSettleDeposit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyCredit, 0)
	tx := f.initiateDeposit(t, account.ID, 1000, 50, domain.CurrencyCredit, "K1")

	require.NoError(t, f.reconciler.Process(ctx, "stripe", succeededEvent(tx.ID, "pi_settle_1")))

	got, err := f.store.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ExternalReference)
	assert.Equal(t, "pi_settle_1", got.ExternalReference.String())

	// customer sees one credit of amount minus fee; the settlement account
	// carries the matching debit
	assert.Equal(t, int64(950), testutil.GetAccountBalance(t, f.db, account.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, f.db, tx.ID))

	entries, err := f.store.Ledger.GetByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	var customerCredits int
	for _, e := range entries {
		if e.AccountID == account.ID {
			customerCredits++
			assert.Equal(t, domain.EntryTypeCredit, e.EntryType)
			assert.Equal(t, int64(950), e.Amount)
			assert.Equal(t, int64(0), e.BalanceBefore)
			assert.Equal(t, int64(950), e.BalanceAfter)
		}
	}
	assert.Equal(t, 1, customerCredits)
	assert.Equal(t, int64(-950), testutil.GetAccountBalance(t, f.db, testutil.SettlementCreditID))
}

func TestSettleDeposit_ReplayedDeliveries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 0)
	tx := f.initiateDeposit(t, account.ID, 1000, 50, domain.CurrencyUSD, "K-replay")

	// at-least-once delivery: the same event arrives ten times
	for range 10 {
		require.NoError(t, f.reconciler.Process(ctx, "stripe", succeededEvent(tx.ID, "pi_replay")))
	}

	assert.Equal(t, domain.TransactionStatusCompleted, testutil.GetTransactionStatus(t, f.db, tx.ID))
	assert.Equal(t, int64(950), testutil.GetAccountBalance(t, f.db, account.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, f.db, tx.ID))
}

func TestSettle_OutOfOrderFailureIgnored(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 0)
	tx := f.initiateDeposit(t, account.ID, 1000, 0, domain.CurrencyUSD, "K-order")

	require.NoError(t, f.reconciler.Process(ctx, "stripe", succeededEvent(tx.ID, "pi_order")))
	// a stale failure delivered after settlement must not regress the state
	require.NoError(t, f.reconciler.Process(ctx, "stripe", failedEvent(tx.ID)))

	got, err := f.store.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	assert.Nil(t, got.ErrorDetails)
	assert.Equal(t, int64(1000), testutil.GetAccountBalance(t, f.db, account.ID))
}

func TestFail_RecordsErrorDetails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 0)
	tx := f.initiateDeposit(t, account.ID, 1000, 0, domain.CurrencyUSD, "K-fail")

	require.NoError(t, f.reconciler.Process(ctx, "stripe", failedEvent(tx.ID)))

	got, err := f.store.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetails)
	assert.Equal(t, "card_declined", got.ErrorDetails.Code)
	assert.Equal(t, "insufficient funds", got.ErrorDetails.Message)

	// no money moves on failure
	assert.Equal(t, int64(0), testutil.GetAccountBalance(t, f.db, account.ID))
	assert.Equal(t, 0, testutil.CountLedgerEntries(t, f.db, tx.ID))
}

func TestSettleWithdrawal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyEUR, 5000)
	tx, err := f.svc.Initiate(ctx, service.InitiateRequest{
		Type:           domain.TransactionTypeWithdrawal,
		AccountID:      account.ID,
		AmountMinor:    2000,
		FeeMinor:       100,
		Currency:       domain.CurrencyEUR,
		IdempotencyKey: "K-withdraw",
	})
	require.NoError(t, err)

	ev := succeededEvent(tx.ID, "po_1")
	ev.Type = provider.EventPayoutSucceeded
	require.NoError(t, f.reconciler.Process(ctx, "partnerbank", ev))

	// full amount leaves the account; the fee stays with the settlement side
	assert.Equal(t, int64(3000), testutil.GetAccountBalance(t, f.db, account.ID))
	assert.Equal(t, int64(2000), testutil.GetAccountBalance(t, f.db, testutil.SettlementEURID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, f.db, tx.ID))
}

func TestSettleTransfer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	from := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 5000)
	to := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 100)

	counterparty := to.ID
	tx, err := f.svc.Initiate(ctx, service.InitiateRequest{
		Type:           domain.TransactionTypeTransfer,
		AccountID:      from.ID,
		CounterpartyID: &counterparty,
		AmountMinor:    1000,
		FeeMinor:       50,
		Currency:       domain.CurrencyUSD,
		IdempotencyKey: "K-transfer",
	})
	require.NoError(t, err)

	require.NoError(t, f.reconciler.Process(ctx, "stripe", succeededEvent(tx.ID, "tr_1")))

	assert.Equal(t, int64(4000), testutil.GetAccountBalance(t, f.db, from.ID))
	assert.Equal(t, int64(1050), testutil.GetAccountBalance(t, f.db, to.ID))
	assert.Equal(t, int64(50), testutil.GetAccountBalance(t, f.db, testutil.SettlementUSDID))
	assert.Equal(t, 3, testutil.CountLedgerEntries(t, f.db, tx.ID))

	entries, err := f.store.Ledger.GetByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.NoError(t, domain.CheckConservation(entries))
}

func TestSettleRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 0)
	parent := f.initiateDeposit(t, account.ID, 1000, 0, domain.CurrencyUSD, "K-parent")
	require.NoError(t, f.reconciler.Process(ctx, "stripe", succeededEvent(parent.ID, "pi_parent")))

	refund, err := f.svc.InitiateRefund(ctx, parent.ID, 400, "K-refund", "stripe")
	require.NoError(t, err)
	require.NotNil(t, refund.ParentTransactionID)
	assert.Equal(t, parent.ID, *refund.ParentTransactionID)
	require.NotNil(t, refund.SourceAccountID)
	assert.Equal(t, account.ID, *refund.SourceAccountID)

	ev := succeededEvent(refund.ID, "re_1")
	ev.Type = provider.EventRefundSucceeded
	require.NoError(t, f.reconciler.Process(ctx, "stripe", ev))

	assert.Equal(t, int64(600), testutil.GetAccountBalance(t, f.db, account.ID))
	assert.Equal(t, domain.TransactionStatusCompleted, testutil.GetTransactionStatus(t, f.db, refund.ID))
}

func TestResolve_FallsBackToExternalReference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	account := testutil.SeedCustomerAccount(t, f.db, domain.CurrencyUSD, 0)
	tx := f.initiateDeposit(t, account.ID, 1000, 0, domain.CurrencyUSD, "K-ref")

	// provider acknowledged first and attached its reference
	ackEv := &provider.Event{
		Type:       provider.EventPaymentMethodVerified,
		DeliveryID: "dlv_ack",
		Data:       provider.EventData{TransactionID: tx.ID.String(), ExternalReference: "pi_ref_1"},
	}
	require.NoError(t, f.reconciler.Process(ctx, "stripe", ackEv))
	assert.Equal(t, domain.TransactionStatusProcessing, testutil.GetTransactionStatus(t, f.db, tx.ID))

	// the settlement event carries only the provider reference
	ev := &provider.Event{
		Type:       provider.EventPaymentSucceeded,
		DeliveryID: "dlv_settle",
		Data:       provider.EventData{ExternalReference: "pi_ref_1"},
	}
	require.NoError(t, f.reconciler.Process(ctx, "stripe", ev))

	assert.Equal(t, domain.TransactionStatusCompleted, testutil.GetTransactionStatus(t, f.db, tx.ID))
	assert.Equal(t, int64(1000), testutil.GetAccountBalance(t, f.db, account.ID))
}

func TestProcess_UnresolvableEventAcknowledged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := succeededEvent(uuid.New(), "pi_never_seen")
	assert.NoError(t, f.reconciler.Process(ctx, "stripe", ev))
}

func TestProcess_UnknownEventTypeAcknowledged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := &provider.Event{Type: provider.EventUnknown, RawType: "invoice.finalized", DeliveryID: "dlv_x"}
	assert.NoError(t, f.reconciler.Process(ctx, "stripe", ev))
}
