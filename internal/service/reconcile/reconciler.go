// Package reconcile drives transaction state transitions from verified,
// normalized provider webhook events. Delivery is at-least-once and
// unordered; the terminal-state guard plus the store's conditional status
// update make every redelivery and out-of-order arrival a no-op.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/provider"
	"github.com/corepay/ledger-service/internal/repository"
)

type Reconciler struct {
	store  *repository.Store
	logger *slog.Logger
}

func New(store *repository.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Process applies exactly one application-level state transition for the
// event, or none when the event is unknown, unresolvable, or refers to a
// transaction that already reached a terminal state. Only persistence
// failures return an error; the HTTP layer still acknowledges those with a
// 200 so the provider does not retry-storm the endpoint.
func (r *Reconciler) Process(ctx context.Context, providerCode string, ev *provider.Event) error {
	log := r.logger.With(
		"provider", providerCode,
		"delivery_id", ev.DeliveryID,
		"event_type", ev.Type,
	)

	switch ev.Type {
	case provider.EventPaymentSucceeded, provider.EventPayoutSucceeded, provider.EventRefundSucceeded:
		return r.settle(ctx, log, providerCode, ev)
	case provider.EventPaymentFailed, provider.EventPayoutFailed, provider.EventRefundFailed:
		return r.fail(ctx, log, ev)
	case provider.EventPaymentMethodVerified:
		return r.markProcessing(ctx, log, ev)
	default:
		log.Info("unrecognized provider event type acknowledged", "raw_type", ev.RawType)
		return nil
	}
}

// resolve correlates the event to a transaction: the embedded metadata id
// first, then the provider's own reference. A miss is not an error; the
// event may refer to a transaction this system never initiated.
func (r *Reconciler) resolve(ctx context.Context, ev *provider.Event) (*domain.Transaction, error) {
	if id, err := uuid.Parse(ev.Data.TransactionID); err == nil {
		t, err := r.store.Transactions.GetByID(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if ev.Data.ExternalReference != "" {
		ref, err := domain.NewExternalReference(ev.Data.ExternalReference)
		if err != nil {
			return nil, fmt.Errorf("resolve: %w", domain.ErrNotFound)
		}
		return r.store.Transactions.GetByExternalReference(ctx, ref)
	}

	return nil, fmt.Errorf("resolve: %w", domain.ErrNotFound)
}

func (r *Reconciler) settle(ctx context.Context, log *slog.Logger, providerCode string, ev *provider.Event) error {
	t, err := r.resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("no transaction resolved for event, acknowledged",
				"transaction_id", ev.Data.TransactionID,
				"external_reference", ev.Data.ExternalReference,
			)
			return nil
		}
		return fmt.Errorf("settle: %w", err)
	}

	if t.IsTerminal() {
		log.Info("transaction already terminal, skipping", "transaction_id", t.ID, "status", t.Status)
		return nil
	}

	now := time.Now().UTC()
	externalRef := eventReference(ev)

	err = r.store.WithinTx(ctx, func(scope *repository.Store) error {
		ok, err := scope.Transactions.TransitionStatus(ctx, t.ID, domain.TransactionStatusCompleted, externalRef, nil, &now)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent or earlier delivery won the conditional update.
			// That is the idempotency mechanism firing, not a failure.
			log.Info("transaction transitioned concurrently, skipping", "transaction_id", t.ID)
			return nil
		}

		posts, err := r.settlementPostings(ctx, scope, t)
		if err != nil {
			return err
		}
		if err := r.postEntries(ctx, scope, t, posts, now); err != nil {
			return err
		}

		log.Info("transaction settled",
			"transaction_id", t.ID,
			"type", t.Type,
			"amount", t.Amount.Amount,
			"fee", t.Fee.Amount,
			"currency", t.Amount.Currency,
			"provider", providerCode,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

func (r *Reconciler) fail(ctx context.Context, log *slog.Logger, ev *provider.Event) error {
	t, err := r.resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("no transaction resolved for event, acknowledged",
				"transaction_id", ev.Data.TransactionID,
				"external_reference", ev.Data.ExternalReference,
			)
			return nil
		}
		return fmt.Errorf("fail: %w", err)
	}

	if t.IsTerminal() {
		log.Info("transaction already terminal, skipping", "transaction_id", t.ID, "status", t.Status)
		return nil
	}

	now := time.Now().UTC()
	details := &domain.ErrorDetails{Code: ev.Data.ErrorCode, Message: ev.Data.ErrorMessage}

	ok, err := r.store.Transactions.TransitionStatus(ctx, t.ID, domain.TransactionStatusFailed, eventReference(ev), details, &now)
	if err != nil {
		return fmt.Errorf("fail: %w", err)
	}
	if !ok {
		log.Info("transaction transitioned concurrently, skipping", "transaction_id", t.ID)
		return nil
	}

	log.Info("transaction marked failed",
		"transaction_id", t.ID,
		"error_code", ev.Data.ErrorCode,
		"error_message", ev.Data.ErrorMessage,
	)
	return nil
}

// markProcessing handles the optional provider acknowledgment hop. A
// transaction that already moved past pending absorbs it silently.
func (r *Reconciler) markProcessing(ctx context.Context, log *slog.Logger, ev *provider.Event) error {
	t, err := r.resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("no transaction resolved for event, acknowledged")
			return nil
		}
		return fmt.Errorf("markProcessing: %w", err)
	}

	ok, err := r.store.Transactions.TransitionStatus(ctx, t.ID, domain.TransactionStatusProcessing, eventReference(ev), nil, nil)
	if err != nil {
		return fmt.Errorf("markProcessing: %w", err)
	}
	if ok {
		log.Info("transaction processing", "transaction_id", t.ID)
	}
	return nil
}

type posting struct {
	accountID uuid.UUID
	entryType domain.EntryType
	amount    int64
}

// settlementPostings translates a settled transaction into balanced
// debit/credit pairs. The per-currency settlement account is the
// counterparty for money crossing the provider boundary, which is what makes
// per-transaction conservation hold.
func (r *Reconciler) settlementPostings(ctx context.Context, scope *repository.Store, t *domain.Transaction) ([]posting, error) {
	settlement, err := scope.Accounts.GetSettlement(ctx, t.Amount.Currency)
	if err != nil {
		return nil, err
	}

	net := t.NetAmount()
	switch t.Type {
	case domain.TransactionTypeDeposit:
		if net == 0 {
			return nil, nil
		}
		return []posting{
			{settlement.ID, domain.EntryTypeDebit, net},
			{*t.DestinationAccountID, domain.EntryTypeCredit, net},
		}, nil
	case domain.TransactionTypeWithdrawal, domain.TransactionTypeRefund:
		return []posting{
			{*t.SourceAccountID, domain.EntryTypeDebit, t.Amount.Amount},
			{settlement.ID, domain.EntryTypeCredit, t.Amount.Amount},
		}, nil
	case domain.TransactionTypeTransfer:
		posts := []posting{
			{*t.SourceAccountID, domain.EntryTypeDebit, t.Amount.Amount},
		}
		if net > 0 {
			posts = append(posts, posting{*t.DestinationAccountID, domain.EntryTypeCredit, net})
		}
		if t.Fee.Amount > 0 {
			posts = append(posts, posting{settlement.ID, domain.EntryTypeCredit, t.Fee.Amount})
		}
		return posts, nil
	}
	return nil, fmt.Errorf("settlementPostings: unknown transaction type %q", t.Type)
}

// postEntries locks the affected accounts in a deterministic order, writes
// the entry batch with balance snapshots, and persists the new balances.
func (r *Reconciler) postEntries(ctx context.Context, scope *repository.Store, t *domain.Transaction, posts []posting, now time.Time) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(posts))
	seen := make(map[uuid.UUID]bool, len(posts))
	for _, p := range posts {
		if !seen[p.accountID] {
			seen[p.accountID] = true
			ids = append(ids, p.accountID)
		}
	}
	// Lock in sorted order so concurrent settlements cannot deadlock.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	accounts := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range ids {
		a, err := scope.Accounts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		accounts[id] = a
	}

	entries := make([]domain.LedgerEntry, 0, len(posts))
	for _, p := range posts {
		a := accounts[p.accountID]
		e, err := domain.NewLedgerEntry(t.ID, p.accountID, p.entryType, p.amount, t.Amount.Currency, a.Balance, now)
		if err != nil {
			return err
		}
		a.Balance = e.BalanceAfter
		entries = append(entries, *e)
	}

	if err := domain.CheckConservation(entries); err != nil {
		return err
	}
	if err := scope.Ledger.CreateBatch(ctx, entries); err != nil {
		return err
	}

	for _, id := range ids {
		a := accounts[id]
		if err := scope.Accounts.UpdateBalance(ctx, id, a.Balance, a.Version+1); err != nil {
			return err
		}
	}
	return nil
}

func eventReference(ev *provider.Event) *domain.ExternalReference {
	if ev.Data.ExternalReference == "" {
		return nil
	}
	ref, err := domain.NewExternalReference(ev.Data.ExternalReference)
	if err != nil {
		return nil
	}
	return &ref
}
