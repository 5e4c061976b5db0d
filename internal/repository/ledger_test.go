package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/pagination"
	"github.com/corepay/ledger-service/internal/repository"
	"github.com/corepay/ledger-service/internal/testutil"
)

func seedEntries(t *testing.T, store *repository.Store, txID, accountID uuid.UUID, n int) []domain.LedgerEntry {
	t.Helper()

	base := time.Now().UTC().Truncate(time.Millisecond)
	entries := make([]domain.LedgerEntry, 0, n)
	balance := int64(0)
	for i := range n {
		e, err := domain.NewLedgerEntry(txID, accountID, domain.EntryTypeCredit, 100, domain.CurrencyUSD, balance, base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		balance = e.BalanceAfter
		entries = append(entries, *e)
	}
	require.NoError(t, store.Ledger.CreateBatch(context.Background(), entries))
	return entries
}

func TestLedgerCreateBatchAndGetByTransactionID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := repository.NewStore(db)
	account := testutil.SeedCustomerAccount(t, db, domain.CurrencyUSD, 0)
	tx := seedDeposit(t, store, account.ID, "ledger-key", time.Now().UTC())

	seeded := seedEntries(t, store, tx.ID, account.ID, 3)

	got, err := store.Ledger.GetByTransactionID(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, seeded[i].ID, e.ID)
		assert.Equal(t, seeded[i].BalanceBefore, e.BalanceBefore)
		assert.Equal(t, seeded[i].BalanceAfter, e.BalanceAfter)
	}

	require.NoError(t, store.Ledger.CreateBatch(context.Background(), nil))
}

func TestLedgerGetByAccountID_Pagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := repository.NewStore(db)
	account := testutil.SeedCustomerAccount(t, db, domain.CurrencyUSD, 0)
	tx := seedDeposit(t, store, account.ID, "ledger-page-key", time.Now().UTC())
	ctx := context.Background()

	seeded := seedEntries(t, store, tx.ID, account.ID, 10)

	var walked []uuid.UUID
	page := pagination.Page{Limit: 4}
	for {
		res, err := store.Ledger.GetByAccountID(ctx, account.ID, page)
		require.NoError(t, err)
		for _, e := range res.Items {
			walked = append(walked, e.ID)
		}
		if !res.HasMore {
			break
		}
		page.Cursor = res.NextCursor
	}

	require.Len(t, walked, 10)
	for i, e := range seeded {
		assert.Equal(t, e.ID, walked[i])
	}

	// descending order walks the same set newest first
	res, err := store.Ledger.GetByAccountID(ctx, account.ID, pagination.Page{Limit: 1, Order: pagination.SortDesc})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, seeded[len(seeded)-1].ID, res.Items[0].ID)
	assert.True(t, res.HasMore)
}
