package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/alovak/cardledger/internal/cardgen"
	"github.com/alovak/cardledger/ledger/models"
	"github.com/alovak/cardledger/ledger/postgres"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Integration tests; skipped unless DB_DSN points at a PostgreSQL instance.

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping postgres integration test")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	require.NoError(t, postgres.InitSchema(context.Background(), db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustPAN(t *testing.T) string {
	t.Helper()
	pan, err := cardgen.GeneratePAN("421234")
	require.NoError(t, err)
	return pan
}

func createCard(t *testing.T, repo *postgres.CardRepository, name, surname, balance string) *models.Card {
	t.Helper()
	card, err := repo.Create(context.Background(), &models.Card{
		PAN:          mustPAN(t),
		CVV:          "123",
		DateOfExpire: "27/05",
		Name:         name,
		Surname:      surname,
		Currency:     "KZT",
		Balance:      dec(balance),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.DeleteByPAN(context.Background(), card.PAN) })
	return card
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewUserRepository(db)
	ctx := context.Background()

	iin := fmt.Sprintf("%012d", os.Getpid())
	t.Cleanup(func() { repo.DeleteByIIN(ctx, iin) })

	created, err := repo.Create(ctx, &models.CardUser{Name: "Ivan", Surname: "Ivanov", IIN: iin})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.CardUser{Name: "Other", Surname: "Person", IIN: iin})
	require.ErrorIs(t, err, models.ErrConflict)

	found, err := repo.FindByIIN(ctx, iin)
	require.NoError(t, err)
	require.Equal(t, created, found)

	exists, err := repo.ExistsByIIN(ctx, iin)
	require.NoError(t, err)
	require.True(t, exists)

	changed, err := repo.Update(ctx, &models.CardUser{Name: "Ivan", Surname: "Petrov", IIN: iin})
	require.NoError(t, err)
	require.True(t, changed)

	deleted, err := repo.DeleteByIIN(ctx, iin)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = repo.FindByIIN(ctx, iin)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCardRepository_ReadAfterCreate(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewCardRepository(db)
	ctx := context.Background()

	card := createCard(t, repo, "Ivan", "Ivanov", "1000.50")
	require.NotZero(t, card.ID)

	found, err := repo.FindByPAN(ctx, card.PAN)
	require.NoError(t, err)
	require.Equal(t, card.ID, found.ID)
	require.True(t, found.Balance.Equal(dec("1000.50")))

	byID, err := repo.FindByID(ctx, card.ID)
	require.NoError(t, err)
	require.Equal(t, found, byID)

	_, err = repo.Create(ctx, &models.Card{PAN: card.PAN, CVV: "999", DateOfExpire: "27/05", Name: "X", Surname: "Y", Balance: dec("0")})
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestCardRepository_MoneyMovementScenario(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewCardRepository(db)
	ctx := context.Background()

	src := createCard(t, repo, "Ivan", "Ivanov", "1000.50")
	dst := createCard(t, repo, "Petr", "Petrov", "0.00")

	require.NoError(t, repo.Deposit(ctx, src.PAN, dec("50.00")))

	err := repo.Withdraw(ctx, src.PAN, "999", dec("200.00"))
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	status, err := repo.Transfer(ctx, src.PAN, dst.PAN, dec("300.00"))
	require.NoError(t, err)
	require.Equal(t, models.TransferCompleted, status)

	srcAfter, err := repo.FindByPAN(ctx, src.PAN)
	require.NoError(t, err)
	require.True(t, srcAfter.Balance.Equal(dec("750.50")), "source balance = %s", srcAfter.Balance)

	dstAfter, err := repo.FindByPAN(ctx, dst.PAN)
	require.NoError(t, err)
	require.True(t, dstAfter.Balance.Equal(dec("300.00")), "destination balance = %s", dstAfter.Balance)
}

func TestCardRepository_TransferRollsBackOnMissingDestination(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewCardRepository(db)
	ctx := context.Background()

	src := createCard(t, repo, "Ivan", "Ivanov", "100.00")

	status, err := repo.Transfer(ctx, src.PAN, "0000000000000000", dec("40.00"))
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Equal(t, models.TransferFailed, status)

	// The debit was rolled back with the transaction.
	after, err := repo.FindByPAN(ctx, src.PAN)
	require.NoError(t, err)
	require.True(t, after.Balance.Equal(dec("100.00")), "source balance = %s", after.Balance)
}

func TestCardRepository_ConcurrentWithdrawals(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewCardRepository(db)
	ctx := context.Background()

	card := createCard(t, repo, "Ivan", "Ivanov", "100.00")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Withdraw(ctx, card.PAN, "123", dec("100.00"))
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, models.ErrInsufficientFunds)
		}
	}
	require.Equal(t, 1, ok, "exactly one withdrawal must win")

	after, err := repo.FindByPAN(ctx, card.PAN)
	require.NoError(t, err)
	require.True(t, after.Balance.IsZero(), "final balance = %s", after.Balance)
}

func TestCardRepository_AmbiguousName(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewCardRepository(db)
	ctx := context.Background()

	// Unique-per-run names so reruns do not collide.
	name := fmt.Sprintf("Same-%d", os.Getpid())
	createCard(t, repo, name, "Named", "10.00")
	createCard(t, repo, name, "Named", "20.00")

	err := repo.DepositByName(ctx, name, "Named", dec("5.00"))
	require.ErrorIs(t, err, models.ErrAmbiguousName)
}
