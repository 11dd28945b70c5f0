package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerClaimOnce(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Claim(ctx, "b1")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	ok, err := l.Claim(ctx, "b2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "b1"))
	ok, err = l.Claim(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresLedgerClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO booking_confirmations").WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_confirmations").WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	l := NewPostgresLedgerFromDB(db)
	ok, err := l.Claim(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM booking_confirmations").WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewPostgresLedgerFromDB(db).Release(context.Background(), "b1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerClaimError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO booking_confirmations").WithArgs("b1").
		WillReturnError(errors.New("connection reset"))

	_, err = NewPostgresLedgerFromDB(db).Claim(context.Background(), "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim confirmation")
}

func TestPostgresLedgerMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS booking_confirmations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewPostgresLedgerFromDB(db).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLedger(client, time.Hour)
	ok, err := l.Claim(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists(ConfirmationKey("b1")))

	require.NoError(t, l.Release(context.Background(), "b1"))
	assert.False(t, mr.Exists(ConfirmationKey("b1")))
	ok, err = l.Claim(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistryExpiry(t *testing.T) {
	r := NewRegistry[string](time.Minute)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Put("a", "form-a")
	r.Put("b", "form-b")

	now = now.Add(30 * time.Second)
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "form-a", v)

	now = now.Add(45 * time.Second)
	// a was touched 45s ago, b 75s ago
	assert.Equal(t, []string{"form-b"}, r.Sweep())
	_, ok = r.Get("b")
	assert.False(t, ok)
	_, ok = r.Get("a")
	assert.True(t, ok)

	r.Delete("a")
	assert.Equal(t, 0, r.Len())
}
