//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

func newCode(value string) *model.Code {
	return &model.Code{ID: uuid.NewString(), Value: value}
}

func TestCodeRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewCodeRepo(testPool)

	t.Run("value collision returns ErrAlreadyExists without aborting the tx", func(t *testing.T) {
		cleanup(t)
		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.Insert(ctx, tx, newCode("AAAA-BBBB-CCCC"), time.Minute); err != nil {
				return err
			}
			if err := repo.Insert(ctx, tx, newCode("AAAA-BBBB-CCCC"), time.Minute); !errors.Is(err, domain.ErrAlreadyExists) {
				t.Errorf("expected ErrAlreadyExists, got %v", err)
			}
			return repo.Insert(ctx, tx, newCode("AAAA-BBBB-DDDD"), time.Minute)
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}
		st, err := repo.Stats(ctx, nil)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if st.Total != 2 {
			t.Errorf("expected 2 codes after commit, got %d", st.Total)
		}
	})

	t.Run("timestamps come from the database clock", func(t *testing.T) {
		cleanup(t)
		c := newCode("CLCK-CLCK-CLCK")
		c.CreatedAt = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
		c.ExpiresAt = c.CreatedAt.Add(time.Hour)
		if err := repo.Insert(ctx, nil, c, 20*time.Minute); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		var dbNow time.Time
		if err := testPool.QueryRow(ctx, `SELECT NOW()`).Scan(&dbNow); err != nil {
			t.Fatalf("select now: %v", err)
		}
		if d := dbNow.Sub(c.CreatedAt); d < 0 || d > time.Minute {
			t.Errorf("created_at %v is not the database clock (%v)", c.CreatedAt, dbNow)
		}
		if got := c.ExpiresAt.Sub(c.CreatedAt); got != 20*time.Minute {
			t.Errorf("expires_at - created_at = %v, want 20m", got)
		}
		stored, err := repo.FindByValue(ctx, nil, c.Value)
		if err != nil {
			t.Fatalf("FindByValue failed: %v", err)
		}
		if !stored.ExpiresAt.Equal(c.ExpiresAt) {
			t.Errorf("stored expires_at %v, returned %v", stored.ExpiresAt, c.ExpiresAt)
		}
	})

	t.Run("consume succeeds once", func(t *testing.T) {
		cleanup(t)
		if err := repo.Insert(ctx, nil, newCode("K7QM-2XPA-9RTB"), 20*time.Minute); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		c, err := repo.Consume(ctx, nil, "K7QM-2XPA-9RTB", "device-A")
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if !c.Used || c.UsedBy == nil || *c.UsedBy != "device-A" || c.UsedAt == nil {
			t.Errorf("unexpected consumed code: %+v", c)
		}

		if _, err := repo.Consume(ctx, nil, "K7QM-2XPA-9RTB", "device-B"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second consume, got %v", err)
		}
	})

	t.Run("expired code cannot be consumed", func(t *testing.T) {
		cleanup(t)
		c := newCode("EXPD-EXPD-EXPD")
		if err := repo.Insert(ctx, nil, c, -time.Second); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if _, err := repo.Consume(ctx, nil, c.Value, "device-A"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent consumers: exactly one wins", func(t *testing.T) {
		cleanup(t)
		if err := repo.Insert(ctx, nil, newCode("RACE-RACE-RACE"), 20*time.Minute); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		tm := NewTxManager(testPool)

		const n = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
					_, err := repo.Consume(ctx, tx, "RACE-RACE-RACE", uuid.NewString())
					return err
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, domain.ErrNotFound):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one successful consume, got %d", wins)
		}
	})

	t.Run("stats and listing by status", func(t *testing.T) {
		cleanup(t)
		active := newCode("ACTV-ACTV-ACTV")
		used := newCode("USED-USED-USED")
		expired := newCode("GONE-GONE-GONE")
		ttls := map[*model.Code]time.Duration{active: time.Hour, used: time.Hour, expired: -time.Minute}
		for c, ttl := range ttls {
			if err := repo.Insert(ctx, nil, c, ttl); err != nil {
				t.Fatalf("Insert %s failed: %v", c.Value, err)
			}
		}
		if _, err := repo.Consume(ctx, nil, used.Value, "someone"); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}

		st, err := repo.Stats(ctx, nil)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		want := model.CodeStats{Total: 3, Active: 1, Used: 1, Expired: 1}
		if *st != want {
			t.Errorf("expected %+v, got %+v", want, *st)
		}

		list, err := repo.ListRecent(ctx, nil, model.CodeStatusExpired, 10)
		if err != nil {
			t.Fatalf("ListRecent failed: %v", err)
		}
		if len(list) != 1 || list[0].Value != expired.Value {
			t.Errorf("unexpected expired listing: %+v", list)
		}

		all, err := repo.ListRecent(ctx, nil, "", 10)
		if err != nil {
			t.Fatalf("ListRecent failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 codes, got %d", len(all))
		}
	})
}
