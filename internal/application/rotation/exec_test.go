package rotation

import (
	"context"
	"testing"

	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"
	"sol-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// expiringLocker hands out leases that report the section lost at commit.
type expiringLocker struct{ released int }

type expiredLease struct{ l *expiringLocker }

func (e expiredLease) Release()                    { e.l.released++ }
func (e expiredLease) Check(context.Context) error { return locking.ErrLockLost }

func (l *expiringLocker) Lock(context.Context, uuid.UUID) (locking.Lease, error) {
	return expiredLease{l}, nil
}

func (l *expiringLocker) RLock(ctx context.Context, solID uuid.UUID) (locking.Lease, error) {
	return l.Lock(ctx, solID)
}

func TestMutate_RollsBackWhenLockExpired(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.SeedSol(t, db, 2, "100")
	locks := &expiringLocker{}

	err := Mutate(context.Background(), db, locks, f.Sol.SolID, func(tx *gorm.DB) error {
		return tx.Model(&domain.Sol{}).Where("sol_id = ?", f.Sol.SolID).Update("name", "renamed").Error
	})
	assert.ErrorIs(t, err, locking.ErrLockLost)
	assert.Equal(t, 1, locks.released)

	sol, err := LoadSol(db, f.Sol.SolID)
	require.NoError(t, err)
	assert.Equal(t, "Test Sol", sol.Name)
}

func TestMutate_CommitsUnderLocalLock(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.SeedSol(t, db, 2, "100")

	err := Mutate(context.Background(), db, locking.NewLocal(0), f.Sol.SolID, func(tx *gorm.DB) error {
		return tx.Model(&domain.Sol{}).Where("sol_id = ?", f.Sol.SolID).Update("name", "renamed").Error
	})
	require.NoError(t, err)

	sol, err := LoadSol(db, f.Sol.SolID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", sol.Name)
}
