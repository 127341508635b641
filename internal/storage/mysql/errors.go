package mysql

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"roomledger/internal/domain"
)

// MySQL server error numbers that mean another writer holds the rows.
const (
	errLockNowait      = 3572 // ER_LOCK_NOWAIT
	errLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	errLockDeadlock    = 1213 // ER_LOCK_DEADLOCK
)

// mapErr folds driver errors into domain kinds. Errors that already carry a kind pass through.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if domain.Kind(err) != domain.ErrStoreFailure || errors.Is(err, domain.ErrStoreFailure) {
		return err
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockNowait, errLockWaitTimeout, errLockDeadlock:
			return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}
