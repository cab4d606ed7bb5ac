package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// AcquirePostingLock serializes stock posting across instances using MySQL
// advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that will do the posting.
func AcquirePostingLock(tx *gorm.DB) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", postingLockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: could not acquire posting lock", utils.ErrConcurrencyConflict)
	}
	return nil
}

func ReleasePostingLock(tx *gorm.DB) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", postingLockName).Scan(&_ok).Error
}

const postingLockName = "factory:stock-posting"
