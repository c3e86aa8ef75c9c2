package persistence

import (
	"errors"
	"fmt"

	"github.com/palletledger/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate is the row lock taken before balance mutations
var forUpdate = clause.Locking{Strength: "UPDATE"}

// translateError maps driver errors onto domain errors. The database is opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func translateError(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NotFound(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.Duplicate("%s %v already exists", entity, id)
	}
	return err
}

// optimisticLockError reports a version mismatch on SaveWithLock
func optimisticLockError(entity string, id any) error {
	return shared.NewDomainError(shared.CodeConcurrencyConflict,
		fmt.Sprintf("%s %v was modified by another transaction", entity, id))
}
