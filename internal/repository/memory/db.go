package memory

import (
	"context"
	"sync"

	models "marginalia/internal/domain/models/annotation"
	"marginalia/internal/domain/repositories"
)

type (
	// DB is a process-local store used by tests and STORE=memory.
	DB struct {
		comments *commentTable
		chapters *chapterTable
	}

	commentTable struct {
		t     map[string]*models.Comment
		mutex sync.RWMutex
	}

	chapterTable struct {
		t     map[models.Scope]*models.Chapter
		mutex sync.RWMutex
	}
)

// Open creates an empty store.
func Open() *DB {
	return &DB{
		comments: &commentTable{t: make(map[string]*models.Comment)},
		chapters: &chapterTable{t: make(map[models.Scope]*models.Chapter)},
	}
}

type transactionManager struct{}

// NewTransactionManager returns a manager that runs fn directly; every
// memory repository call is already atomic.
func NewTransactionManager() repositories.TransactionManager {
	return transactionManager{}
}

func (transactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	ctx, committed := repositories.WithCommitHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	committed()
	return nil
}
