package ledger

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/log"
)

// AddTransaction assigns a fresh id and timestamps, appends the transaction
// and schedules its persist and push. Expense commits are then checked
// against their category budget.
func (s *Store) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := s.stamp()
	tx.CreatedAt, tx.UpdatedAt = now, now
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	snap, user, err := s.commit(func(st *core.Snapshot) error {
		tx.ID = s.uniqueID(func(id string) bool {
			return indexOf(st.Transactions, func(t core.Transaction) bool { return t.ID == id }) >= 0
		})
		st.Transactions = appendCopy(st.Transactions, tx)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.logger.DebugContext(ctx, "Transaction added",
		log.FieldEntityID, tx.ID, log.FieldAmount, tx.Amount.Cents, log.FieldCategory, tx.CategoryID)

	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindTransactions, tx.ID, func(ctx context.Context) error {
		return s.remote.PushTransaction(ctx, user, tx)
	})
	s.evaluateAlerts(ctx, tx, snap)
	return tx, nil
}

// UpdateTransaction applies patch and refreshes updatedAt. The id and
// createdAt never change.
func (s *Store) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	var updated core.Transaction
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Transactions, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		updated = patch.Apply(st.Transactions[i])
		updated.UpdatedAt = s.stamp()
		if err := updated.Validate(); err != nil {
			return err
		}
		st.Transactions = replaceAt(st.Transactions, i, updated)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindTransactions, id, func(ctx context.Context) error {
		return s.remote.PushTransaction(ctx, user, updated)
	})
	s.evaluateAlerts(ctx, updated, snap)
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Transactions, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		st.Transactions = removeAt(st.Transactions, i)
		return nil
	})
	if err != nil {
		return err
	}

	s.schedulePersist(ctx, snap)
	s.scheduleDelete(ctx, user, core.KindTransactions, id)
	return nil
}
