package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"openamm/internal/model"
)

var (
	// ErrPoolExists is returned when creating a pool whose address is taken.
	ErrPoolExists = errors.New("pool already exists")
	// ErrSequenceConflict is returned when the stored sequence moved since load.
	ErrSequenceConflict = errors.New("pool sequence conflict")
)

// PoolStore persists pool snapshots. SavePool only succeeds when the stored
// sequence still equals prevSeq.
type PoolStore interface {
	GetPool(ctx context.Context, addr common.Address) (model.Pool, bool, error)
	CreatePool(ctx context.Context, pool model.Pool) error
	SavePool(ctx context.Context, pool model.Pool, prevSeq uint64) error
}

// Journal is a sink for committed pool events.
type Journal interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
}

// MultiJournal fans a batch out to every journal in order.
type MultiJournal []Journal

func (m MultiJournal) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	for _, j := range m {
		if err := j.PutEventBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
