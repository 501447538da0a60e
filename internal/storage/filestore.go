package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"openamm/internal/model"
)

// FileStore keeps one JSON snapshot per pool under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(addr common.Address) string {
	return filepath.Join(s.dir, strings.ToLower(addr.Hex())+".json")
}

// GetPool loads the snapshot for addr.
func (s *FileStore) GetPool(ctx context.Context, addr common.Address) (model.Pool, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Pool{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(addr)
}

// CreatePool writes the first snapshot of a pool.
func (s *FileStore) CreatePool(ctx context.Context, pool model.Pool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.read(pool.Address); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("create %s: %w", pool.Address.Hex(), ErrPoolExists)
	}
	return s.write(pool)
}

// SavePool replaces the snapshot if the stored sequence equals prevSeq.
func (s *FileStore) SavePool(ctx context.Context, pool model.Pool, prevSeq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.read(pool.Address)
	if err != nil {
		return err
	}
	if !ok || current.Sequence != prevSeq {
		return fmt.Errorf("save %s at sequence %d: %w", pool.Address.Hex(), prevSeq, ErrSequenceConflict)
	}
	return s.write(pool)
}

// ListPools returns every stored pool ordered by address.
func (s *FileStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list pool dir: %w", err)
	}
	var pools []model.Pool
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		addr := strings.TrimSuffix(name, ".json")
		if !common.IsHexAddress(addr) {
			continue
		}
		pool, ok, err := s.read(common.HexToAddress(addr))
		if err != nil {
			return nil, err
		}
		if ok {
			pools = append(pools, pool)
		}
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Address.Hex() < pools[j].Address.Hex()
	})
	return pools, nil
}

func (s *FileStore) read(addr common.Address) (model.Pool, bool, error) {
	path := s.path(addr)
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, fmt.Errorf("stat pool: %w", err)
	}
	if stat.IsDir() {
		return model.Pool{}, false, fmt.Errorf("pool path is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Pool{}, false, fmt.Errorf("read pool: %w", err)
	}
	var pool model.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return model.Pool{}, false, fmt.Errorf("parse pool: %w", err)
	}
	return pool, true, nil
}

func (s *FileStore) write(pool model.Pool) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create pool dir: %w", err)
	}
	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}

	path := s.path(pool.Address)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write pool tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename pool: %w", err)
	}
	return nil
}
