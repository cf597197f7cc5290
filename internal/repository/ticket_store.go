package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketStore persists the whole ticket map. Load is called once at
// startup; Save overwrites all persisted state after every mutation
// (last writer wins, no partial updates). The lifecycle service is
// the only caller of Save.
type TicketStore interface {
	Load(ctx context.Context) (map[string]domain.Ticket, error)
	Save(ctx context.Context, tickets map[string]domain.Ticket) error
}

type fileTicketStore struct {
	path   string
	logger *zap.Logger
}

// NewFileTicketStore persists tickets as a single JSON document keyed
// by channel ID.
func NewFileTicketStore(path string, logger *zap.Logger) TicketStore {
	return &fileTicketStore{path: path, logger: logger}
}

// Load reads the ticket file. A missing or corrupt file yields an
// empty map; startup must never fail on bad storage.
func (s *fileTicketStore) Load(ctx context.Context) (map[string]domain.Ticket, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("ticket store unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return map[string]domain.Ticket{}, nil
	}

	tickets := map[string]domain.Ticket{}
	if err := json.Unmarshal(data, &tickets); err != nil {
		s.logger.Warn("ticket store corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return map[string]domain.Ticket{}, nil
	}
	return tickets, nil
}

// Save writes the whole map, replacing the file atomically so a crash
// mid-write cannot corrupt prior state.
func (s *fileTicketStore) Save(ctx context.Context, tickets map[string]domain.Ticket) error {
	data, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tickets: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic writes to a sibling temp file and renames it over
// the target.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
