package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
)

// SettingsStore persists the guild settings whole-object. Get is
// called on every use so out-of-process edits to the file take effect
// without a restart.
type SettingsStore interface {
	Get(ctx context.Context) (domain.Settings, error)
	Set(ctx context.Context, settings domain.Settings) error
}

type fileSettingsStore struct {
	path   string
	logger *zap.Logger
}

// NewFileSettingsStore persists settings as a single JSON document.
func NewFileSettingsStore(path string, logger *zap.Logger) SettingsStore {
	return &fileSettingsStore{path: path, logger: logger}
}

func (s *fileSettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("settings store unreadable, using defaults",
				zap.String("path", s.path), zap.Error(err))
		}
		return domain.DefaultSettings(), nil
	}

	settings := domain.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.Warn("settings store corrupt, using defaults",
			zap.String("path", s.path), zap.Error(err))
		return domain.DefaultSettings(), nil
	}
	if settings.StaffRoleIDs == nil {
		settings.StaffRoleIDs = []string{}
	}
	return settings, nil
}

func (s *fileSettingsStore) Set(ctx context.Context, settings domain.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
