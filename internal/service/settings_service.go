package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/pkg/util"
)

// SettingsService mediates admin mutations of the guild settings.
// Every mutation reads the store fresh, applies one change, and
// writes the whole object back.
type SettingsService struct {
	store repository.SettingsStore
}

// NewSettingsService constructs the service.
func NewSettingsService(store repository.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.store.Get(ctx)
}

// Replace overwrites the settings whole-object (admin API).
func (s *SettingsService) Replace(ctx context.Context, settings domain.Settings) error {
	if settings.StaffRoleIDs == nil {
		settings.StaffRoleIDs = []string{}
	}
	return s.store.Set(ctx, settings)
}

func (s *SettingsService) update(ctx context.Context, apply func(*domain.Settings)) error {
	settings, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	apply(&settings)
	return s.store.Set(ctx, settings)
}

// SetTicketCategory sets the parent category for new ticket channels.
func (s *SettingsService) SetTicketCategory(ctx context.Context, categoryID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.TicketCategoryID = categoryID })
}

// SetLogChannel sets the channel receiving lifecycle log entries.
func (s *SettingsService) SetLogChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.LogChannelID = channelID })
}

// SetSetupChannel remembers where the panel was posted.
func (s *SettingsService) SetSetupChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.SetupChannelID = channelID })
}

// SetArchiveChannel sets the transcript archive destination.
func (s *SettingsService) SetArchiveChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.ArchiveChannelID = channelID })
}

// SetPriceServiceChannel sets the service price-list channel.
func (s *SettingsService) SetPriceServiceChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.PriceServiceChannelID = channelID })
}

// SetPriceLockChannel sets the lock price-list channel.
func (s *SettingsService) SetPriceLockChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, func(cfg *domain.Settings) { cfg.PriceLockChannelID = channelID })
}

// AddStaffRole registers a role as staff.
func (s *SettingsService) AddStaffRole(ctx context.Context, roleID string) error {
	return s.update(ctx, func(cfg *domain.Settings) {
		for _, existing := range cfg.StaffRoleIDs {
			if existing == roleID {
				return
			}
		}
		cfg.StaffRoleIDs = append(cfg.StaffRoleIDs, roleID)
	})
}

// RemoveStaffRole removes a role from the staff set. It fails when
// the role was not registered.
func (s *SettingsService) RemoveStaffRole(ctx context.Context, roleID string) error {
	found := false
	err := s.update(ctx, func(cfg *domain.Settings) {
		kept := cfg.StaffRoleIDs[:0]
		for _, existing := range cfg.StaffRoleIDs {
			if existing == roleID {
				found = true
				continue
			}
			kept = append(kept, existing)
		}
		cfg.StaffRoleIDs = kept
	})
	if err != nil {
		return err
	}
	if !found {
		return util.NewNotFound(fmt.Sprintf("staff role %s", roleID), nil)
	}
	return nil
}
