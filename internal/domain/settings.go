package domain

// Settings is the whole-object guild configuration mutated by admin
// commands and the admin API. It is re-read from the store on every
// use so out-of-process edits are picked up.
type Settings struct {
	TicketCategoryID      string   `json:"ticket_category_id"`
	LogChannelID          string   `json:"log_channel_id"`
	SetupChannelID        string   `json:"setup_channel_id"`
	StaffRoleIDs          []string `json:"staff_role_ids"`
	ArchiveChannelID      string   `json:"archive_channel_id"`
	PriceServiceChannelID string   `json:"price_service_channel_id"`
	PriceLockChannelID    string   `json:"price_lock_channel_id"`
}

// DefaultSettings returns the zero configuration used when the store
// is empty or unreadable.
func DefaultSettings() Settings {
	return Settings{StaffRoleIDs: []string{}}
}

// HasStaffRole reports whether any of the member's roles is a
// configured staff role.
func (s Settings) HasStaffRole(roleIDs []string) bool {
	for _, staff := range s.StaffRoleIDs {
		for _, have := range roleIDs {
			if staff == have {
				return true
			}
		}
	}
	return false
}
