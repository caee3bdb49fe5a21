package domain

import "time"

// ConnectionStatus represents the lifecycle state of a social connection.
// Values include ConnectionStatusActive and ConnectionStatusDisconnected.
type ConnectionStatus string

const (
	ConnectionStatusActive       ConnectionStatus = "active"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// Connection represents one connected external social account.
type Connection struct {
	ID             string           `gorm:"type:text;primaryKey" json:"id"`
	UserID         string           `gorm:"type:text;not null;index:idx_connections_user;uniqueIndex:idx_connections_identity" json:"user_id"`
	Platform       string           `gorm:"type:text;not null;uniqueIndex:idx_connections_identity" json:"platform"`
	Username       string           `gorm:"type:text;not null;uniqueIndex:idx_connections_identity" json:"username"`
	DisplayName    string           `gorm:"type:text" json:"display_name,omitempty"`
	ProfileURL     string           `gorm:"type:text" json:"profile_url,omitempty"`
	FollowersCount int              `gorm:"default:0" json:"followers_count"`
	Status         ConnectionStatus `gorm:"type:text;default:active" json:"status"`
	ConnectedAt    time.Time        `json:"connected_at"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Connection.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Connection) TableName() string {
	return "connections"
}
