package models

import "gorm.io/gorm"

// Credential stores an exchange API key pair for a user. AccessKey and
// SecretKey are encrypted with the process-wide symmetric key before they
// ever reach the database and are decrypted only for the duration of a
// trading cycle. Plaintext keys must never be logged or persisted.
type Credential struct {
	gorm.Model
	UserID    uint   `gorm:"uniqueIndex:idx_user_provider" json:"user_id"`
	Provider  string `gorm:"uniqueIndex:idx_user_provider" json:"provider"` // e.g. "upbit"
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
}
