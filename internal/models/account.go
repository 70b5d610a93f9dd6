package models

import "gorm.io/gorm"

// TerminalAccount is a terminal login this adapter has initialized at
// some point. Passwords are never stored; after a restart the account is
// known but must be re-initialized with credentials before use.
type TerminalAccount struct {
	gorm.Model
	Login  int64  `gorm:"uniqueIndex;not null" json:"login"`
	Server string `gorm:"not null" json:"server"`
	Path   string `json:"path"`
}
