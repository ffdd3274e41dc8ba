package models

import (
	"time"
)

// MirrorDocument is one addressable path of the mirror store. Each path holds a
// whole JSON document that is fully replaced on write; Version increments on
// every write so writers can detect a concurrent replace.
type MirrorDocument struct {
	Path      string    `gorm:"primaryKey;type:varchar(255)" json:"path"`
	Body      string    `gorm:"type:text" json:"body"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MirrorDocument) TableName() string {
	return "mirror_documents"
}
