package entities

import (
	"github.com/google/uuid"
)

type Tag struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name  string    `gorm:"uniqueIndex;size:200" json:"name"`
	Color string    `gorm:"size:7" json:"color"`
	Slug  string    `gorm:"uniqueIndex;size:200" json:"slug"`
}
