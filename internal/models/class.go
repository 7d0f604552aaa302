package models

import (
	"time"

	"github.com/lib/pq"
)

// Class defines a class and its ordered sections.
type Class struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Sections  pq.StringArray `db:"sections" json:"sections"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// HasSection reports whether the section belongs to the class.
func (c Class) HasSection(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}
