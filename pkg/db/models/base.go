package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero UUID primary key before insert so rows get stable ids
// on every dialect.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error        { assignID(&u.ID); return nil }
func (c *Category) BeforeCreate(*gorm.DB) error    { assignID(&c.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error     { assignID(&p.ID); return nil }
func (t *Transaction) BeforeCreate(*gorm.DB) error { assignID(&t.ID); return nil }
func (p *Payout) BeforeCreate(*gorm.DB) error      { assignID(&p.ID); return nil }
