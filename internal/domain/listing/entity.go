package listing

import (
	"time"

	"github.com/google/uuid"
)

// Listing is the slice of the external listings table this service reads.
// The marketplace owns the full record; only existence and ownership matter here.
type Listing struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null"`
	Title     string
	CreatedAt time.Time
}

func (Listing) TableName() string {
	return "listings"
}
