package listings

import (
	"context"
	"errors"

	"github.com/samujjwal/rental-sub011/internal/domain/listing"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory is the listing-lookup collaborator. The marketplace owns listings;
// conversation creation only needs existence and the owner id.
type Directory interface {
	Get(ctx context.Context, listingID uuid.UUID) (listing.Listing, error)
}

type PostgresDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Get(ctx context.Context, listingID uuid.UUID) (listing.Listing, error) {
	var l listing.Listing
	err := d.db.WithContext(ctx).Where("id = ?", listingID).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return listing.Listing{}, rental_errors.ErrNotFound
		}
		return listing.Listing{}, err
	}
	return l, nil
}
