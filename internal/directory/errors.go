package directory

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/payledger/internal/domain"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("payment method: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("payment method query failed: %w", err)
}
