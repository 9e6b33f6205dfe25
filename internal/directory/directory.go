// Package directory resolves per-country payment method configuration.
package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/payledger/internal/domain"
)

// Directory looks up the payment method configured for a country.
// A missing configuration is reported as domain.ErrNotFound.
type Directory interface {
	Lookup(ctx context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error)
}

// Postgres reads payment_method_configs.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Lookup(ctx context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error) {
	pm := domain.PaymentMethod{CountryID: countryID, MethodTypeID: methodTypeID}
	var details []byte
	err := p.db.QueryRow(ctx,
		`SELECT name, is_active, user_instructions, configuration_details
		 FROM payment_method_configs WHERE country_id = $1 AND method_type_id = $2`,
		countryID, methodTypeID,
	).Scan(&pm.Name, &pm.IsActive, &pm.UserInstructions, &details)
	if err != nil {
		return domain.PaymentMethod{}, notFound(err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &pm.ConfigurationDetails); err != nil {
			return domain.PaymentMethod{}, fmt.Errorf("configuration details of method %d/%d: %w", countryID, methodTypeID, err)
		}
	}
	return pm, nil
}

// Key identifies one configuration.
type Key struct {
	CountryID    int64
	MethodTypeID int64
}

// Static serves a fixed set of configurations.
type Static map[Key]domain.PaymentMethod

func NewStatic(methods ...domain.PaymentMethod) Static {
	s := make(Static, len(methods))
	for _, m := range methods {
		s[Key{CountryID: m.CountryID, MethodTypeID: m.MethodTypeID}] = m
	}
	return s
}

func (s Static) Lookup(_ context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error) {
	pm, ok := s[Key{CountryID: countryID, MethodTypeID: methodTypeID}]
	if !ok {
		return domain.PaymentMethod{}, fmt.Errorf("payment method %d/%d: %w", countryID, methodTypeID, domain.ErrNotFound)
	}
	return pm, nil
}
