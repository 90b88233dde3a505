package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository"
)

type companyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) repository.CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) GetByID(ctx context.Context, id int32) (*domain.Company, error) {
	c := &domain.Company{}
	query := `SELECT id, name, region, verified, created_on FROM companies WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Region, &c.Verified, &c.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}
