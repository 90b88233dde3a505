package postgres

import (
	"database/sql"

	"fleetmarket-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.BookingRepository
	repository.CompanyRepository
	repository.AnalyticsRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                  db,
		BookingRepository:   NewBookingRepository(db),
		CompanyRepository:   NewCompanyRepository(db),
		AnalyticsRepository: NewAnalyticsRepository(db),
	}
}
