package repository

import (
	"fmt"

	"github.com/yourusername/stock-insight/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Sample  SampleRepository
	Version VersionRepository
	History HistoryRepository
	Outcome OutcomeRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Sample:  NewPostgresSampleRepository(db),
		Version: NewPostgresVersionRepository(db),
		History: NewPostgresHistoryRepository(db),
		Outcome: NewPostgresOutcomeRepository(db),
	}, nil
}
