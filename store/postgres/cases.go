package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	caseAuth "github.com/MrEthical07/caseAuth"
)

const firstCaseQuery = `SELECT case_id, name FROM cases ORDER BY case_id ASC LIMIT 1`

// CaseRepository implements [caseAuth.CaseStore].
type CaseRepository struct {
	db DBTX
}

func NewCaseRepository(db DBTX) *CaseRepository {
	return &CaseRepository{db: db}
}

// First returns the case with the lowest id, or [caseAuth.ErrNoCase].
func (r *CaseRepository) First(ctx context.Context) (caseAuth.Case, error) {
	var c caseAuth.Case
	err := r.db.QueryRowContext(ctx, firstCaseQuery).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caseAuth.Case{}, caseAuth.ErrNoCase
		}
		return caseAuth.Case{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
