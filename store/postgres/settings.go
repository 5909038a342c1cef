package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/caseAuth/settings"
)

const serverSettingsQuery = `SELECT enforce_mfa, extra FROM server_settings WHERE id = 1`

// SettingsRepository implements [settings.Source].
type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// ServerSettings reads the singleton settings row. A missing row yields defaults.
func (r *SettingsRepository) ServerSettings(ctx context.Context) (settings.Settings, error) {
	var (
		s     settings.Settings
		extra []byte
	)

	err := r.db.QueryRowContext(ctx, serverSettingsQuery).Scan(&s.EnforceMFA, &extra)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings.Settings{}, nil
		}
		return settings.Settings{}, fmt.Errorf("db error: %w", err)
	}

	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &s.Values); err != nil {
			return settings.Settings{}, fmt.Errorf("decode server settings: %w", err)
		}
	}

	return s, nil
}
