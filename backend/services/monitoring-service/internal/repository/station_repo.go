package repository

import (
	"context"
	"database/sql"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// StationRepository reads the station catalog directly from Postgres when the
// service runs next to the station database.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// ListOperationalStations returns stations open for swaps, ordered by name.
func (r *StationRepository) ListOperationalStations(ctx context.Context) ([]models.Station, error) {
	const query = `
		SELECT id::text, name, COALESCE(address, '')
		FROM stations
		WHERE status = 'OPERATIONAL'
		ORDER BY name, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Address); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
