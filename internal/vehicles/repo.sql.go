package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdesk/fleetdesk/internal/platform/db"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	Insert(ctx context.Context, vehicle Vehicle) (Vehicle, error)
	GetByID(ctx context.Context, id int64) (Vehicle, error)
	Update(ctx context.Context, vehicle Vehicle) (Vehicle, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vehicleColumns = `id, registration, make, model, year, status, mileage, created_at, updated_at`

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Registration, &v.Make, &v.Model, &v.Year, &v.Status, &v.Mileage, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// Insert persists a new vehicle.
func (r *Repository) Insert(ctx context.Context, vehicle Vehicle) (Vehicle, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vehicles (registration, make, model, year, status, mileage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+vehicleColumns,
		vehicle.Registration, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.Status, vehicle.Mileage)
	created, err := scanVehicle(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vehicle{}, ErrDuplicateRegistration
		}
		return Vehicle{}, err
	}
	return created, nil
}

// GetByID fetches one vehicle.
func (r *Repository) GetByID(ctx context.Context, id int64) (Vehicle, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	vehicle, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, shared.ErrNotFound
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}

// Update persists the mutable fields. The row is locked first so two
// concurrent updates cannot interleave and roll the mileage backwards.
func (r *Repository) Update(ctx context.Context, vehicle Vehicle) (Vehicle, error) {
	var updated Vehicle
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var currentMileage int64
		if err := tx.QueryRow(ctx, `SELECT mileage FROM vehicles WHERE id = $1 FOR UPDATE`, vehicle.ID).Scan(&currentMileage); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if vehicle.Mileage < currentMileage {
			return ErrMileageDecrease
		}
		row := tx.QueryRow(ctx, `
			UPDATE vehicles
			SET make = $2, model = $3, year = $4, status = $5, mileage = $6, updated_at = now()
			WHERE id = $1
			RETURNING `+vehicleColumns,
			vehicle.ID, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.Status, vehicle.Mileage)
		var err error
		updated, err = scanVehicle(row)
		return err
	})
	if err != nil {
		return Vehicle{}, err
	}
	return updated, nil
}

// Delete removes a vehicle row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns a filtered page of vehicles plus the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error) {
	where := []string{"($1 = '' OR registration ILIKE '%' || $1 || '%' OR make ILIKE '%' || $1 || '%' OR model ILIKE '%' || $1 || '%')"}
	args := []any{strings.TrimSpace(filters.Search)}
	where = append(where, "($2 = '' OR status = $2)")
	args = append(args, string(filters.Status))
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	query := fmt.Sprintf(`SELECT %s FROM vehicles WHERE %s ORDER BY registration LIMIT $3 OFFSET $4`, vehicleColumns, clause)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		vehicles = append(vehicles, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

var _ RepositoryPort = (*Repository)(nil)
