package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowtrack/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// PostgresStore keeps a database/sql handle for request handling and a
// pgx pool for bulk imports
type PostgresStore struct {
	DB   *sql.DB
	Pool *pgxpool.Pool
}

// OpenPostgres connects both handles and verifies the database answers
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}
	return &PostgresStore{DB: db, Pool: pool}, nil
}

const assetColumns = `id, email, type, location, status, description, open_date, close_date`

var assetSortColumns = map[string]string{
	"id":        "id",
	"email":     "email",
	"type":      "type",
	"location":  "location",
	"status":    "status",
	"open_date": "open_date",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner, extra ...any) (models.StoredAsset, error) {
	var a models.StoredAsset
	var closeDate sql.NullTime
	dest := append([]any{&a.ID, &a.Email, &a.Type, &a.Location, &a.Status, &a.Description, &a.OpenDate, &closeDate}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.StoredAsset{}, err
	}
	if closeDate.Valid {
		t := closeDate.Time
		a.CloseDate = &t
	}
	return a, nil
}

func (p *PostgresStore) ListAssets(ctx context.Context, f models.AssetFilter) ([]models.StoredAsset, int, error) {
	clauses := []string{}
	args := []any{}
	arg := 1

	if len(f.Statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", arg))
		args = append(args, pq.Array(f.Statuses))
		arg++
	}
	if f.UserEmail != "" {
		clauses = append(clauses, fmt.Sprintf("lower(email) = lower($%d)", arg))
		args = append(args, f.UserEmail)
		arg++
	}
	if f.Query != "" {
		clauses = append(clauses, fmt.Sprintf("(email ILIKE $%d OR description ILIKE $%d)", arg, arg))
		args = append(args, "%"+f.Query+"%")
		arg++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := `SELECT ` + assetColumns + `, COUNT(*) OVER() AS total_count FROM assets` + where + buildOrderBy(f.Sort)
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.StoredAsset{}
	total := 0
	for rows.Next() {
		a, err := scanAsset(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// buildOrderBy turns the sort parameter into an ORDER BY clause using the
// whitelisted column names only
func buildOrderBy(param string) string {
	keys := parseSort(param)
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		dir := " ASC"
		if k.desc {
			dir = " DESC"
		}
		clauses = append(clauses, assetSortColumns[k.field]+dir)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (p *PostgresStore) GetAsset(ctx context.Context, id int64) (models.StoredAsset, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredAsset{}, ErrNotFound
	}
	return a, err
}

func (p *PostgresStore) CreateAsset(ctx context.Context, a models.StoredAsset) (models.StoredAsset, error) {
	var openDate any
	if !a.OpenDate.IsZero() {
		openDate = a.OpenDate
	}
	row := p.DB.QueryRowContext(ctx, `
		INSERT INTO assets (email, type, location, status, description, open_date, close_date)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), CASE WHEN $4 = 'Closed' THEN now() END)
		RETURNING `+assetColumns,
		a.Email, a.Type, a.Location, a.Status, a.Description, openDate)
	created, err := scanAsset(row)
	if err != nil {
		return models.StoredAsset{}, fmt.Errorf("create asset: %w", err)
	}
	return created, nil
}

func (p *PostgresStore) UpdateAsset(ctx context.Context, id int64, u models.UpdateAssetRequest) (models.StoredAsset, error) {
	sets := []string{}
	args := []any{}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if u.Email != nil {
		add("email = $%d", *u.Email)
	}
	if u.Type != nil {
		add("type = $%d", *u.Type)
	}
	if u.Location != nil {
		add("location = $%d", *u.Location)
	}
	if u.Description != nil {
		add("description = $%d", *u.Description)
	}
	if u.Status != nil {
		add("status = $%d", *u.Status)
		if closesAsset(*u.Status) {
			sets = append(sets, "close_date = COALESCE(close_date, now())")
		} else {
			sets = append(sets, "close_date = NULL")
		}
	}
	if len(sets) == 0 {
		return p.GetAsset(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE assets SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), assetColumns)
	a, err := scanAsset(p.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredAsset{}, ErrNotFound
	}
	if err != nil {
		return models.StoredAsset{}, fmt.Errorf("update asset: %w", err)
	}
	return a, nil
}

func (p *PostgresStore) DeleteAsset(ctx context.Context, id int64) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireAffected(res)
}

func (p *PostgresStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	err := p.DB.QueryRowContext(ctx, `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, u.Email, u.FullName, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := p.DB.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, created_at
		FROM users WHERE email = $1`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

const profileColumns = `id, email, full_name, department, phone, location, created_at, updated_at`

func scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	var created, updated time.Time
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Department, &p.Phone, &p.Location, &created, &updated); err != nil {
		return models.Profile{}, err
	}
	p.CreatedAt = &created
	p.UpdatedAt = &updated
	return p, nil
}

func (p *PostgresStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		pr, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, pr)
	}
	return profiles, rows.Err()
}

func (p *PostgresStore) getProfile(ctx context.Context, where string, arg any) (models.Profile, error) {
	pr, err := scanProfile(p.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return pr, nil
}

func (p *PostgresStore) GetProfile(ctx context.Context, id int64) (models.Profile, error) {
	return p.getProfile(ctx, "id = $1", id)
}

func (p *PostgresStore) ProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	return p.getProfile(ctx, "email = $1", email)
}

func (p *PostgresStore) CreateProfile(ctx context.Context, pr models.Profile) (models.Profile, error) {
	created, err := scanProfile(p.DB.QueryRowContext(ctx, `
		INSERT INTO user_profiles (email, full_name, department, phone, location)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+profileColumns,
		pr.Email, pr.FullName, pr.Department, pr.Phone, pr.Location))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Profile{}, ErrDuplicate
		}
		return models.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return created, nil
}

func (p *PostgresStore) UpdateProfile(ctx context.Context, id int64, u models.ProfileUpdate) (models.Profile, error) {
	updated, err := scanProfile(p.DB.QueryRowContext(ctx, `
		UPDATE user_profiles SET
			email = COALESCE($1, email),
			full_name = COALESCE($2, full_name),
			department = COALESCE($3, department),
			phone = COALESCE($4, phone),
			location = COALESCE($5, location),
			updated_at = now()
		WHERE id = $6
		RETURNING `+profileColumns,
		u.Email, u.FullName, u.Department, u.Phone, u.Location, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return models.Profile{}, ErrDuplicate
		}
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func (p *PostgresStore) UpsertProfile(ctx context.Context, pr models.Profile) (models.Profile, error) {
	saved, err := scanProfile(p.DB.QueryRowContext(ctx, `
		INSERT INTO user_profiles (email, full_name, department, phone, location)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			department = EXCLUDED.department,
			phone = EXCLUDED.phone,
			location = EXCLUDED.location,
			updated_at = now()
		RETURNING `+profileColumns,
		pr.Email, pr.FullName, pr.Department, pr.Phone, pr.Location))
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return saved, nil
}

func (p *PostgresStore) DeleteProfile(ctx context.Context, id int64) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return requireAffected(res)
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	if p.Pool != nil {
		p.Pool.Close()
	}
	return p.DB.Close()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
