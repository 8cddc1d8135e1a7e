package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PaulBabatuyi/files-manager/internal/database/migrations"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB opens a connection with the given driver ("postgres" for
// lib/pq, "pgx" for the pgx stdlib adapter) and applies pending migrations.
func NewPostgresDB(ctx context.Context, driver, connectionString string) (*PostgresDB, error) {
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// NewPostgresDBFromConn wraps an already opened handle without migrating.
func NewPostgresDBFromConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseUp(ctx, db, ".")
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	query := `
        INSERT INTO users (id, email, password_hash)
        VALUES ($1, $2, $3)
    `
	out := *u
	out.ID = uuid.NewString()

	_, err := p.db.ExecContext(ctx, query, out.ID, out.Email, out.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (p *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, email, password_hash
        FROM users
        WHERE email = $1
    `
	return p.scanUser(p.db.QueryRowContext(ctx, query, email))
}

func (p *PostgresDB) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
        SELECT id, email, password_hash
        FROM users
        WHERE id = $1
    `
	return p.scanUser(p.db.QueryRowContext(ctx, query, id))
}

func (p *PostgresDB) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func (p *PostgresDB) CountUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (p *PostgresDB) CreateFile(ctx context.Context, f *models.FileRecord) (*models.FileRecord, error) {
	query := `
        INSERT INTO files (id, user_id, name, type, is_public, parent_id, local_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	out := *f
	out.ID = uuid.NewString()
	out.ParentID = models.ParentID(out.ParentID.String())

	localPath := sql.NullString{String: out.LocalPath, Valid: out.LocalPath != ""}

	_, err := p.db.ExecContext(ctx, query,
		out.ID,
		out.UserID,
		out.Name,
		string(out.Type),
		out.IsPublic,
		out.ParentID.String(),
		localPath,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

const fileColumns = `id, user_id, name, type, is_public, parent_id, COALESCE(local_path, '')`

func (p *PostgresDB) FindFile(ctx context.Context, filter FileFilter) (*models.FileRecord, error) {
	where, args := fileWhere(filter)
	query := `SELECT ` + fileColumns + ` FROM files WHERE ` + where

	f, err := scanFile(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (p *PostgresDB) ListFiles(ctx context.Context, filter ListFilter, page int) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + `
        FROM files
        WHERE parent_id = $1 AND ($2 = '' OR user_id::text = $2 OR is_public)
        ORDER BY seq
        LIMIT $3 OFFSET $4
    `
	parentID := models.ParentID(filter.ParentID).String()

	rows, err := p.db.QueryContext(ctx, query, parentID, filter.ViewerID, PageSize, offset(page))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	files := make([]*models.FileRecord, 0, PageSize)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (p *PostgresDB) UpdateFile(ctx context.Context, filter FileFilter, update FileUpdate) (*models.FileRecord, error) {
	if update.IsPublic == nil {
		return p.FindFile(ctx, filter)
	}

	where, args := fileWhere(filter)
	args = append(args, *update.IsPublic)
	query := `UPDATE files SET is_public = $` + strconv.Itoa(len(args)) +
		` WHERE ` + where + ` RETURNING ` + fileColumns

	f, err := scanFile(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (p *PostgresDB) CountFiles(ctx context.Context) (int64, error) {
	return p.count(ctx, `SELECT COUNT(*) FROM files`)
}

func (p *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func fileWhere(filter FileFilter) (string, []any) {
	if filter.UserID == "" {
		return `id = $1`, []any{filter.ID}
	}
	return `id = $1 AND user_id = $2`, []any{filter.ID, filter.UserID}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.FileRecord, error) {
	var (
		f        models.FileRecord
		fileType string
		parentID string
	)
	if err := s.Scan(&f.ID, &f.UserID, &f.Name, &fileType, &f.IsPublic, &parentID, &f.LocalPath); err != nil {
		return nil, err
	}
	f.Type = models.FileType(fileType)
	f.ParentID = models.ParentID(parentID)
	return &f, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
