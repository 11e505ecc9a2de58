// Package sqlstore implements the controller's DeploymentsRepository over
// SQLite, grounded on the upsert-project/upsert-service/insert-deployment
// shape of the original deployments store, adapted to Go's database/sql +
// sqlx idiom and the jmoiron/sqlx + mattn/go-sqlite3 + golang-migrate stack
// the rest of the example pack reaches for.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("not found")

const recentRowCap = 50

// Store is the SQLite-backed DeploymentsRepository.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path and runs
// pending migrations before returning, per spec's "migrations run at
// startup" requirement.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDeployment upserts the project and service named in req, then
// writes one deployment row. When req.Status is NoUpdate, pre-existing
// NoUpdate rows for the service are deleted first so the history never
// accumulates a run of identical no-op entries.
func (s *Store) CreateDeployment(ctx context.Context, req domain.CreateDeploymentRequest) (int64, error) {
	start := time.Now()
	defer func() { metrics.DeploymentWriteDuration.Observe(time.Since(start).Seconds()) }()

	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return 0, fmt.Errorf("unknown deployment status %q", req.Status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	projectID, err := upsertProject(ctx, tx, req.ProjectName)
	if err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	serviceID, err := upsertService(ctx, tx, projectID, req.ServiceName, req.Image)
	if err != nil {
		return 0, fmt.Errorf("upsert service: %w", err)
	}

	if status == domain.StatusNoUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM deployment WHERE status = ? AND service_id = ?`, domain.StatusNoUpdate, serviceID); err != nil {
			return 0, fmt.Errorf("clear prior no-update rows: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO deployment (service_id, image, digest, status) VALUES (?, ?, ?, ?)`,
		serviceID, req.Image, req.Digest, status)
	if err != nil {
		return 0, fmt.Errorf("insert deployment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func upsertProject(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	_, err := tx.ExecContext(ctx, `INSERT INTO project (name) VALUES (?) ON CONFLICT(name) DO UPDATE SET name = name`, name)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.GetContext(ctx, &id, `SELECT id FROM project WHERE name = ?`, name); err != nil {
		return 0, err
	}
	return id, nil
}

func upsertService(ctx context.Context, tx *sqlx.Tx, projectID int64, name, image string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO service (project_id, name, image) VALUES (?, ?, ?)
		 ON CONFLICT(project_id, name) DO UPDATE SET image = excluded.image`,
		projectID, name, image)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.GetContext(ctx, &id, `SELECT id FROM service WHERE project_id = ? AND name = ?`, projectID, name); err != nil {
		return 0, err
	}
	return id, nil
}

const deploymentSelect = `
	SELECT d.id, d.image, d.digest, d.status, d.service_id, d.created_at,
	       s.name AS service_name, p.name AS project_name
	FROM deployment d
	JOIN service s ON d.service_id = s.id
	JOIN project p ON s.project_id = p.id
`

// GetDeployment looks up one deployment by ID.
func (s *Store) GetDeployment(ctx context.Context, id int64) (domain.Deployment, error) {
	var d domain.Deployment
	err := s.db.GetContext(ctx, &d, deploymentSelect+` WHERE d.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deployment{}, ErrNotFound
	}
	return d, err
}

// GetAllDeployments returns the 50 most recent deployments across all
// projects and services.
func (s *Store) GetAllDeployments(ctx context.Context) ([]domain.Deployment, error) {
	var out []domain.Deployment
	err := s.db.SelectContext(ctx, &out, deploymentSelect+` ORDER BY d.created_at DESC LIMIT ?`, recentRowCap)
	return out, err
}

// GetDeploymentsOfService returns the 50 most recent deployments for one
// service, or ErrNotFound if the project/service pair does not exist.
func (s *Store) GetDeploymentsOfService(ctx context.Context, projectName, serviceName string) ([]domain.Deployment, error) {
	var projectID int64
	if err := s.db.GetContext(ctx, &projectID, `SELECT id FROM project WHERE name = ?`, projectName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var serviceID int64
	if err := s.db.GetContext(ctx, &serviceID, `SELECT id FROM service WHERE project_id = ? AND name = ?`, projectID, serviceName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var out []domain.Deployment
	err := s.db.SelectContext(ctx, &out, deploymentSelect+` WHERE d.service_id = ? ORDER BY d.created_at DESC LIMIT ?`, serviceID, recentRowCap)
	return out, err
}
