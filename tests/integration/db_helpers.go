//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/leafcheck/internal/database"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/BradenHooton/leafcheck/internal/repositories"
	"github.com/BradenHooton/leafcheck/migrations"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("leafcheck"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Same embedded migrations the server applies on start-up
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate table users: %w", err)
	}
	return nil
}

// NewUserRepository returns a repository hashing at bcrypt's minimum cost
func NewUserRepository(db *database.DB) *repositories.UserRepository {
	return repositories.NewUserRepository(db).WithBcryptCost(bcrypt.MinCost)
}

// SeedUser inserts a user through the repository, verified when asked
func SeedUser(ctx context.Context, repo *repositories.UserRepository, username, email, password string, verified bool) (*models.User, error) {
	user, _, err := repo.Create(ctx, &models.User{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if verified {
		user.IsVerified = true
		if user, err = repo.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to verify user: %w", err)
		}
	}

	return user, nil
}

// ExpireSecrets moves every OTP and reset expiry into the past
func (db *TestDB) ExpireSecrets(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET
			otp_expires_at         = CASE WHEN otp_expires_at IS NULL THEN NULL ELSE NOW() - INTERVAL '1 minute' END,
			reset_token_expires_at = CASE WHEN reset_token_expires_at IS NULL THEN NULL ELSE NOW() - INTERVAL '1 minute' END
	`)
	return err
}
