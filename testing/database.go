// Package testing provides the database bootstrap and fixtures for the
// integration tests
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "github.com/lib/pq" // postgres driver for the admin and migration connections
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDatabaseUnavailable reports that no test database server is reachable.
// Callers skip the test instead of failing it.
var ErrDatabaseUnavailable = errors.New("test database unavailable")

// TestDB is one throwaway database, created for a single test run and dropped
// afterwards.
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *testDBConfig
}

type testDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

func loadTestDBConfig() *testDBConfig {
	return &testDBConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
	}
}

func (c *testDBConfig) dsn(dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, dbName, c.SSLMode)
}

// adminDSN targets the maintenance database, for create/drop.
func (c *testDBConfig) adminDSN() string {
	return c.dsn("postgres")
}

// SetupTestDB creates a uniquely named database, applies the schema from
// migrations/*.sql, and returns a handle on it.
func SetupTestDB() (*TestDB, error) {
	config := loadTestDBConfig()
	dbName := fmt.Sprintf("pricing_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	admin, err := sql.Open("postgres", config.adminDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open server connection: %w", err)
	}
	defer admin.Close()

	if err := admin.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}

	if _, err := admin.Exec("CREATE DATABASE " + dbName); err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	if err := applyMigrations(config.dsn(dbName)); err != nil {
		_, _ = admin.Exec("DROP DATABASE IF EXISTS " + dbName)
		return nil, fmt.Errorf("failed to migrate test database %s: %w", dbName, err)
	}

	db, err := gorm.Open(postgres.Open(config.dsn(dbName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_, _ = admin.Exec("DROP DATABASE IF EXISTS " + dbName)
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}

	return &TestDB{DB: db, Name: dbName, config: config}, nil
}

// TeardownTestDB closes the handle and drops the database, terminating any
// connection still holding it open.
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}

	if sqlDB, err := tdb.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	admin, err := sql.Open("postgres", tdb.config.adminDSN())
	if err != nil {
		return fmt.Errorf("failed to open server connection for cleanup: %w", err)
	}
	defer admin.Close()

	if _, err := admin.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		tdb.Name); err != nil {
		log.Printf("Warning: failed to terminate connections to %s: %v", tdb.Name, err)
	}

	if _, err := admin.Exec("DROP DATABASE IF EXISTS " + tdb.Name); err != nil {
		return fmt.Errorf("failed to drop test database %s: %w", tdb.Name, err)
	}
	return nil
}

// ClearAllTables empties every table so a suite can reuse one database across
// independent subtests.
func (tdb *TestDB) ClearAllTables() error {
	// previous_version_id references pricing_rules itself, CASCADE covers it
	tables := []string{
		"calculation_history",
		"pricing_rules",
		"sequence_counters",
	}
	for _, table := range tables {
		if err := tdb.DB.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE").Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// applyMigrations executes every migrations/*.sql file in name order against
// the fresh database.
func applyMigrations(dsn string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	// Tests run with the package directory as cwd, the migrations live one up
	if filepath.Base(wd) == "tests" {
		wd = filepath.Dir(wd)
	}

	files, err := filepath.Glob(filepath.Join(wd, "migrations", "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migration files under %s", filepath.Join(wd, "migrations"))
	}
	sort.Strings(files)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filepath.Base(file), err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", filepath.Base(file), err)
		}
	}

	log.Printf("Applied %d migrations to test database", len(files))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// TestWithDB provisions a database, runs testFunc against it, and always
// tears the database down. The returned error wraps ErrDatabaseUnavailable
// when no server is reachable.
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return err
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to clean up test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext returns the context the fixtures and flows run under.
func CreateTestContext() context.Context {
	return context.Background()
}
