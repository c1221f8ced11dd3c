package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/salt/log"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	logLevelDebug = "debug"
	PGHost        = "localhost"
	PGUsername    = "test_user"
	PGPassword    = "test_pass"
	PGName        = "test_db"
)

// PGConfig returns the connection settings of a container started by
// RunTestPG on the given port.
func PGConfig(port int) postgres.Config {
	return postgres.Config{
		Host:         PGHost,
		Port:         port,
		Name:         PGName,
		User:         PGUsername,
		Password:     PGPassword,
		SSLMode:      "disable",
		QueryTimeout: 5 * time.Second,
	}
}

// RunTestPG starts a disposable postgres container. Tests are skipped when
// no docker daemon is reachable.
func RunTestPG(t *testing.T, logger log.Logger) (int, error) {
	t.Helper()

	opts := &dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "13",
		Env: []string{
			"POSTGRES_PASSWORD=" + PGPassword,
			"POSTGRES_USER=" + PGUsername,
			"POSTGRES_DB=" + PGName,
		},
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	resource, err := pool.RunWithOptions(opts, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return 0, fmt.Errorf("new test PG: start resource: %w", err)
	}

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	if err != nil {
		return 0, fmt.Errorf("new test PG: parse external port of container to int: %w", err)
	}

	if logger.Level() == logLevelDebug {
		logWaiter, err := pool.Client.AttachToContainerNonBlocking(docker.AttachToContainerOptions{
			Container:    resource.Container.ID,
			OutputStream: logger.Writer(),
			ErrorStream:  logger.Writer(),
			Stderr:       true,
			Stdout:       true,
			Stream:       true,
		})
		if err != nil {
			return 0, fmt.Errorf("new test PG: connect to postgres container log output: %w", err)
		}
		defer func() {
			if err := logWaiter.Close(); err != nil {
				logger.Error("could not close container log", "error", err)
			}
			if err := logWaiter.Wait(); err != nil {
				logger.Error("could not wait for container log to close", "error", err)
			}
		}()
	}

	// hard kill the container after two minutes
	if err := resource.Expire(120); err != nil {
		return 0, err
	}

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		db, err := sql.Open("pgx", fmt.Sprintf(
			"dbname=%s user=%s password='%s' host=%s port=%d sslmode=disable",
			PGName, PGUsername, PGPassword, PGHost, port,
		))
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Ping()
	}); err != nil {
		return 0, fmt.Errorf("could not connect to docker: %w", err)
	}

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Error(err)
		}
	})

	return port, nil
}

// ResetSchema drops every table and reapplies all migrations.
func ResetSchema(t *testing.T, pgClient *postgres.Client, cfg postgres.Config) error {
	t.Helper()

	queries := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
	}
	if err := pgClient.ExecQueries(context.Background(), queries); err != nil {
		return err
	}

	_, err := pgClient.Migrate(cfg)
	return err
}
