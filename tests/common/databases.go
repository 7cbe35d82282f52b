// Package common provides shared test infrastructure
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DatabaseContainer is a running database shared by every test in the process.
type DatabaseContainer struct {
	container testcontainers.Container
	host      string
	port      string
	scheme    string
	userinfo  string
	suffix    string
}

// Address returns the connection address of the container.
func (c *DatabaseContainer) Address() string {
	return fmt.Sprintf("%s://%s%s:%s%s", c.scheme, c.userinfo, c.host, c.port, c.suffix)
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *DatabaseContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

type sharedContainer struct {
	once      sync.Once
	container *DatabaseContainer
	err       error
}

const (
	surrealPort  nat.Port = "8000/tcp"
	postgresPort nat.Port = "5432/tcp"
)

var (
	surrealShared  sharedContainer
	postgresShared sharedContainer
)

// StartSurrealDB starts a shared SurrealDB container for the test run.
func StartSurrealDB(t *testing.T) *DatabaseContainer {
	t.Helper()
	return surrealShared.start(t, "SurrealDB", testcontainers.ContainerRequest{
		Image:        "surrealdb/surrealdb:v3.0.0",
		ExposedPorts: []string{string(surrealPort)},
		Cmd:          []string{"start", "--user", "root", "--pass", "root"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(surrealPort),
			wait.ForLog("Started web server"),
		).WithDeadline(60 * time.Second),
	}, surrealPort, "ws", "", "/rpc")
}

// StartPostgres starts a shared Postgres container for the test run.
// The database is "keymetrics" with user and password "postgres".
func StartPostgres(t *testing.T) *DatabaseContainer {
	t.Helper()
	return postgresShared.start(t, "Postgres", testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "keymetrics",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}, postgresPort, "postgres", "postgres:postgres@", "/keymetrics?sslmode=disable")
}

func (s *sharedContainer) start(t *testing.T, name string, req testcontainers.ContainerRequest, port nat.Port, scheme, userinfo, suffix string) *DatabaseContainer {
	t.Helper()

	s.once.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			s.err = fmt.Errorf("start %s container: %w", name, err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s host: %w", name, err)
			return
		}

		mapped, err := container.MappedPort(ctx, port)
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s port: %w", name, err)
			return
		}

		s.container = &DatabaseContainer{
			container: container,
			host:      host,
			port:      mapped.Port(),
			scheme:    scheme,
			userinfo:  userinfo,
			suffix:    suffix,
		}
	})

	if s.err != nil {
		t.Fatalf("%s container failed: %v", name, s.err)
	}
	return s.container
}
