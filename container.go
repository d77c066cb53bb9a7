package slapdtest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/openldap"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container is an OpenLDAP fixture backed by a Docker container instead
// of a local slapd binary. It exposes the same root-identity surface as
// Server, so the same test code can run on hosts that have Docker but no
// OpenLDAP installation.
type Container struct {
	Container *openldap.OpenLDAPContainer
	URI       string
	BaseDN    string
	RootDN    string
	RootPW    string
}

// StartContainer launches an OpenLDAP container and blocks until it
// accepts connections. Prefer NewServer where a local slapd is
// available; container startup is considerably slower.
func StartContainer(ctx context.Context) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "osixia/openldap:1.5.0",
		ExposedPorts: []string{"389/tcp", "636/tcp"},
		Env: map[string]string{
			"LDAP_ORGANISATION":    "Example Org",
			"LDAP_DOMAIN":          "example.org",
			"LDAP_ADMIN_PASSWORD":  "admin123",
			"LDAP_CONFIG_PASSWORD": "config123",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("slapd starting").WithStartupTimeout(120*time.Second).WithPollInterval(2*time.Second),
			wait.ForListeningPort("389/tcp").WithStartupTimeout(120*time.Second).WithPollInterval(2*time.Second),
		),
	}

	genericContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("slapdtest: starting openldap container: %w", err)
	}

	host, err := genericContainer.Host(ctx)
	if err != nil {
		_ = genericContainer.Terminate(ctx)
		return nil, fmt.Errorf("slapdtest: resolving container host: %w", err)
	}
	mappedPort, err := genericContainer.MappedPort(ctx, "389/tcp")
	if err != nil {
		_ = genericContainer.Terminate(ctx)
		return nil, fmt.Errorf("slapdtest: resolving container port: %w", err)
	}

	return &Container{
		Container: &openldap.OpenLDAPContainer{Container: genericContainer},
		URI:       fmt.Sprintf("ldap://%s:%s/", host, mappedPort.Port()),
		BaseDN:    "dc=example,dc=org",
		RootDN:    "cn=admin,dc=example,dc=org",
		RootPW:    "admin123",
	}, nil
}

// Connect dials the container and binds as the admin identity.
func (c *Container) Connect(ctx context.Context) (*ldap.Conn, error) {
	return dialAndBind(ctx, c.URI, c.RootDN, c.RootPW)
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
