package slapdtest

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// Client issues whoami/add/search operations against a running slapd
// instance by invoking the OpenLDAP command-line tools as subprocesses.
// Every operation authenticates as the root identity with simple bind
// and surfaces a non-zero tool exit as ErrOperationFailed tagged with
// the tool name; no partial-success interpretation is attempted.
type Client struct {
	config *Config
	uri    string
	logger *slog.Logger
}

// NewClient builds a tool-backed client for the instance at uri, using
// the tool paths and root identity from cfg.
func NewClient(cfg *Config, uri string) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{config: cfg, uri: uri, logger: logger}
}

// authArgs is the fixed argument prefix shared by every tool invocation:
// simple bind as the root DN against the instance URI.
func (c *Client) authArgs() []string {
	return []string{
		"-x",
		"-D", c.config.RootDN(),
		"-w", c.config.RootPW,
		"-H", c.uri,
	}
}

// Whoami runs ldapwhoami against the instance as an authenticated no-op.
// It is what the readiness probe polls.
func (c *Client) Whoami(ctx context.Context, extraArgs ...string) error {
	c.logger.Debug("ldapwhoami",
		slog.String("uri", c.uri))

	args := append(c.authArgs(), extraArgs...)
	cmd := exec.CommandContext(ctx, c.config.ldapwhoamiPath(), args...)
	cmd.Stdout = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return operationError("ldapwhoami", c.uri, err)
	}
	return nil
}

// Add runs ldapadd against the instance, streaming the LDIF content to
// the tool's standard input and closing it.
func (c *Client) Add(ctx context.Context, ldif string, extraArgs ...string) error {
	c.logger.Debug("ldapadd",
		slog.String("uri", c.uri),
		slog.Int("ldif_bytes", len(ldif)))

	args := append(c.authArgs(), extraArgs...)
	cmd := exec.CommandContext(ctx, c.config.ldapaddPath(), args...)
	cmd.Stdin = strings.NewReader(ldif)
	cmd.Stdout = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return operationError("ldapadd", c.uri, err)
	}
	return nil
}

// SearchRequest describes one ldapsearch invocation. Zero values pick
// the conventional defaults: the instance suffix as base, subtree scope
// and a match-everything filter.
type SearchRequest struct {
	BaseDN     string
	Scope      string
	Filter     string
	Attributes []string
	ExtraArgs  []string
}

// Search runs ldapsearch against the instance, reads its output to
// completion and decodes the LDIF into records.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Record, error) {
	raw, err := c.SearchRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	records, err := DecodeLDIF(raw)
	if err != nil {
		return nil, wrapHarnessError("ldapsearch", c.uri, err)
	}
	return records, nil
}

// SearchRaw runs ldapsearch and returns the raw LDIF output without
// decoding it.
func (c *Client) SearchRaw(ctx context.Context, req SearchRequest) ([]byte, error) {
	if req.BaseDN == "" {
		req.BaseDN = c.config.Suffix
	}
	if req.Scope == "" {
		req.Scope = "sub"
	}
	if req.Filter == "" {
		req.Filter = "(objectClass=*)"
	}

	c.logger.Debug("ldapsearch",
		slog.String("uri", c.uri),
		slog.String("base", req.BaseDN),
		slog.String("scope", req.Scope),
		slog.String("filter", req.Filter))

	args := append(c.authArgs(),
		"-b", req.BaseDN,
		"-s", req.Scope,
		"-LL",
	)
	args = append(args, req.ExtraArgs...)
	args = append(args, req.Filter)
	args = append(args, req.Attributes...)

	cmd := exec.CommandContext(ctx, c.config.ldapsearchPath(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, operationError("ldapsearch", c.uri, err)
	}
	return out.Bytes(), nil
}
