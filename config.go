package slapdtest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// confTemplate is the fixed slapd.conf template. Every placeholder is
// filled from ConfigParams; path, DN and password values are quoted via
// Quote before substitution.
const confTemplate = `
moduleload back_{{.Database}}
include {{.SchemaInclude}}
loglevel {{.LogLevel}}
allow bind_v2
database {{.Database}}
directory {{.Directory}}
suffix {{.Suffix}}
rootdn {{.RootDN}}
rootpw {{.RootPW}}
`

var confTmpl = template.Must(template.New("slapd.conf").Parse(confTemplate))

// ConfigParams is the fixed parameter set consumed when rendering
// slapd.conf. It is immutable once built; quoted fields must already
// carry their surrounding double quotes.
type ConfigParams struct {
	SchemaInclude string // quoted path of the schema include
	LogLevel      string // slapd loglevel directive value, unquoted
	Database      string // backend kind, e.g. "mdb"
	Directory     string // quoted data directory path
	Suffix        string // quoted naming suffix DN
	RootDN        string // quoted root DN
	RootPW        string // quoted root password
}

// Quote escapes the '\' and '"' characters in s and surrounds the result
// with double quotes, for use as a slapd.conf directive value.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// GenerateConfig renders the slapd.conf text for the given parameters.
// The output is purely a function of the input, so repeated calls with
// identical parameters yield identical text. An empty field is a
// programming error and is reported rather than rendered.
func GenerateConfig(params ConfigParams) (string, error) {
	for name, value := range map[string]string{
		"SchemaInclude": params.SchemaInclude,
		"LogLevel":      params.LogLevel,
		"Database":      params.Database,
		"Directory":     params.Directory,
		"Suffix":        params.Suffix,
		"RootDN":        params.RootDN,
		"RootPW":        params.RootPW,
	} {
		if value == "" {
			return "", fmt.Errorf("slapdtest: config parameter %s is empty", name)
		}
	}

	var b strings.Builder
	if err := confTmpl.Execute(&b, params); err != nil {
		return "", fmt.Errorf("slapdtest: rendering slapd.conf: %w", err)
	}
	return b.String(), nil
}

// Config contains the configuration for an ephemeral slapd instance.
// Build it once (typically via DefaultConfig) and pass it to NewServer;
// the server never consults the environment after construction.
type Config struct {
	// TempDir is the parent directory for the instance's working
	// directory. Defaults to $TMP or the current directory.
	TempDir string
	// SbinDir holds slapd and slaptest. Defaults to $SBIN or /usr/sbin.
	SbinDir string
	// BinDir holds ldapadd, ldapsearch and ldapwhoami. Defaults to $BIN
	// or /usr/bin.
	BinDir string
	// SchemaPath is the schema file passed to the include directive.
	SchemaPath string

	// Database is the slapd backend kind.
	Database string
	// Suffix is the top-level DN under which all entries live.
	Suffix string
	// RootCN is the common name of the administrative identity; the root
	// DN is cn=<RootCN>,<Suffix>.
	RootCN string
	// RootPW is the administrative password.
	RootPW string
	// LogLevel is the slapd loglevel directive value.
	LogLevel string

	// StartupTimeout bounds the whole Start sequence, including the
	// readiness wait. Zero means the default of one minute; the wait is
	// never unbounded.
	StartupTimeout time.Duration
	// PollInterval is the pause between readiness probe attempts.
	PollInterval time.Duration

	// Logger receives structured lifecycle logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Defaults for the pieces of Config that are not host-specific.
const (
	DefaultDatabase = "mdb"
	DefaultSuffix   = "dc=slapd-test,dc=go-ldap,dc=org"
	DefaultRootCN   = "Manager"
	DefaultRootPW   = "password"
	DefaultLogLevel = "stats stats2"

	DefaultStartupTimeout = time.Minute
	DefaultPollInterval   = time.Second
)

// DefaultConfig builds a Config from the conventional environment
// variables (TMP, SBIN, BIN, SCHEMA, SCHEMA_FILE, SCHEMA_PATH), falling
// back to the usual OpenLDAP install locations. The environment is read
// here, once; the resulting value is self-contained.
func DefaultConfig() *Config {
	tmpDir := os.Getenv("TMP")
	if tmpDir == "" {
		if wd, err := os.Getwd(); err == nil {
			tmpDir = wd
		} else {
			tmpDir = os.TempDir()
		}
	}

	sbinDir := os.Getenv("SBIN")
	if sbinDir == "" {
		sbinDir = "/usr/sbin"
	}
	binDir := os.Getenv("BIN")
	if binDir == "" {
		binDir = "/usr/bin"
	}

	schemaDir := os.Getenv("SCHEMA")
	if schemaDir == "" {
		for _, candidate := range []string{"/etc/openldap/schema", "/etc/ldap/schema"} {
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				schemaDir = candidate
				break
			}
		}
	}
	schemaFile := os.Getenv("SCHEMA_FILE")
	if schemaFile == "" {
		schemaFile = "core.schema"
	}
	schemaPath := os.Getenv("SCHEMA_PATH")
	if schemaPath == "" && schemaDir != "" {
		schemaPath = filepath.Join(schemaDir, schemaFile)
	}

	return &Config{
		TempDir:        tmpDir,
		SbinDir:        sbinDir,
		BinDir:         binDir,
		SchemaPath:     schemaPath,
		Database:       DefaultDatabase,
		Suffix:         DefaultSuffix,
		RootCN:         DefaultRootCN,
		RootPW:         DefaultRootPW,
		LogLevel:       DefaultLogLevel,
		StartupTimeout: DefaultStartupTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// RootDN returns the administrative DN, cn=<RootCN>,<Suffix>.
func (c *Config) RootDN() string {
	return fmt.Sprintf("cn=%s,%s", c.RootCN, c.Suffix)
}

func (c *Config) slapdPath() string { return filepath.Join(c.SbinDir, "slapd") }

func (c *Config) slaptestPath() string { return filepath.Join(c.SbinDir, "slaptest") }

func (c *Config) ldapaddPath() string { return filepath.Join(c.BinDir, "ldapadd") }

func (c *Config) ldapsearchPath() string { return filepath.Join(c.BinDir, "ldapsearch") }

func (c *Config) ldapwhoamiPath() string { return filepath.Join(c.BinDir, "ldapwhoami") }
