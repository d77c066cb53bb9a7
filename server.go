package slapdtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Server controls one ephemeral slapd instance: a private port, a
// temporary data store and an administrative identity. It is the
// process-lifecycle state machine of the harness: Stopped initially,
// Starting while the readiness probe runs, Running afterwards, and back
// to Stopped via Stop, Wait or a crash.
//
// A Server is exclusively owned by the test that created it. Lifecycle
// methods are synchronous and must not be called concurrently.
type Server struct {
	config *Config
	logger *slog.Logger
	client *Client

	port     int
	uri      string
	tmpDir   string
	confPath string
	dataDir  string

	// cmd is non-nil exactly while the slapd process is running (or
	// starting); it is cleared only after the OS has reaped the process.
	cmd    *exec.Cmd
	exited chan error

	startedHook func(context.Context, *Server) error
	closed      bool
}

// NewServer allocates a port and a working directory layout for a new
// instance. The server is not started; call Start, and make sure Close
// runs on every exit path so no slapd process outlives the test run:
//
//	srv, err := slapdtest.NewServer(slapdtest.DefaultConfig())
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer srv.Close()
func NewServer(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("slapdtest: config cannot be nil")
	}
	// Work on a private copy so backfilled defaults and options never
	// leak into a Config the caller may share across servers.
	own := *cfg
	cfg = &own
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	port, err := FindAvailableTCPPort(Localhost)
	if err != nil {
		return nil, err
	}

	tmpDir := filepath.Join(cfg.TempDir, "slapdtest")
	s := &Server{
		config:   cfg,
		logger:   logger,
		port:     port,
		uri:      fmt.Sprintf("ldap://%s:%d/", Localhost, port),
		tmpDir:   tmpDir,
		confPath: filepath.Join(tmpDir, "slapd.conf"),
		dataDir:  filepath.Join(tmpDir, "openldap-data"),
	}
	s.client = NewClient(cfg, s.uri)
	s.startedHook = seedInitialObjects

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// URI returns the ldap:// URI of the instance.
func (s *Server) URI() string { return s.uri }

// Port returns the TCP port allocated for the instance.
func (s *Server) Port() int { return s.port }

// Suffix returns the naming suffix all entries live under.
func (s *Server) Suffix() string { return s.config.Suffix }

// RootDN returns the administrative DN.
func (s *Server) RootDN() string { return s.config.RootDN() }

// RootPW returns the administrative password.
func (s *Server) RootPW() string { return s.config.RootPW }

// TempDir returns the instance's working directory.
func (s *Server) TempDir() string { return s.tmpDir }

// Client returns the tool-backed client bound to this instance.
func (s *Server) Client() *Client { return s.client }

// IsRunning reports whether the slapd process is currently running.
func (s *Server) IsRunning() bool { return s.cmd != nil }

// Start brings the instance up and blocks until it answers authenticated
// requests. Calling Start on a running instance is a no-op. The working
// directory is wiped first, so each start begins from an empty data
// store; once ready, the initial seed objects are added via the started
// hook. On any failure the partial state is cleaned up best-effort
// (stray config removed, a spawned process stopped) before the original
// error is returned.
func (s *Server) Start(ctx context.Context) error {
	if s.closed {
		return ErrServerClosed
	}
	if s.cmd != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StartupTimeout)
	defer cancel()

	if err := s.initDirectories(); err != nil {
		return err
	}
	if err := s.testConfiguration(ctx); err != nil {
		return err
	}
	if err := s.startSlapd(ctx); err != nil {
		s.cleanupFailedStart()
		return err
	}
	if err := s.waitForReady(ctx); err != nil {
		s.cleanupFailedStart()
		return err
	}

	s.logger.Debug("slapd_ready",
		slog.String("uri", s.uri))

	if s.startedHook != nil {
		if err := s.startedHook(ctx, s); err != nil {
			s.cleanupFailedStart()
			return err
		}
	}
	return nil
}

// initDirectories clears the working directory and recreates the layout
// for a fresh data store.
func (s *Server) initDirectories() error {
	s.logger.Debug("clearing_workdir",
		slog.String("path", s.tmpDir))
	if err := os.RemoveAll(s.tmpDir); err != nil {
		return fmt.Errorf("slapdtest: clearing %s: %w", s.tmpDir, err)
	}
	if err := os.MkdirAll(s.dataDir, 0o700); err != nil {
		return fmt.Errorf("slapdtest: creating %s: %w", s.dataDir, err)
	}
	return nil
}

// generateConfig renders the slapd.conf text for this instance.
func (s *Server) generateConfig() (string, error) {
	return GenerateConfig(ConfigParams{
		SchemaInclude: Quote(s.config.SchemaPath),
		LogLevel:      s.config.LogLevel,
		Database:      s.config.Database,
		Directory:     Quote(s.dataDir),
		Suffix:        Quote(s.config.Suffix),
		RootDN:        Quote(s.config.RootDN()),
		RootPW:        Quote(s.config.RootPW),
	})
}

func (s *Server) writeConfig() error {
	text, err := s.generateConfig()
	if err != nil {
		return err
	}
	s.logger.Debug("writing_config",
		slog.String("path", s.confPath))
	if err := os.WriteFile(s.confPath, []byte(text), 0o600); err != nil {
		return fmt.Errorf("slapdtest: writing %s: %w", s.confPath, err)
	}
	return nil
}

// testConfiguration validates the generated configuration with slaptest
// before anything is spawned. The config file is written for the check
// and removed again whether or not validation passes; startSlapd writes
// a fresh copy for the server itself.
func (s *Server) testConfiguration(ctx context.Context) error {
	if err := s.writeConfig(); err != nil {
		return err
	}
	defer s.removeConfig()

	args := []string{"-f", s.confPath, "-u"}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		args = append(args, "-v", "-d", "config")
	} else {
		args = append(args, "-Q")
	}

	s.logger.Debug("testing_configuration",
		slog.String("path", s.confPath))
	cmd := exec.CommandContext(ctx, s.config.slaptestPath(), args...)
	if err := cmd.Run(); err != nil {
		return &HarnessError{
			Op:  "slaptest",
			URI: s.uri,
			Err: fmt.Errorf("%w: %v", ErrConfigInvalid, err),
		}
	}
	return nil
}

// startSlapd writes the config and spawns the slapd process listening on
// the instance URI. A reaper goroutine delivers the process's exit
// status on s.exited exactly once; whichever lifecycle path receives it
// performs the transition-to-Stopped bookkeeping.
func (s *Server) startSlapd(ctx context.Context) error {
	if err := s.writeConfig(); err != nil {
		return err
	}

	cmd := exec.Command(s.config.slapdPath(),
		"-f", s.confPath,
		"-h", s.uri,
		"-d", "0",
	)
	s.logger.Info("starting_slapd",
		slog.String("uri", s.uri),
		slog.String("config", s.confPath))
	if err := cmd.Start(); err != nil {
		s.removeConfig()
		return fmt.Errorf("slapdtest: spawning slapd: %w", err)
	}

	s.cmd = cmd
	s.exited = make(chan error, 1)
	go func(c *exec.Cmd, exited chan<- error) {
		exited <- c.Wait()
	}(cmd, s.exited)
	return nil
}

// Stop sends slapd a graceful termination signal and blocks until the OS
// reports it exited. Stopping an instance that is not running is a
// no-op.
func (s *Server) Stop() error {
	if s.cmd == nil {
		return nil
	}
	s.logger.Debug("stopping_slapd",
		slog.Int("pid", s.cmd.Process.Pid))
	// The process may already have exited and been reaped; its exit
	// status is then buffered on s.exited, so signaling is unnecessary
	// and Wait still completes the bookkeeping.
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("slapdtest: signaling slapd: %w", err)
	}
	return s.Wait()
}

// Wait blocks until the slapd process exits by itself (for example after
// an external signal or a crash) and performs the same bookkeeping as
// Stop, without sending a signal.
func (s *Server) Wait() error {
	if s.cmd == nil {
		return nil
	}
	<-s.exited
	s.stopped()
	return nil
}

// Restart stops the instance and starts it again. Start wipes the
// working directory, so all prior directory content is destroyed and the
// seed objects are recreated; this is explicitly a reset, not a warm
// restart. The instance is started even if it was not running.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Close releases the instance: it stops a running server and removes the
// working directory. Close is idempotent, and the Server is unusable
// afterwards.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.Stop()
	if rmErr := os.RemoveAll(s.tmpDir); rmErr != nil && err == nil {
		err = fmt.Errorf("slapdtest: removing %s: %w", s.tmpDir, rmErr)
	}
	return err
}

// stopped records that the slapd process is known to have terminated:
// the process handle is cleared and the transient config file removed.
func (s *Server) stopped() {
	if s.cmd == nil {
		return
	}
	s.logger.Info("slapd_terminated",
		slog.Int("pid", s.cmd.Process.Pid))
	s.cmd = nil
	s.exited = nil
	s.removeConfig()
}

// cleanupFailedStart performs best-effort compensating cleanup when Start
// fails partway: remove a lingering config file and stop the process if
// one was spawned. Failures here are logged and never mask the primary
// error.
func (s *Server) cleanupFailedStart() {
	if err := s.Stop(); err != nil {
		s.logger.Debug("cleanup_stop_failed",
			slog.String("error", err.Error()))
	}
	s.removeConfig()
}

func (s *Server) removeConfig() {
	if err := os.Remove(s.confPath); err != nil && !os.IsNotExist(err) {
		s.logger.Debug("could_not_remove_config",
			slog.String("path", s.confPath),
			slog.String("error", err.Error()))
	}
}

// Whoami runs an authenticated no-op against the instance.
func (s *Server) Whoami(ctx context.Context, extraArgs ...string) error {
	return s.client.Whoami(ctx, extraArgs...)
}

// Add adds the given LDIF content to the instance.
func (s *Server) Add(ctx context.Context, ldif string, extraArgs ...string) error {
	return s.client.Add(ctx, ldif, extraArgs...)
}

// Search queries the instance and returns the decoded records.
func (s *Server) Search(ctx context.Context, req SearchRequest) ([]Record, error) {
	return s.client.Search(ctx, req)
}

// seedInitialObjects is the default started hook: it adds the domain
// object at the suffix and the administrative role at the root DN, so a
// freshly started instance is initialized rather than empty.
func seedInitialObjects(ctx context.Context, s *Server) error {
	suffix := s.config.Suffix
	rootDN := s.config.RootDN()
	if !strings.HasPrefix(suffix, "dc=") {
		return fmt.Errorf("slapdtest: suffix %q must start with dc=", suffix)
	}
	if !strings.HasSuffix(rootDN, ","+suffix) {
		return fmt.Errorf("slapdtest: root DN %q must live under suffix %q", rootDN, suffix)
	}
	suffixDC := strings.TrimPrefix(strings.SplitN(suffix, ",", 2)[0], "dc=")

	s.logger.Debug("seeding_initial_objects",
		slog.String("suffix", suffix),
		slog.String("root_dn", rootDN))

	ldif := strings.Join([]string{
		"dn: " + suffix,
		"objectClass: dcObject",
		"objectClass: organization",
		"dc: " + suffixDC,
		"o: " + suffixDC,
		"",
		"dn: " + rootDN,
		"objectClass: organizationalRole",
		"cn: " + s.config.RootCN,
		"",
	}, "\n")
	if err := s.client.Add(ctx, ldif); err != nil {
		return wrapHarnessError("seed", s.uri, err)
	}
	return nil
}
