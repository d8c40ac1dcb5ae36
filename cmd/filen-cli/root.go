package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/filen-go/filen-cli/internal/auth"
	"github.com/filen-go/filen-cli/internal/batch"
	"github.com/filen-go/filen-cli/internal/daemon"
	"github.com/filen-go/filen-cli/internal/fsops"
	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

// Global flags shared across subcommands (spec §6's recognized
// configuration options).
var (
	flagVerbose            bool
	flagForce              bool
	flagOnConflict         string
	flagRecursive          bool
	flagPreserveTimestamps bool
	flagInclude            []string
	flagExclude            []string
	flagTarget             string
	flagOutput             string
	flagPort               int
	flagBackground         bool
	flagDaemon             bool
)

var rootCmd = &cobra.Command{
	Use:           "filen-cli",
	Short:         "Command-line client for an end-to-end encrypted cloud drive",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug traces")
	rootCmd.PersistentFlags().BoolVarP(&flagForce, "force", "f", false, "skip confirmation prompts and treat conflicts as overwrite")
	rootCmd.PersistentFlags().StringVar(&flagOnConflict, "on-conflict", "skip", "conflict policy: skip, overwrite, or newer")
	rootCmd.PersistentFlags().BoolVarP(&flagRecursive, "recursive", "r", false, "recurse into folders")
	rootCmd.PersistentFlags().BoolVar(&flagPreserveTimestamps, "preserve-timestamps", false, "preserve file modification times across transfer")
	rootCmd.PersistentFlags().StringArrayVar(&flagInclude, "include", nil, "only include filenames matching this glob (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&flagExclude, "exclude", nil, "exclude filenames matching this glob (repeatable)")
	rootCmd.PersistentFlags().StringVar(&flagTarget, "target", "", "destination path on the drive")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "local output filename")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "WebDAV port override")
	rootCmd.PersistentFlags().BoolVar(&flagBackground, "background", false, "run the WebDAV server detached in the background")
	rootCmd.PersistentFlags().BoolVar(&flagDaemon, "daemon", false, "internal: marks this process as the spawned WebDAV daemon child")
	_ = rootCmd.PersistentFlags().MarkHidden("daemon")
}

// conflictPolicy resolves the effective conflict policy: --force always
// wins and means overwrite, otherwise --on-conflict applies (spec §6).
func conflictPolicy() batch.ConflictPolicy {
	if flagForce {
		return batch.ConflictOverwrite
	}
	switch flagOnConflict {
	case "overwrite":
		return batch.ConflictOverwrite
	case "newer":
		return batch.ConflictNewer
	default:
		return batch.ConflictSkip
	}
}

// app bundles every component one logged-in session needs, built once
// per invocation from the persisted credentials.
type app struct {
	log       zerolog.Logger
	store     *localstate.Store
	wire      *wireclient.Client
	authSvc   *auth.Service
	resolver  *resolver.Resolver
	engine    *transfer.Engine
	batch     *batch.Orchestrator
	fsops     *fsops.Service
	daemonMgr *daemon.Manager
	creds     model.Credentials
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// openApp builds the session-independent components (logger, local
// state store, wire client, auth service, daemon manager) without
// requiring an active session, for commands that only need local state
// (login, config, webdav lifecycle); requireSession adds the rest.
func openApp() (*app, error) {
	log := newLogger()
	store, err := localstate.New()
	if err != nil {
		return nil, fmt.Errorf("filen-cli: %w", err)
	}
	wire := wireclient.New(log)
	return &app{
		log:       log,
		store:     store,
		wire:      wire,
		authSvc:   auth.New(wire, store, log),
		daemonMgr: daemon.New(store, log),
	}, nil
}

// requireSession extends openApp by restoring the saved session and
// wiring the resolver/transfer/batch/fsops components against it. Most
// subcommands (everything but login/config/daemon lifecycle) need this.
func requireSession(cmd *cobra.Command) (*app, error) {
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	creds, err := a.authSvc.RestoreSession()
	if err != nil {
		return nil, fmt.Errorf("not logged in, run `filen-cli login` first: %w", model.ErrAuth)
	}
	a.creds = creds
	a.resolver = resolver.New(a.wire, creds.Email, creds.MasterKeyList(), creds.BaseFolderUUID)
	a.engine = transfer.New(a.wire, creds.Email)
	a.batch = batch.New(a.resolver, a.engine, a.store, creds.Email)
	a.fsops = fsops.New(a.resolver, a.engine)
	return a, nil
}

// Execute runs the CLI and returns the process exit code (spec §6: 0 on
// success, 1 on failure).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
