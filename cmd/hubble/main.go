package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/hubble/internal/cliconfig"
	"github.com/bft-labs/hubble/pkg/hubble"
	"github.com/bft-labs/hubble/pkg/log"
)

const longHelp = `Submit analytics event batches to the Hubble collection API.

Each batch is one JSON object posted to <host>/batch with your write key.
Batches are sent exactly once; a rejected batch is reported with the
server's status, code and message.

Configuration is read from $HOME/.hubble/config.toml, then HUBBLE_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  hubble send --write-key <key> --file batch.json
  echo '{"batch":[{"event":"signup"}]}' | hubble send --gzip
  hubble send --field source=cli --field batch='[{"event":"ping"}]'
  hubble watch --dir ./outbox
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return hubble.Version
}

// app is the composition root: one config, one logger, one pooled client.
type app struct {
	cfg     cliconfig.Config
	cfgPath string

	logger *log.ZerologAdapter
	client *hubble.Client
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "hubble",
		Short:         "Submit analytics event batches to the Hubble collection API",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.hubble/config.toml)")
	flags.StringVar(&a.cfg.WriteKey, "write-key", a.cfg.WriteKey, "write key used as the x-api-key credential")
	flags.StringVar(&a.cfg.Host, "host", a.cfg.Host, "API host (override only for testing)")
	if err := flags.MarkHidden("host"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to hide host flag: %v\n", err)
	}
	flags.BoolVar(&a.cfg.Gzip, "gzip", a.cfg.Gzip, "gzip-compress request bodies")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "per-request timeout")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(newSendCmd(a), newWatchCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger := a.logger
		if logger == nil {
			logger = log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)
		}
		logger.Error("hubble", log.Err(err))
		stop()
		os.Exit(1)
	}
}

// setup resolves configuration (flags > env > file > defaults) and builds
// the logger and client shared by every subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level, err := a.cfg.Level()
	if err != nil {
		return err
	}
	a.logger = log.NewZerologAdapter(os.Stderr, level)
	a.logger.Debug("configuration", log.Any("config", a.cfg.Masked()))

	a.client = hubble.NewClient(hubble.NewHTTPClient(), a.logger)
	return nil
}
