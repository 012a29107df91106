package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
	"github.com/agentworkforce/relaysheet/internal/config"
	"github.com/agentworkforce/relaysheet/internal/logger"
)

// flagKeys maps command-line flags onto config keys. A flag only overrides
// the config when it was set explicitly.
var flagKeys = map[string]string{
	"addr":         "addr",
	"mode":         "mode",
	"store":        "store.dsn",
	"spreadsheet":  "spreadsheet_id",
	"secret":       "signature.secret",
	"events-token": "events.token",
	"log-level":    "log.level",
	"log-json":     "log.json",
}

// annotationStore set to "none" marks commands that never open a table store.
const annotationStore = "relaysheet/store"

type app struct {
	configFile string
	envFiles   []string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "relaysheet: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "relaysheet",
		Short: "Record voice-agent call events into spreadsheet tables",
		Long: `relaysheet receives call events from a voice agent and records them as rows
in the Jobs, Emergency and Inquiry tables of a spreadsheet or another table store.

Examples:
  relaysheet serve --spreadsheet 1AbC...            # serve webhooks against Google Sheets
  relaysheet serve --store memory:// --mode voice   # local voice-mode server
  relaysheet dispatch getJob --data '{"phone_number":"555-0100"}'
  relaysheet replay calls.jsonl --url http://127.0.0.1:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd.Flags(), cmd.Annotations[annotationStore] != "none")
			if err != nil {
				return err
			}
			a.cfg = cfg
			if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
				return errors.Wrap(err, "initialize logger")
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	flags.String("store", "", "table store DSN (sheets://, memory://, file://, postgres://, dynamodb://)")
	flags.String("spreadsheet", "", "Google Sheets spreadsheet id, used when --store is empty")
	flags.String("mode", "", "root route mode: strict or voice")
	flags.String("secret", "", "HMAC secret used to verify (serve) or sign (replay) request bodies")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit JSON logs")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newDispatchCmd(a))
	root.AddCommand(newReplayCmd(a))
	return root
}

func (a *app) load(flags *pflag.FlagSet, needsStore bool) (*config.Config, error) {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return nil, err
	}
	v, err := config.New(a.configFile)
	if err != nil {
		return nil, err
	}
	if err := bindChangedFlags(v, flags); err != nil {
		return nil, err
	}
	if !needsStore {
		v.SetDefault("store.dsn", "memory://")
	}
	return config.Load(v)
}

func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "bind --%s", name)
		}
	}
	return nil
}

// openService builds the configured store and a service over it. The returned
// closer releases store resources and is never nil.
func openService(ctx context.Context, cfg *config.Config, opts callsheet.ServiceOptions) (*callsheet.Service, func(), error) {
	store, err := callsheet.BuildTableStoreFromDSN(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, func() {}, errors.Wrapf(err, "open store %s", redactDSN(cfg.Store.DSN))
	}
	closeStore := func() {
		if closer, ok := store.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	opts.Tables = cfg.Tables
	svc := callsheet.NewService(store, opts)
	if err := svc.EnsureHeaders(ctx); err != nil {
		closeStore()
		return nil, func() {}, err
	}
	return svc, closeStore, nil
}

// redactDSN drops credentials before a DSN reaches a log line or error.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return scheme + "://***@" + rest[at+1:]
}
