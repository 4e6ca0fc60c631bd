package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/dxwdl/internal/compiler"
	"github.com/me/dxwdl/internal/config"
	"github.com/me/dxwdl/internal/dx"
	"github.com/me/dxwdl/internal/logging"
	"github.com/me/dxwdl/pkg/wdl"
)

func newCompileCmd() *cobra.Command {
	var (
		flagOutput string
		flagLocked bool
		flagReorg  bool
	)
	cmd := &cobra.Command{
		Use:   "compile <workflow.wdl>",
		Short: "Compile a WDL document to its staged-workflow IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("locked") {
				cfg.Locked = flagLocked
			}
			if cmd.Flags().Changed("reorg") {
				cfg.Reorg = flagReorg
			}
			if cfg.LogLevel != "" && flagVerbosity == 0 {
				logger = logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			ns, err := wdl.ParseDocument(string(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			resolver, cleanup, err := buildResolver(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			comp := compiler.New(logger, resolver, compiler.Options{Locked: cfg.Locked, Reorg: cfg.Reorg})
			irns, err := comp.Compile(cmd.Context(), ns)
			if err != nil {
				return fmt.Errorf("compile %s: %w", args[0], err)
			}

			out, err := json.MarshalIndent(irns, "", "  ")
			if err != nil {
				return fmt.Errorf("serialize namespace: %w", err)
			}
			out = append(out, '\n')

			if flagOutput == "" || flagOutput == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(flagOutput, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", flagOutput, err)
			}
			logger.Info("wrote namespace", "path", flagOutput)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&flagLocked, "locked", false, "Compile the workflow with a closed input/output surface")
	cmd.Flags().BoolVar(&flagReorg, "reorg", false, "Append an output reorganization stage")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <workflow.wdl>",
		Short: "Parse a WDL document and report syntax errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if err := wdl.CheckSource(string(data)); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
			return nil
		},
	}
}

// buildResolver assembles the platform resolver chain: API client, with
// an SQLite cache layered on when configured. Without an endpoint an
// empty static resolver keeps offline compilations working for
// documents that need no lookups.
func buildResolver(cfg config.Config) (dx.Resolver, func(), error) {
	noop := func() {}
	if cfg.APIEndpoint == "" || cfg.Token == "" {
		return dx.StaticResolver{}, noop, nil
	}
	var resolver dx.Resolver = dx.NewAPIResolver(cfg.APIEndpoint, cfg.Token, logger)
	if cfg.CachePath == "" {
		return resolver, noop, nil
	}
	cache, err := dx.NewCachingResolver(cfg.CachePath, resolver, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open resolution cache: %w", err)
	}
	return cache, func() { cache.Close() }, nil
}
