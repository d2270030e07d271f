package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/akolanti/TenantRAG/internal/bootstrap"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

// opener builds the dependencies a command needs. full=false skips the embedding provider.
type opener func(ctx context.Context, cfg *config.Config, full bool) (*bootstrap.Deps, error)

func defaultOpener(ctx context.Context, cfg *config.Config, full bool) (*bootstrap.Deps, error) {
	if full {
		return bootstrap.Open(ctx, cfg)
	}
	return bootstrap.OpenManager(ctx, cfg)
}

type cli struct {
	open opener
	deps *bootstrap.Deps
}

// NewRootCmd builds vectorctl. A nil open uses the configured backends.
func NewRootCmd(open opener) *cobra.Command {
	if open == nil {
		open = defaultOpener
	}
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "vectorctl",
		Short:         "Administer tenant vector stores and documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to config file (default $"+config.ConfigFileEnv+")")
	root.PersistentFlags().String("backend", "", "override vector.backend (qdrant, pgvector, chromem)")

	root.AddCommand(
		c.newProvisionCmd(),
		c.newExistsCmd(),
		c.newListCmd(),
		c.newDropCmd(),
		c.newStatsCmd(),
		c.newBackfillCmd(),
		c.newIngestCmd(),
		c.newRetrieveCmd(),
		c.newRemoveCmd(),
		c.newStatusCmd(),
	)
	// PersistentPostRun is skipped when RunE fails, so close here instead
	for _, sub := range root.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			defer c.close()
			return run(cmd, args)
		}
	}
	return root
}

func (c *cli) close() {
	if c.deps != nil {
		c.deps.Close()
		c.deps = nil
	}
}

// connect loads config and opens dependencies once per invocation.
func (c *cli) connect(cmd *cobra.Command, full bool) (*bootstrap.Deps, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Vector.Backend = backend
	}
	logger_i.InitWithWriter(cfg.Log, cmd.ErrOrStderr())

	deps, err := c.open(cmd.Context(), cfg, full)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.deps = deps
	return deps, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
