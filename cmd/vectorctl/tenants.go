package main

import (
	"fmt"
	"strings"

	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/spf13/cobra"
)

func (c *cli) newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <tenant>...",
		Short: "Create tenant stores; existing stores are left as they are",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				h, err := deps.Backend.Provision(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h)
			}
			return printJSON(cmd.OutOrStdout(), vectorDB.ProvisionAll(cmd.Context(), deps.Backend, args))
		},
	}
}

func (c *cli) newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <tenant>",
		Short: "Report whether a tenant store exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			ok, err := deps.Backend.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants that have a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			tenants, err := deps.Backend.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tenants {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func (c *cli) newDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <tenant>",
		Short: "Delete a tenant store and every passage in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to drop %q without --yes", args[0])
			}
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			if err = deps.Backend.Drop(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the drop")
	return cmd
}

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <tenant>",
		Short: "Show passage and document counts for a tenant store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			stats, err := deps.Backend.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func (c *cli) newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Provision stores for every known tenant",
		Long:  "Provision stores for the tenants given with --tenants, or for every tenant in the document catalog.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("tenants")
			var tenants []string
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenants = append(tenants, t)
				}
			}
			if len(tenants) == 0 {
				if tenants, err = deps.Documents.ListTenants(cmd.Context()); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), vectorDB.ProvisionAll(cmd.Context(), deps.Backend, tenants))
		},
	}
	cmd.Flags().String("tenants", "", "comma separated tenant ids (default: tenants in the catalog)")
	return cmd
}
