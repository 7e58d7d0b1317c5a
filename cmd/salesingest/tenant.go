package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/salesingest/internal/config"
	"github.com/rpattn/salesingest/internal/domain"
)

func newTenantCmd(loadConfig func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(newTenantCreateCmd(loadConfig))
	cmd.AddCommand(newTenantSetActiveCmd(loadConfig, "activate", "Allow uploads for a tenant", true))
	cmd.AddCommand(newTenantSetActiveCmd(loadConfig, "suspend", "Block uploads for a tenant", false))
	return cmd
}

func newTenantCreateCmd(loadConfig func() config.Config) *cobra.Command {
	var inactive bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := newApp(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer application.Close()

			tenant, err := application.tenants.Create(ctx, domain.NewTenant(args[0], !inactive))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tenant)
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the tenant suspended")
	return cmd
}

func newTenantSetActiveCmd(loadConfig func() config.Config, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tenant-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := cmd.Context()
			application, err := newApp(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer application.Close()

			tenant, err := application.tenants.SetActive(ctx, id, active)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tenant)
		},
	}
}
