package main

import (
	"fmt"

	"github.com/nyanpass/panel/internal/app"
	"github.com/spf13/cobra"
)

func newAdminCmd(state *cliState) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var params app.AdminParams
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin; the first admin is always a super admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, errLoad := app.LoadConfig(state.appCfg)
			if errLoad != nil {
				return errLoad
			}
			admin, errCreate := app.CreateAdminUser(cfg, params)
			if errCreate != nil {
				return errCreate
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id=%d super_admin=%t)\n", admin.Username, admin.ID, admin.IsSuperAdmin)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&params.Username, "username", "u", "", "login name")
	createCmd.Flags().StringVarP(&params.Password, "password", "p", "", "password, at least 6 characters")
	createCmd.Flags().StringVar(&params.SiteName, "site-name", "", "site name used as the TOTP issuer")
	createCmd.Flags().StringSliceVar(&params.Permissions, "permission", nil, `granted permission key such as "GET /api/v1/admin/orders" (repeatable)`)
	createCmd.Flags().BoolVar(&params.SuperAdmin, "super", false, "grant every permission")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(createCmd)
	return adminCmd
}
