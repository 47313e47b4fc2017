package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/housesim/internal/api"
	"github.com/talgya/housesim/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulation sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv := &api.Server{
				AdminKey: os.Getenv("HOUSESIM_ADMIN_KEY"),
			}
			srv.Port, _ = cmd.Flags().GetInt("port")

			if cfg.Database != "" {
				db, err := persistence.Open(cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				srv.DB = db
			}

			return srv.Start()
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP listen port")
	return cmd
}
