package cmd

import (
	"github.com/akademi-crypto/vidhub/pkg/vhdb"
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		c := loadConfig(cmd)

		db := vhdb.MustConnectToDB(c)
		if err := vhdb.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %s", err)
		}

		log.Infof("Database schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
