package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema without syncing",
	Long: `Initdb creates the SQLite database and its tables so the schema can
be inspected or seeded before the first sync. Running it against an
existing database is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println("Database ready at", dbPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
