// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the faculty-sync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/faculty-sync/internal/secrets"
	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const defaultDBPath = "faculty.db"

// creds holds the FAR credentials assembled from .secrets/ and the
// environment at startup. Only commands that talk to the API validate
// them.
var creds types.Credentials

// rootCmd is the base command for the faculty-sync CLI.
var rootCmd = &cobra.Command{
	Use:   "faculty-sync",
	Short: "Sync faculty research metadata into a local database",
	Long: `faculty-sync pulls researcher profiles, publications, and grants from a
Faculty Activity Reporting API into a local SQLite database, keeps the
database current across runs, and classifies researchers working on
health equity and climate health.

Credentials come from .secrets/ files (far_public_key, far_private_key,
far_database_id) or the matching FAR_* environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets")
		c, err := secrets.Credentials(dir)
		if err != nil {
			return err
		}
		creds = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./faculty-sync.yaml or ~/.config/faculty-sync/config.yaml)")
	rootCmd.PersistentFlags().String("secrets", ".secrets/", "directory holding FAR credential files")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite database (default "+defaultDBPath+")")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("faculty-sync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "faculty-sync"))
		}
	}

	viper.SetEnvPrefix("FACULTY_SYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// dbPath resolves the database location from the flag, then the
// config file, then the default.
func dbPath() string {
	if v, _ := rootCmd.PersistentFlags().GetString("db"); v != "" {
		return v
	}
	if v := viper.GetString("db"); v != "" {
		return v
	}
	return defaultDBPath
}

// openStore opens the database for the query-style commands.
func openStore() (*store.Store, error) {
	return store.Open(dbPath(), types.StoreConfig{})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
