package cmd

import (
	"fmt"
	"os"

	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cloudratio/advisor-report-backend/internal/config"
)

var migrateCmd = &cobra.Command{Use: "migrate", Short: "migrate database"}

func migrationInstance() *migrate.Migrate {
	cfg := config.GetConfig()
	db, err := sql.Open("pgx", fmt.Sprintf("postgres://%s:%s@%s:%s/%s", cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		fmt.Printf("Unable to get *sql.DB: %v\n", err)
		os.Exit(1)
	}
	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		fmt.Printf("Unable to get db driver: %v\n", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithDatabaseInstance("file://./migrations", cfg.DBName, driver)
	if err != nil {
		fmt.Printf("Unable to get migration instance: %v\n", err)
		os.Exit(1)
	}
	return m
}

var migrateUp = &cobra.Command{
	Use:   "up",
	Short: "Forward database migration",
	Long:  "Forward database migration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Forward database migration")
		m := migrationInstance()
		err := m.Up()
		if err != nil {
			fmt.Println(err)
		}
	},
}

var migratedown = &cobra.Command{
	Use:   "down",
	Short: "Reverse database migration",
	Long:  "Reverse database migration by one step",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Reverse database migration")
		m := migrationInstance()
		err := m.Steps(-1)
		if err != nil {
			fmt.Println(err)
		}
	},
}

var dbCmd = &cobra.Command{Use: "db", Short: "Use to migrate database"}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUp)
	migrateCmd.AddCommand(migratedown)
}
