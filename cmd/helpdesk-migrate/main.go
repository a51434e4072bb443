package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/config"
	"github.com/platinummonkey/helpdesk/pkg/storage/postgres"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

var (
	configPath string
	cfg        *config.Config
	db         *sql.DB

	bootstrap users.BootstrapRequest
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk-migrate",
	Short: "Database migration tool for the helpdesk",
	Long: `Database migration tool for the helpdesk.
Applies the embedded PostgreSQL schema migrations and seeds the first admin.`,
	PersistentPreRun:  setupDatabase,
	PersistentPostRun: closeDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

var listCmd = &cobra.Command{
	Use:              "list",
	Short:            "List the embedded migration files",
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run:              runList,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the internal company and its first admin user",
	Long: `Create the internal company, an admin role with every permission,
and one admin user. Refuses to run once any user exists.`,
	Run: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	bootstrapCmd.Flags().StringVar(&bootstrap.CompanyName, "company", "Helpdesk", "Internal company name")
	bootstrapCmd.Flags().StringVar(&bootstrap.RoleName, "role", "Admin", "Admin role name")
	bootstrapCmd.Flags().StringVar(&bootstrap.Name, "name", "Administrator", "Admin display name")
	bootstrapCmd.Flags().StringVar(&bootstrap.Email, "email", "", "Admin email")
	bootstrapCmd.Flags().StringVar(&bootstrap.Password, "password", "", "Admin password (or HELPDESK_ADMIN_PASSWORD)")
	_ = bootstrapCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

func setupDatabase(cmd *cobra.Command, args []string) {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err = postgres.Open(cmd.Context(), cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
}

func closeDatabase(cmd *cobra.Command, args []string) {
	if db != nil {
		db.Close()
	}
}

// newMigrator opens a dedicated connection; closing the migrator closes it.
func newMigrator() *migrate.Migrate {
	conn, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	m, err := postgres.NewMigrator(conn)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	return m
}

func closeMigrator(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		log.Printf("Failed to close migrator: source=%v database=%v", srcErr, dbErr)
	}
}

func runUp(cmd *cobra.Command, args []string) {
	m := newMigrator()
	defer closeMigrator(m)

	fmt.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No pending migrations")
			return
		}
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	fmt.Println("Migrations applied successfully")
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			log.Fatalf("Invalid steps %q: must be a positive integer", args[0])
		}
		steps = n
	}

	m := newMigrator()
	defer closeMigrator(m)

	fmt.Printf("Rolling back %d migration(s)...\n", steps)
	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to roll back")
			return
		}
		log.Fatalf("Failed to roll back migrations: %v", err)
	}
	fmt.Println("Rollback completed")
}

func runGoto(cmd *cobra.Command, args []string) {
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		log.Fatalf("Invalid version %q: %v", args[0], err)
	}

	m := newMigrator()
	defer closeMigrator(m)

	fmt.Printf("Migrating to version %d...\n", version)
	if err := m.Migrate(uint(version)); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("Already at that version")
			return
		}
		log.Fatalf("Failed to migrate: %v", err)
	}
	fmt.Println("Migration completed")
}

func runVersion(cmd *cobra.Command, args []string) {
	m := newMigrator()
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied")
			return
		}
		log.Fatalf("Failed to read version: %v", err)
	}
	fmt.Printf("Current version: %d\n", version)
	if dirty {
		fmt.Println("WARNING: database is dirty; fix the schema and run force")
	}
}

func runForce(cmd *cobra.Command, args []string) {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("Invalid version %q: %v", args[0], err)
	}

	m := newMigrator()
	defer closeMigrator(m)

	if err := m.Force(version); err != nil {
		log.Fatalf("Failed to force version: %v", err)
	}
	fmt.Printf("Forced version to %d\n", version)
}

func runList(cmd *cobra.Command, args []string) {
	files, err := postgres.MigrationFiles()
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}
	for _, f := range files {
		fmt.Println(f)
	}
}

func runBootstrap(cmd *cobra.Command, args []string) {
	if bootstrap.Password == "" {
		bootstrap.Password = os.Getenv("HELPDESK_ADMIN_PASSWORD")
	}
	u, err := users.Bootstrap(cmd.Context(), db, bootstrap)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	fmt.Printf("Created admin %s (user %d) in company %q\n", u.Email, u.ID, u.CompanyName)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
