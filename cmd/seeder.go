package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/user"
	userPostgres "github.com/frahmantamala/hrms-identity/internal/user/postgres"
)

var (
	clearData    bool
	seedPassword string
)

type seedUser struct {
	Username string
	Email    string
	First    string
	Last     string
	Roles    []user.Role
}

var seedUsers = []seedUser{
	{Username: "admin", Email: "admin@hrms.local", First: "System", Last: "Admin", Roles: []user.Role{user.RoleAdmin, user.RoleEmployee}},
	{Username: "hr", Email: "hr@hrms.local", First: "Human", Last: "Resources", Roles: []user.Role{user.RoleHR, user.RoleEmployee}},
	{Username: "manager", Email: "manager@hrms.local", First: "Team", Last: "Manager", Roles: []user.Role{user.RoleManager, user.RoleEmployee}},
	{Username: "employee", Email: "employee@hrms.local", First: "Regular", Last: "Employee", Roles: []user.Role{user.RoleEmployee}},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample accounts",
	Long:  `Seed one account per role (admin, hr, manager, employee) for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := setupLogger(cfg.Observability.Logging)

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		gdb, err := openGorm(db)
		if err != nil {
			return err
		}

		if clearData {
			if err := gdb.WithContext(ctx).Exec("DELETE FROM user_roles").Error; err != nil {
				return fmt.Errorf("failed to clear user roles: %w", err)
			}
			if err := gdb.WithContext(ctx).Exec("DELETE FROM users").Error; err != nil {
				return fmt.Errorf("failed to clear users: %w", err)
			}
			lg.Info("cleared existing accounts")
		}

		repo := userPostgres.NewUserRepository(gdb)
		hash, err := auth.NewBcryptHasher(cfg.Security.BCryptCost).Hash(seedPassword)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		for _, su := range seedUsers {
			identity := user.NewIdentity(su.Username, su.Email, hash, su.Roles...)
			identity.FirstName = &su.First
			identity.LastName = &su.Last

			err := repo.Create(ctx, identity)
			switch {
			case errors.Is(err, user.ErrDuplicateUsername), errors.Is(err, user.ErrDuplicateEmail):
				fmt.Printf("%s already exists; skipping\n", su.Username)
			case err != nil:
				return fmt.Errorf("failed to insert %s: %w", su.Username, err)
			default:
				fmt.Printf("Seeded %s (%s) with roles %v\n", su.Username, su.Email, user.Authorities(identity.Roles))
			}
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing accounts before seeding")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "Password given to every seeded account")
}
