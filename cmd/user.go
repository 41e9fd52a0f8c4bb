package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/provisioning"
	userPostgres "github.com/frahmantamala/hrms-identity/internal/user/postgres"
)

var passwordStdin bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Account administration",
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password [username]",
	Short: "Set an account's password and mark its credentials current",
	Long:  `Set the password of an account, typically one provisioned from an employee record, so it can log in. The password is read from the first line of stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !passwordStdin {
			return errors.New("pass --password-stdin and pipe the new password in")
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		lg := setupLogger(cfg.Observability.Logging)

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		gdb, err := openGorm(db)
		if err != nil {
			return err
		}

		p := provisioning.NewProvisioner(userPostgres.NewUserRepository(gdb), auth.NewBcryptHasher(cfg.Security.BCryptCost), lg)
		if err := p.SetPassword(ctx, args[0], password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", args[0])
		return nil
	},
}

func init() {
	setPasswordCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	userCmd.AddCommand(setPasswordCmd)
	rootCmd.AddCommand(userCmd)
}
