package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/database"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(conf cfg.Config, db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				a.logger.Printf("schema migrated (%s)", conf.DBDriver)
				return nil
			})
		},
	}
}

func newCreateSuperAdminCommand(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a SUPERADMIN account",
		Example: `  taskctl create-superadmin --name Root --email root@example.com --password s3cretpass
  TASKCTL_PASSWORD=s3cretpass taskctl create-superadmin --name Root --email root@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TASKCTL_PASSWORD")
			}
			return a.withDB(func(conf cfg.Config, db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				sender := mailer.NewSender(mailer.SMTPConfig{
					Host:     conf.SMTPHost,
					Port:     conf.SMTPPort,
					Username: conf.SMTPUsername,
					Password: conf.SMTPPassword,
					From:     conf.MailFrom,
				}, a.logger)
				svc := user.NewService(user.NewRepository(db), sender, conf.BaseURL+"/auth/login", a.logger)
				u, err := svc.CreateSuperAdmin(cmd.Context(), user.CreateInput{
					Name:     name,
					Email:    email,
					Password: password,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&password, "password", "", "initial password (or TASKCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSweepTokensCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Expire password reset tokens older than the reset TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(conf cfg.Config, db *gorm.DB) error {
				if conf.ResetTokenTTL <= 0 {
					return fmt.Errorf("reset-token-ttl must be positive")
				}
				svc := auth.NewService(user.NewRepository(db), auth.NewTokenRepository(db), nil, auth.Options{
					ResetTokenTTL: conf.ResetTokenTTL,
				}, a.logger)
				n, err := svc.ExpireStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d reset tokens\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Duration("reset-token-ttl", 10*time.Minute, "tokens older than this are expired")
	_ = a.v.BindPFlag("reset-token-ttl", cmd.Flags().Lookup("reset-token-ttl"))
	return cmd
}
