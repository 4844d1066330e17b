package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/database"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// app держит общие для всех подкоманд viper и логгер.
type app struct {
	v      *viper.Viper
	logger *log.Logger
}

// NewRootCommand собирает taskctl. Значения берутся из флагов, затем из
// переменных окружения, затем из --config, затем из .env.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: log.New(out, "[taskctl] ", log.LstdFlags),
	}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Maintenance commands for the task service",
		Long:          `taskctl runs schema migrations, bootstraps the first super admin and sweeps stale password reset tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfigFile(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML/TOML/JSON config file")
	flags.String("db-driver", "", "database driver: postgres or sqlite")
	flags.String("db-host", "", "postgres host")
	flags.String("db-port", "", "postgres port")
	flags.String("db-user", "", "postgres user")
	flags.String("db-password", "", "postgres password")
	flags.String("db-name", "", "postgres database name")
	flags.String("sqlite-path", "", "sqlite database file")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newMigrateCommand(a),
		newCreateSuperAdminCommand(a),
		newSweepTokensCommand(a),
	)
	return root
}

func (a *app) loadConfigFile(cmd *cobra.Command) error {
	path := a.v.GetString("config")
	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	a.logger.Printf("using config file %s", a.v.ConfigFileUsed())
	return nil
}

// config накладывает значения viper поверх окружения сервиса.
func (a *app) config() cfg.Config {
	conf := cfg.Read()
	a.v.SetDefault("db-driver", conf.DBDriver)
	a.v.SetDefault("db-host", conf.DBHost)
	a.v.SetDefault("db-port", conf.DBPort)
	a.v.SetDefault("db-user", conf.DBUser)
	a.v.SetDefault("db-password", conf.DBPassword)
	a.v.SetDefault("db-name", conf.DBName)
	a.v.SetDefault("sqlite-path", conf.SQLitePath)
	a.v.SetDefault("reset-token-ttl", conf.ResetTokenTTL)
	a.v.SetDefault("base-url", conf.BaseURL)

	conf.DBDriver = strings.ToLower(a.v.GetString("db-driver"))
	conf.DBHost = a.v.GetString("db-host")
	conf.DBPort = a.v.GetString("db-port")
	conf.DBUser = a.v.GetString("db-user")
	conf.DBPassword = a.v.GetString("db-password")
	conf.DBName = a.v.GetString("db-name")
	conf.SQLitePath = a.v.GetString("sqlite-path")
	conf.ResetTokenTTL = a.v.GetDuration("reset-token-ttl")
	conf.BaseURL = strings.TrimRight(a.v.GetString("base-url"), "/")
	return conf
}

// withDB открывает базу и закрывает её после выполнения fn.
func (a *app) withDB(fn func(conf cfg.Config, db *gorm.DB) error) error {
	conf := a.config()
	if err := conf.ValidateDatabase(); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql DB: %w", err)
	}
	defer sqlDB.Close()
	return fn(conf, db)
}
