package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/trogers1052/trade-journal/internal/config"
	"github.com/trogers1052/trade-journal/internal/database"
	"github.com/trogers1052/trade-journal/internal/logging"
	"github.com/trogers1052/trade-journal/internal/priceaction"
	"github.com/trogers1052/trade-journal/internal/service"
)

// App holds the dependencies shared by every command.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *database.DB
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal: fills to rounds with price-action analysis",
		Long: `Trade journal ingests exchange fills, assembles them into flat-to-flat
position rounds and enriches each round with candle-based price-action metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			app.Config = cfg

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.Log.Level
			logCfg.JSON = cfg.Log.JSON
			logCfg.FilePath = cfg.Log.FilePath
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
			}
			app.Logger = logging.New(logCfg)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.DB != nil {
				return app.DB.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newMigrateCmd(app))
	rootCmd.AddCommand(newRoundsCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newReviewCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))

	return rootCmd
}

// openDB connects to Postgres once per process.
func (a *App) openDB() (*database.DB, error) {
	if a.DB != nil {
		return a.DB, nil
	}
	db, err := database.New(a.Config.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db
	a.Logger.Debug().Str("host", a.Config.Database.Host).Str("name", a.Config.Database.DBName).Msg("Database connected")
	return db, nil
}

// newJournal builds the journal service on top of the database.
func (a *App) newJournal(db *database.DB, options ...service.Option) *service.Journal {
	analyzer := priceaction.New(priceaction.DefaultConfig(), a.Logger)
	opts := service.Options{
		Timeframe:   a.Config.Analysis.Timeframe,
		DefaultRisk: a.Config.Analysis.DefaultRisk,
		Workers:     a.Config.Analysis.Workers,
	}
	return service.NewJournal(db, db, db, analyzer, opts, a.Logger, options...)
}
