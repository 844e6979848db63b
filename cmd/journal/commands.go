package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/service"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openDB()
			if err != nil {
				return err
			}
			if err := db.Migrate(app.Config.Database.MigrationsDir); err != nil {
				return err
			}
			app.Logger.Info().Str("dir", app.Config.Database.MigrationsDir).Msg("Migrations applied")
			return nil
		},
	}
}

func newRoundsCmd(app *App) *cobra.Command {
	var recompute bool

	cmd := &cobra.Command{
		Use:   "rounds <account>",
		Short: "List the closed rounds of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			db, err := app.openDB()
			if err != nil {
				return err
			}
			j := app.newJournal(db)

			var rounds []models.Round
			if recompute {
				rounds, err = j.Recompute(cmd.Context(), account)
			} else {
				rounds, err = j.Rounds(cmd.Context(), account)
			}
			if err != nil {
				return err
			}

			stats, err := db.GetRoundStats(account)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"rounds": rounds, "stats": stats})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROUND\tSYMBOL\tDIR\tOPEN\tCLOSE\tFILLS\tENTRY\tEXIT\tNET PNL")
			for _, r := range rounds {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.RoundID, r.Symbol, r.Direction,
					r.OpenTime.Format(time.RFC3339), r.CloseTime.Format(time.RFC3339),
					r.FillCount, r.AvgEntryPrice.StringFixed(4), r.AvgExitPrice.StringFixed(4), r.NetPnL.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d rounds, %d wins, %d losses, win rate %s%%, net %s, fees %s\n",
				stats.TotalRounds, stats.WinningRounds, stats.LosingRounds,
				stats.WinRate.StringFixed(1), stats.TotalNetPnL.StringFixed(2), stats.TotalFees.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().BoolVar(&recompute, "recompute", false, "rebuild rounds from stored fills first")
	return cmd
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var opts service.AnalyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <account> [symbol roundID]",
		Short: "Compute price-action metrics for one round, or all rounds of an account",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("expected <account> or <account> <symbol> <roundID>, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openDB()
			if err != nil {
				return err
			}
			j := app.newJournal(db)

			if len(args) == 1 {
				results, err := j.AnalyzeAll(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				sortAnalyses(results)
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				return printAnalyses(cmd.OutOrStdout(), results)
			}

			round, m, err := j.AnalyzeRound(cmd.Context(), args[0], args[1], args[2], opts)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), service.RoundAnalysis{Round: *round, Metrics: m})
			}
			printMetrics(cmd.OutOrStdout(), round, m)
			return nil
		},
	}
	cmd.Flags().Float64Var(&opts.Risk, "risk", 0, "risk per round in quote currency (default from config)")
	cmd.Flags().StringVar(&opts.Timeframe, "timeframe", "", "candle timeframe, one of "+strings.Join(models.SupportedTimeframes(), ", "))
	return cmd
}

// sortAnalyses orders results like assembled rounds: latest close first.
func sortAnalyses(results []service.RoundAnalysis) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Round, results[j].Round
		if !a.CloseTime.Equal(b.CloseTime) {
			return a.CloseTime.After(b.CloseTime)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.RoundID < b.RoundID
	})
}

func printAnalyses(w io.Writer, results []service.RoundAnalysis) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tROUND\tCLOSE\tMFE R\tMAE R\tETD R\tEFFICIENCY\tPATTERN\tSTRUCTURE")
	for _, res := range results {
		r, m := res.Round, res.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			r.Symbol, r.RoundID, r.CloseTime.Format(time.RFC3339),
			m.MFER, m.MAER, m.ETDR, m.Efficiency, m.Pattern, m.Structure)
	}
	return tw.Flush()
}

func printMetrics(w io.Writer, r *models.Round, m *models.PriceActionMetrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Round\t%s %s %s\n", r.RoundID, r.Symbol, r.Direction)
	fmt.Fprintf(tw, "Net PnL\t%s\n", r.NetPnL.StringFixed(2))
	fmt.Fprintf(tw, "MFE / MAE (R)\t%.2f / %.2f\n", m.MFER, m.MAER)
	fmt.Fprintf(tw, "MFE / MAE (ATR)\t%.2f / %.2f\n", m.MFEATR, m.MAEATR)
	fmt.Fprintf(tw, "ETD (R)\t%.2f\n", m.ETDR)
	fmt.Fprintf(tw, "Efficiency\t%.2f\n", m.Efficiency)
	fmt.Fprintf(tw, "MAD (bars)\t%d\n", m.MAD)
	fmt.Fprintf(tw, "RVOL\t%.2f\n", m.RVOL)
	fmt.Fprintf(tw, "Pattern\t%s\n", m.Pattern)
	fmt.Fprintf(tw, "Structure\t%s\n", m.Structure)
	fmt.Fprintf(tw, "Trend\t%s\n", m.Trend)
	fmt.Fprintf(tw, "High / Low\t%.4f / %.4f\n", m.High, m.Low)
	fmt.Fprintf(tw, "ATR\t%.4f\n", m.ATR)
	for _, d := range m.Degradations {
		fmt.Fprintf(tw, "Defaulted\t%s: %s\n", d.Stage, d.Reason)
	}
	tw.Flush()
}

func newReviewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <account> <fillID>",
		Short: "Attach journal notes to a fill; only the given flags are changed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := reviewUpdate(cmd)
			if err != nil {
				return err
			}
			if update.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one review flag")
			}
			db, err := app.openDB()
			if err != nil {
				return err
			}
			if err := db.UpdateFillReview(args[0], args[1], update); err != nil {
				return err
			}
			// rounds snapshot the opening fill's review
			if _, err := app.newJournal(db).Recompute(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Logger.Info().Str("account", args[0]).Str("fill_id", args[1]).Msg("Review saved")
			return nil
		},
	}
	cmd.Flags().String("notes", "", "free-form notes")
	cmd.Flags().String("strategy", "", "strategy tag")
	cmd.Flags().String("ai-analysis", "", "analysis text")
	cmd.Flags().String("screenshot", "", "screenshot URL")
	cmd.Flags().Float64("mae", 0, "manually recorded MAE")
	cmd.Flags().Float64("mfe", 0, "manually recorded MFE")
	cmd.Flags().Float64("etd", 0, "manually recorded ETD")
	return cmd
}

// reviewUpdate collects the review flags that were set on the command line.
func reviewUpdate(cmd *cobra.Command) (models.ReviewUpdate, error) {
	var u models.ReviewUpdate
	flags := cmd.Flags()

	for name, dst := range map[string]**string{
		"notes":       &u.Notes,
		"strategy":    &u.Strategy,
		"ai-analysis": &u.AIAnalysis,
		"screenshot":  &u.Screenshot,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return u, err
		}
		*dst = &v
	}
	for name, dst := range map[string]**float64{
		"mae": &u.MAE,
		"mfe": &u.MFE,
		"etd": &u.ETD,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetFloat64(name)
		if err != nil {
			return u, err
		}
		*dst = &v
	}
	return u, nil
}

func newCandlesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candles",
		Short: "Manage stored OHLCV candles",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert candles from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var candles []models.Candle
			if err := json.Unmarshal(data, &candles); err != nil {
				return fmt.Errorf("failed to parse candles: %w", err)
			}
			for i := range candles {
				if _, err := models.ParseTimeframe(candles[i].Timeframe); err != nil {
					return fmt.Errorf("candle %d: %w", i, err)
				}
			}
			db, err := app.openDB()
			if err != nil {
				return err
			}
			if err := db.CreateCandleBatch(candles); err != nil {
				return err
			}
			app.Logger.Info().Int("count", len(candles)).Msg("Candles imported")
			return nil
		},
	}

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete candles older than a retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openDB()
			if err != nil {
				return err
			}
			deleted, err := db.DeleteCandlesOlderThan(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			app.Logger.Info().Int64("deleted", deleted).Dur("older_than", olderThan).Msg("Candles pruned")
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "retention window")

	latestCmd := &cobra.Command{
		Use:   "latest <symbol> <timeframe>",
		Short: "Show the most recent stored candle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openDB()
			if err != nil {
				return err
			}
			c, err := db.GetLatestCandle(args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), c)
		},
	}

	cmd.AddCommand(importCmd, pruneCmd, latestCmd)
	return cmd
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
