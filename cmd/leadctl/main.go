package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"leadboard/internal/config"
	"leadboard/internal/leads"
	"leadboard/internal/logger"
	"leadboard/internal/mirror"
	"leadboard/internal/sheets"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is the wiring shared by every subcommand.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	store mirror.Store
	sheet *sheets.Client
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.log.Sync()
}

func setup(ctx context.Context, needSheet bool) (*env, error) {
	cfg := config.LoadConfig()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	e.store, err = mirror.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	if needSheet {
		if cfg.SpreadsheetID == "" {
			e.close()
			return nil, fmt.Errorf("SPREADSHEET_ID is required")
		}
		e.sheet, err = sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile, log)
		if err != nil {
			e.close()
			return nil, err
		}
	}
	return e, nil
}

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Operate the lead board from the command line",
	Long: `leadctl runs the same operations as the HTTP API against the configured
spreadsheet and mirror store. Configuration is read from the environment and .env.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one spreadsheet-to-mirror reconciliation",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		res, err := leads.NewReconciler(e.sheet, e.store, e.cfg.SheetName, e.log).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "written: %d\ncreated: %d\n", res.Written, res.Created)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Set or clear a contact's stop flag",
	Long: `Writes the stop flag to the spreadsheet row of the contact and then to its
board entry.

Available subcommands:
  set   - mark the contact as stopped ("SIM")
  clear - remove the stop mark`,
}

var stopSetCmd = &cobra.Command{
	Use:   "set <phone>",
	Short: "Mark a contact as stopped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd, args[0], true)
	},
}

var stopClearCmd = &cobra.Command{
	Use:   "clear <phone>",
	Short: "Remove a contact's stop mark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd, args[0], false)
	},
}

func runStop(cmd *cobra.Command, key string, value bool) error {
	e, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := leads.NewFlagWriter(e.sheet, e.store, e.cfg.SheetName, e.log).SetStopFlag(cmd.Context(), key, value)
	if res.Cell != "" {
		printJSON(cmd, res)
	}
	return err
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print the merged board as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		board, err := leads.NewReconciler(nil, e.store, e.cfg.SheetName, e.log).MergedBoard(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(cmd, board)
		return nil
	},
}

func printJSON(cmd *cobra.Command, v interface{}) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func init() {
	stopCmd.AddCommand(stopSetCmd, stopClearCmd)
	rootCmd.AddCommand(syncCmd, stopCmd, boardCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
