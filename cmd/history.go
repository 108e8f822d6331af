package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/trackload/trackload/internal/config"
	"github.com/trackload/trackload/internal/history"
	"github.com/trackload/trackload/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		clearAll, _ := cmd.Flags().GetBool("clear")

		store, err := history.Open(config.GetHistoryPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if clearAll {
			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		}

		entries, err := store.List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No downloads recorded yet.")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries))
		return nil
	},
}

func renderHistory(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := e.Outcome
		if e.Error != "" {
			status += ": " + e.Error
		}
		rows = append(rows, []string{
			shortID(e.ID),
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			status,
			sizeColumn(e.Transferred, e.Total),
			e.Elapsed.Round(time.Millisecond).String(),
			e.DestPath,
		})
	}

	header := lipgloss.NewStyle().Bold(true)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STARTED", "OUTCOME", "SIZE", "TIME", "DESTINATION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

func sizeColumn(transferred, total int64) string {
	if total < 0 {
		return utils.FormatSize(transferred)
	}
	return utils.FormatSize(transferred) + " of " + utils.FormatSize(total)
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 = all)")
	historyCmd.Flags().Bool("clear", false, "delete all recorded downloads")
}
