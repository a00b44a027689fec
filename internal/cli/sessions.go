package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/store"
)

var (
	sessionsArchive string
	sessionsOutcome string
	sessionsLimit   int
	sessionsFormat  string
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.PersistentFlags().StringVar(&sessionsArchive, "archive", "", "Path to SQLite session archive (required)")
	sessionsCmd.MarkPersistentFlagRequired("archive")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsListCmd.Flags().StringVar(&sessionsOutcome, "outcome", "", "Filter by outcome (submitted|forced_submission|time_expired|open)")
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 50, "Maximum number of attempts to show")
	sessionsListCmd.Flags().StringVarP(&sessionsFormat, "format", "f", "text", "Output format (text|json)")

	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect the archived attempt history",
	Long:  "Commands for querying the SQLite archive of finished attempts\nand their violation trails.",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived attempts, newest first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one attempt with its violation trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show violation counts by kind across all attempts",
	RunE:  runSessionsStats,
}

func openArchive() (*store.Store, error) {
	st, err := store.Open(sessionsArchive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return st, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListSessions(context.Background(), sessionsOutcome, sessionsLimit)
	if err != nil {
		return err
	}

	if sessionsFormat == "json" {
		out, err := json.MarshalIndent(recs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(recs) == 0 {
		fmt.Println("No attempts found.")
		return nil
	}
	for _, r := range recs {
		line := fmt.Sprintf("%s  %s  %s", r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, r.Outcome)
		if r.Cause != "" {
			line += fmt.Sprintf(" (%s)", r.Cause)
		}
		if r.Strikes > 0 {
			line += fmt.Sprintf("  strikes=%d", r.Strikes)
		}
		fmt.Println(line)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, err := st.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	trail, err := st.Trail(ctx, rec.ID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		store.SessionRecord
		Trail any `json:"trail"`
	}{rec, trail}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runSessionsStats(cmd *cobra.Command, args []string) error {
	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.CountByKind(context.Background())
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("No violations recorded.")
		return nil
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("%-20s %d\n", k, counts[k])
	}
	return nil
}
