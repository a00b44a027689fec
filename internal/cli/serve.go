package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ryan-RCNR/proveit-proctor/internal/server"
	"github.com/Ryan-RCNR/proveit-proctor/internal/systemd"
)

var (
	serveAddr     string
	servePolicy   string
	serveAuditLog string
	serveArchive  string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8420", "HTTP listen address")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "audit.jsonl", "Path to audit log JSONL file")
	serveCmd.Flags().StringVar(&serveArchive, "archive", "", "Path to SQLite session archive")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proctoring gateway",
	Long:  "Runs the enforcement core as an HTTP gateway.\nQuiz hosts create sessions, report focus and fullscreen events,\nand stream countdown state over WebSocket.\nSupports hot-reload of the policy file.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if msg := systemd.CheckUnitFileIntegrity(); msg != "" {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", msg)
	}

	cfg := server.Config{
		Addr:         serveAddr,
		PolicyPath:   servePolicy,
		AuditLogPath: serveAuditLog,
		ArchivePath:  serveArchive,
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	// Start hot-reload watcher for the policy file
	reloader, err := server.NewReloader(srv, []string{servePolicy})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if reloader != nil {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down proctoring gateway...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "proveit-proctor gateway listening on %s\n", serveAddr)
	if servePolicy != "" {
		fmt.Fprintf(os.Stderr, "Policy: %s (hot-reload enabled)\n", servePolicy)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
