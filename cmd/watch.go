package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream broker events to the console",
	Long: `Connect to the gateway and stream order, fill and account events
to the console until interrupted.

While watching, fills are merged into the trade ledger and account
summaries into the equity ledger, so a long-running watch keeps the
persisted history current.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	sub := s.gw.Events().Subscribe(nil)
	defer sub.Cancel()

	fmt.Println("Watching broker events (Ctrl-C to stop)...")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			line, printable := describeEvent(ev)
			if printable {
				fmt.Println(line)
			}
		}
	}
}
