package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// newReplayCommand re-prints a previously written run log (grounded on the
// teacher's observe subcommands, which re-display stored execution
// history rather than live events). It defaults to logDir/latest.log.
func newReplayCommand() *cobra.Command {
	var logDir, file string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print a previously recorded run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = filepath.Join(logDir, "latest.log")
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("replay: open %s: %w", path, err)
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			out := cmd.OutOrStdout()
			for scanner.Scan() {
				line := scanner.Text()
				fmt.Fprintln(out, highlightLevel(line))
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&logDir, "log-dir", ".conductor-run/logs", "directory containing run logs")
	cmd.Flags().StringVar(&file, "file", "", "explicit log file path (overrides --log-dir)")

	return cmd
}

// highlightLevel prefixes ERROR/WARN lines so they stand out even without
// color support on the replay path.
func highlightLevel(line string) string {
	switch {
	case strings.Contains(line, "[ERROR]"):
		return "! " + line
	case strings.Contains(line, "[WARN]"):
		return "~ " + line
	default:
		return "  " + line
	}
}
