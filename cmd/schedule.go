package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/classwatch/internal/config"
	"github.com/jsvoboda/classwatch/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect the class-hour schedule",
	Long: `Load the schedule file and show which class hour is active.

Examples:
  # What is active right now?
  classwatch schedule

  # What would be active at 10:15?
  classwatch schedule --at 10:15`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().String("at", "", "Clock time to resolve (HH:MM), defaults to now")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	resolver, err := schedule.Load(cfg.Schedule.Path)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}

	now := time.Now()
	if at := mustGetString(cmd, "at"); at != "" {
		clock, err := time.Parse("15:04", at)
		if err != nil {
			return fmt.Errorf("invalid --at value %q, expected HH:MM", at)
		}
		now = time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, now.Location())
	}

	res := resolver.Resolve(now)
	switch {
	case !res.Active():
		fmt.Printf("%s: no class hour active\n", now.Format("15:04"))
	case res.IsBreak:
		fmt.Printf("%s: break (%s), monitoring suspended\n", now.Format("15:04"), res.ClassHour)
	default:
		fmt.Printf("%s: class hour %s, monitoring active\n", now.Format("15:04"), res.ClassHour)
	}
	return nil
}
