package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/classwatch/internal/config"
	"github.com/jsvoboda/classwatch/internal/store"
	storepg "github.com/jsvoboda/classwatch/internal/store/postgres"
)

var excuseCmd = &cobra.Command{
	Use:   "excuse",
	Short: "Record an attendance status or an approved duty leave",
	Long: `Record why a student is allowed to be in class.

With --status present or duty-leave, an attendance record is written.
With --reason, an approved duty-leave row is written instead; duty
leaves carry the reason and are what the decision engine checks when
no attendance record exists.

Examples:
  # Mark a student present for class hour 3
  classwatch excuse --student s-2041 --hour 3 --status present

  # Approve a duty leave
  classwatch excuse --student s-2041 --hour 3 --reason "school choir"`,
	RunE: runExcuse,
}

func init() {
	rootCmd.AddCommand(excuseCmd)

	excuseCmd.Flags().String("student", "", "External ID of the student (required)")
	excuseCmd.Flags().String("hour", "", "Class hour label (required)")
	excuseCmd.Flags().String("date", "", "Date (YYYY-MM-DD), defaults to today")
	excuseCmd.Flags().String("status", "", "Attendance status: present, absent, or duty-leave")
	excuseCmd.Flags().String("reason", "", "Duty-leave reason; writes an approved duty leave")
}

func runExcuse(cmd *cobra.Command, args []string) error {
	student := mustGetString(cmd, "student")
	hour := mustGetString(cmd, "hour")
	date := mustGetString(cmd, "date")
	status := mustGetString(cmd, "status")
	reason := mustGetString(cmd, "reason")

	if student == "" || hour == "" {
		return errors.New("--student and --hour are required")
	}
	if (status == "") == (reason == "") {
		return errors.New("exactly one of --status or --reason is required")
	}
	if status != "" && status != store.StatusPresent && status != store.StatusAbsent && status != store.StatusDutyLeave {
		return fmt.Errorf("invalid status %q", status)
	}
	if date == "" {
		date = store.Date(time.Now())
	} else if _, err := time.Parse(store.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	pool, err := storepg.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	identity, err := storepg.NewStudentRepository(pool).GetByExternalID(ctx, student)
	if err != nil {
		return fmt.Errorf("looking up student: %w", err)
	}

	attendance := storepg.NewAttendanceRepository(pool)
	if reason != "" {
		err = attendance.RecordDutyLeave(ctx, &store.DutyLeave{
			StudentID: identity.ID,
			Date:      date,
			ClassHour: hour,
			Reason:    reason,
			Approved:  true,
		})
		if err != nil {
			return fmt.Errorf("recording duty leave: %w", err)
		}
		fmt.Printf("Approved duty leave for %s on %s, hour %s\n", identity.Name, date, hour)
		return nil
	}

	err = attendance.RecordAttendance(ctx, &store.AttendanceRecord{
		StudentID: identity.ID,
		Date:      date,
		ClassHour: hour,
		Status:    status,
	})
	if err != nil {
		return fmt.Errorf("recording attendance: %w", err)
	}
	fmt.Printf("Recorded %s for %s on %s, hour %s\n", status, identity.Name, date, hour)
	return nil
}
