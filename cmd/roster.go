package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsvoboda/classwatch/internal/config"
	"github.com/jsvoboda/classwatch/internal/logging"
	"github.com/jsvoboda/classwatch/internal/roster"
	storepg "github.com/jsvoboda/classwatch/internal/store/postgres"
	"github.com/jsvoboda/classwatch/internal/store/sis"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Import the student roster from the school information system",
	Long: `Import enrolled students from the school information system.

Students are matched by their external ID, so re-running the import
updates names without touching stored embeddings. Requires
SIS_DATABASE_URL to be set (MariaDB DSN).

Examples:
  # Import the whole school
  classwatch roster

  # Import a single class
  classwatch roster --class 9B`,
	RunE: runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)

	rosterCmd.Flags().String("class", "", "Limit the import to one class")
}

func runRoster(cmd *cobra.Command, args []string) error {
	className := mustGetString(cmd, "class")

	log := logging.New()
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.SIS.DatabaseURL == "" {
		return errors.New("SIS_DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	reader, err := sis.Open(cfg.SIS.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to SIS: %w", err)
	}
	defer reader.Close()

	pool, err := storepg.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	enrolled, err := reader.ListEnrolled(ctx, className)
	if err != nil {
		return fmt.Errorf("listing enrolled students: %w", err)
	}
	if len(enrolled) == 0 {
		return errors.New("the SIS returned no enrolled students")
	}

	students := storepg.NewStudentRepository(pool)
	byName := make(map[string][]string)
	for _, s := range enrolled {
		identity := roster.Identity{
			ExternalID: s.ExternalID,
			Name:       strings.Join(strings.Fields(s.Name), " "),
		}
		if err := students.UpsertStudent(ctx, &identity); err != nil {
			return fmt.Errorf("importing student %s: %w", s.ExternalID, err)
		}
		norm := roster.NormalizeName(s.Name)
		byName[norm] = append(byName[norm], s.ExternalID)
	}

	// Same name twice usually means the SIS export duplicated a
	// student under two numbers; alerts would name the wrong one.
	for name, ids := range byName {
		if len(ids) > 1 {
			log.WithFields(logrus.Fields{
				"name":     name,
				"students": strings.Join(ids, ", "),
			}).Warn("multiple students share a name, check the SIS export")
		}
	}

	fmt.Printf("Imported %d students\n", len(enrolled))
	return nil
}
