package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jsvoboda/classwatch/internal/config"
	"github.com/jsvoboda/classwatch/internal/faceapi"
	"github.com/jsvoboda/classwatch/internal/logging"
	storepg "github.com/jsvoboda/classwatch/internal/store/postgres"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Compute reference embeddings from student portraits",
	Long: `Compute and store reference face embeddings.

With --dir, every image file in the directory is processed; the file
name without extension is the student's external ID (for example
portraits/s-2041.jpg enrolls student s-2041). With --student and
--photo a single student is enrolled.

Students must already exist in the roster (see 'classwatch roster').
Portraits with no detectable face, or with more than one face, are
skipped and reported.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Directory of portrait images named <external-id>.<ext>")
	enrollCmd.Flags().String("student", "", "External ID of a single student to enroll")
	enrollCmd.Flags().String("photo", "", "Portrait image for --student")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	student := mustGetString(cmd, "student")
	photo := mustGetString(cmd, "photo")

	if dir == "" && (student == "" || photo == "") {
		return errors.New("either --dir or both --student and --photo are required")
	}

	log := logging.New()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
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

	students := storepg.NewStudentRepository(pool)
	faces := faceapi.NewClient(cfg.FaceService)
	if err := faces.Warmup(ctx); err != nil {
		return fmt.Errorf("warming up face service: %w", err)
	}

	if dir == "" {
		if err := enrollOne(ctx, faces, students, student, photo); err != nil {
			return err
		}
		fmt.Printf("Enrolled %s from %s\n", student, photo)
		return nil
	}

	portraits, err := listPortraits(dir)
	if err != nil {
		return err
	}
	if len(portraits) == 0 {
		return fmt.Errorf("no image files in %s", dir)
	}

	bar := progressbar.NewOptions(len(portraits),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("portraits"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	enrolled, failed := 0, 0
	for _, path := range portraits {
		externalID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := enrollOne(ctx, faces, students, externalID, path); err != nil {
			failed++
			log.WithError(err).WithField("student", externalID).Warn("enrollment failed")
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Enrolled %d students, %d failed\n", enrolled, failed)
	if failed > 0 {
		return fmt.Errorf("%d portraits could not be enrolled", failed)
	}
	return nil
}

// enrollOne detects exactly one face in the portrait, embeds it, and
// stores the embedding under the student's external ID.
func enrollOne(ctx context.Context, faces *faceapi.Client, students *storepg.StudentRepository, externalID, path string) error {
	portrait, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading portrait: %w", err)
	}

	regions, err := faces.Detect(ctx, portrait)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	if len(regions) == 0 {
		return errors.New("no face found in portrait")
	}
	if len(regions) > 1 {
		return fmt.Errorf("%d faces found in portrait, expected one", len(regions))
	}

	embedding, err := faces.EmbedRegion(ctx, portrait, regions[0])
	if err != nil {
		return fmt.Errorf("computing embedding: %w", err)
	}

	if err := students.SetEmbedding(ctx, externalID, embedding); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	return nil
}

func listPortraits(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading portraits directory: %w", err)
	}

	var portraits []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			portraits = append(portraits, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(portraits)
	return portraits, nil
}
