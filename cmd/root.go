package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "classwatch",
	Short: "Classroom attendance monitoring through face recognition",
	Long: `Classwatch watches a classroom camera during class hours, recognizes
enrolled students by their face embeddings, and raises an alert when a
student is present in the room without an attendance record or an
approved leave.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
