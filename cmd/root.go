package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "speaker-labeler",
	Short: "Attribute meeting recordings to named speakers",
	Long: `Speaker Labeler processes meeting recordings by combining audio
diarization, face tracking and transcript analysis into a single timeline
of who spoke when, with real names extracted from introductions.`,
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
