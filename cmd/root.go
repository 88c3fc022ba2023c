package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-registry",
	Short: "A face registration and recognition web service",
	Long: `Face Registry is a web service that registers faces under a name and
recognizes previously registered faces in uploaded images. Face detection
and embedding extraction are delegated to an external face analysis service;
embeddings are stored in PostgreSQL with pgvector.`,
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
