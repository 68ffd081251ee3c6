package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "birdelevator",
	Short: "Drive the bird elevator to a height measured by a LIDAR-Lite sensor.",
	Long: `Drive the bird elevator to a height measured by a LIDAR-Lite sensor. ` +
		`Flag defaults can be set with BIRD_* environment variables, which are ` +
		`also read from a .env file in the working directory.`,
	SilenceUsage: true,
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Print(err)
		atexit.Exit(2)
	}
	rootCmd.AddCommand(newRunCmd(cfg), newMeasureCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
