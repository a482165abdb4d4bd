package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "brainer",
		Short: "Brainer distributed Q&A coordination fabric",
		Long:  "Run an asker, brainer, or memory role via its subcommand, wired through RabbitMQ and MongoDB",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(askerCmd())
	rootCmd.AddCommand(brainerCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
