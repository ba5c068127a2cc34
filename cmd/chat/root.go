package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alex12012019/DeepSeekAPI/internal/client"
	"github.com/Alex12012019/DeepSeekAPI/internal/config"
	"github.com/Alex12012019/DeepSeekAPI/internal/logging"
)

var (
	serverURL string
	autosave  time.Duration
	logLevel  string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Terminal client for the DeepSeek chat server",
	Long: `Chat with the assistant from the terminal.

Conversations live on the chat server; the client keeps the active chat in
memory, autosaves it and follows changes made by other clients.

Quick Start:
  chat                         # open an interactive session
  chat list                    # list saved conversations
  chat --server http://host:8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envErr := godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cmd.Flags().Changed("server") {
			loaded.Client.BaseURL = serverURL
		}
		if cmd.Flags().Changed("autosave") {
			loaded.Client.AutosaveInterval = autosave
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if err := logging.Init(loaded.Log.Level, true); err != nil {
			return err
		}
		if envErr != nil {
			log.Debug().Err(envErr).Msg("no .env file")
		}
		cfg = loaded
		return nil
	},
	RunE: runREPL,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Chat server base URL (default from CHAT_SERVER_URL)")
	rootCmd.PersistentFlags().DurationVar(&autosave, "autosave", 0, "Autosave interval, 0 disables (default from AUTOSAVE_INTERVAL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.AddCommand(listCmd)
}

func newClient() *client.Client {
	return client.New(cfg.Client.BaseURL, client.WithTimeout(cfg.Client.RequestTimeout))
}
