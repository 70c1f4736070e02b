package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"unatienda/internal/app/runtime"
	"unatienda/internal/infrastructure/config"
)

var (
	logLevel string

	serveAddr    string
	serveDB      string
	serveNoAudio bool

	rootCmd = &cobra.Command{
		Use:           "unatienda",
		Short:         "Anuncios por voz e importación masiva para la tienda escolar",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log-level") {
				return nil
			}
			lvl, err := log.ParseLevel(strings.ToLower(logLevel))
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API, el WebSocket de anuncios y el runner de voz",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr = serveAddr
	}
	if cmd.Flags().Changed("db") {
		cfg.DatabasePath = serveDB
	}
	if serveNoAudio {
		cfg.AudioEnabled = false
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.Start(ctx, runtime.Options{Config: cfg})
	if err != nil {
		return err
	}

	waitErr := rt.Wait()
	if err := rt.Stop(); err != nil {
		log.Warn("serve: cierre", "err", err)
	}
	return waitErr
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "dirección HTTP (HTTP_ADDR)")
	serveCmd.Flags().StringVar(&serveDB, "db", "data/unatienda.db", "archivo sqlite (DATABASE_PATH)")
	serveCmd.Flags().BoolVar(&serveNoAudio, "no-audio", false, "no reproducir audio en el host")

	rootCmd.AddCommand(serveCmd, importCmd, templateCmd)
}
