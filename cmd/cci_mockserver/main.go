// Command cci_mockserver serves an in-memory chat backend for local runs
// of cci_chat.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cci_chat/pkg/mockbackend"

	"github.com/spf13/cobra"
)

var (
	listenAddr string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "cci_mockserver",
	Short:        "Serve a fake chat backend that echoes every message",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "addr", "127.0.0.1:8787", "listen address")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mockbackend.New(nil).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock_backend_listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("mock_backend_shutdown")
	return srv.Shutdown(shutdownCtx)
}
