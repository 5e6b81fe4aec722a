package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cci_chat/pkg/api"
	"cci_chat/pkg/chat"
	"cci_chat/pkg/config"
	"cci_chat/pkg/embed"
	"cci_chat/pkg/logging"
	"cci_chat/pkg/plain"
	"cci_chat/pkg/session"
	"cci_chat/pkg/ui"
	"cci_chat/pkg/version"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	tabFlag    string
	plainMode  bool
	apiURL     string
)

var rootCmd = &cobra.Command{
	Use:   "cci_chat",
	Short: "Chat with the CCI France México assistant from the terminal",
	Long: `cci_chat opens a chat with the CCI France México virtual assistant.

The chat id is kept per terminal tab: restarting cci_chat in the same tab
resumes the conversation, a new tab starts a fresh one.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the chat stored for this tab",
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.cci_chat/config.json)")
	rootCmd.PersistentFlags().StringVar(&tabFlag, "tab", "", "tab identity override (default from the terminal)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL")
	rootCmd.Flags().BoolVar(&plainMode, "plain", false, "line mode without the full-screen interface")

	rootCmd.AddCommand(versionCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "cci_chat version %s\n", version.Summary())
	fmt.Fprintf(w, "  commit: %s\n", version.Commit)
	fmt.Fprintf(w, "  built: %s\n", version.Date)
	fmt.Fprintf(w, "  go: %s\n", version.GoVersion)
	fmt.Fprintf(w, "  platform: %s\n", version.Platform())
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("error loading config: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func openSession(cfg config.Config) (*session.Context, error) {
	store := session.NewFileStore(filepath.Join(cfg.StateDir, "sessions"))
	sess, err := session.Open(store, session.TabID(tabFlag))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return sess, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := logging.Init(cfg); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
	}
	slog.Info("cci_chat_start", "version", version.Version, "api_url", cfg.APIURL, "chat_id_mode", cfg.ChatIDMode)

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	svc := chat.NewService(api.NewClientFromConfig(cfg), sess)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if plainMode || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(ctx, cmd, cfg, svc)
	}
	return runTUI(ctx, cfg, svc)
}

func runPlain(ctx context.Context, cmd *cobra.Command, cfg config.Config, svc *chat.Service) error {
	r := plain.New(svc, plain.Options{
		AssistantName:  cfg.AssistantName,
		Welcome:        cfg.WelcomeMessage,
		RevealInterval: cfg.RevealInterval(),
		In:             cmd.InOrStdin(),
		Out:            cmd.OutOrStdout(),
	})
	err := r.Run(ctx)
	<-svc.Beacon()
	return err
}

func runTUI(ctx context.Context, cfg config.Config, svc *chat.Service) error {
	opts := ui.Options{
		AssistantName:  cfg.AssistantName,
		Welcome:        cfg.WelcomeMessage,
		RevealInterval: cfg.RevealInterval(),
	}

	if cfg.Embed.Enabled {
		bridge := embed.New(cfg.Embed.AllowedOrigins)
		addr, err := bridge.Start(cfg.Embed.Addr)
		if err != nil {
			return fmt.Errorf("failed to start embed bridge: %w", err)
		}
		defer bridge.Close()
		slog.Info("embed_bridge_listening", "addr", addr.String(), "allowed_origins", cfg.Embed.AllowedOrigins)
		opts.Bridge = bridge
	}

	final, err := tea.NewProgram(ui.NewModel(ctx, svc, opts), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Error("ui_exited_with_error", "error", err)
		return err
	}

	// An acknowledged close already reported the end of the session.
	if m, ok := final.(ui.Model); ok && m.Closed() {
		return nil
	}
	<-svc.Beacon()
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	id := sess.ChatID()
	if err := sess.Forget(); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	if id == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "No chat stored for tab %s\n", sess.Tab())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Forgot chat %s for tab %s\n", id, sess.Tab())
	return nil
}
