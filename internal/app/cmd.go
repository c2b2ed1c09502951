package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTPサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はclient_storageテーブルのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// options はサブコマンド間で共有するフラグの値。
type options struct {
	configPath string
	out        io.Writer
}

// NewRootCmd はtraincheckerのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
func NewRootCmd(w io.Writer) *cobra.Command {
	opts := &options{out: w}

	root := &cobra.Command{
		Use:           "trainchecker",
		Short:         "Train departure lookup web app",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to TOML configuration file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newHealthcheckCmd(),
	)

	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply PostgreSQL migrations for the client storage table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(opts.out, opts.configPath)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg)
		},
	}
}

// newHealthcheckCmd は軽量サブコマンドのため、設定の読み込みを行わない。
func newHealthcheckCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check GET /health on the local server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(cmd.Context(), healthURL(port))
		},
	}

	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "Local server port")

	return cmd
}

func serve(ctx context.Context, opts *options) error {
	cfg, err := Init(opts.out, opts.configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("port", cfg.ServerPort),
		slog.String("train_api_base_url", cfg.TrainAPIBaseURL),
		slog.String("storage", cfg.StorageDriver),
	)

	return runServe(ctx, cfg)
}

func healthURL(port string) string {
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(ctx context.Context, w io.Writer, args []string) error {
	root := NewRootCmd(w)
	root.SetArgs(args)
	root.SetOut(w)
	return root.ExecuteContext(ctx)
}
