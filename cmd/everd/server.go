package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ipfsnut/everd/internal/api"
	"github.com/ipfsnut/everd/internal/bot"
	"github.com/ipfsnut/everd/internal/config"
	"github.com/ipfsnut/everd/internal/evermark"
	"github.com/ipfsnut/everd/internal/metadata"
	"github.com/ipfsnut/everd/internal/mint"
	"github.com/ipfsnut/everd/internal/neynar"
	"github.com/ipfsnut/everd/internal/pinata"
	"github.com/ipfsnut/everd/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the everd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running everd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show everd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "everd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "everd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("everd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("everd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the preservation pipeline.
	neynarClient := neynar.New(cfg.Neynar.APIKey, cfg.Neynar.SignerUUID)
	castSource := neynar.CastSource{Client: neynarClient}
	extractor := metadata.NewExtractor(castSource, &http.Client{Timeout: 15 * time.Second})
	uploader := pinata.New(cfg.Pinata.JWT)
	if cfg.Pinata.JWT == "" {
		slog.Warn("pinata JWT not configured; IPFS uploads will fail and records will carry ipfs_failed status")
	}
	svc := evermark.NewService(store, uploader, extractor)

	// Bot dispatch behind the Neynar webhook.
	processor := bot.NewProcessor(svc)
	responder := bot.NewResponder(neynarClient)
	if cfg.Neynar.WebhookSecret == "" {
		slog.Warn("neynar webhook secret not configured; webhook signature verification is disabled")
	}
	webhook := api.NewWebhookHandler(cfg.Neynar.WebhookSecret, cfg.Bot.FID, cfg.Bot.Username, processor, responder, castSource)

	handler := api.NewHandler(api.Deps{
		Service: svc,
		Webhook: webhook,
		Token:   cfg.API.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start mint worker.
	if cfg.Mint.Enabled {
		minter := mint.NewRelayMinter(cfg.Mint.RelayURL)
		if cfg.Mint.RelayURL == "" {
			slog.Warn("mint relay not configured; mint jobs will retry until one is set")
		}
		worker := mint.NewWorker(store, minter, 500*time.Millisecond)
		go worker.Run(ctx)
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Service: svc})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "everd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("everd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop everd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to everd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	serverUp := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			serverUp = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Neynar", "%s", credentialLabel(cfg.Neynar.APIKey))
	printStatus("Pinata", "%s", credentialLabel(cfg.Pinata.JWT))
	if cfg.Mint.Enabled {
		if cfg.Mint.RelayURL != "" {
			printStatus("Mint relay", "%s", cfg.Mint.RelayURL)
		} else {
			printStatus("Mint relay", "not configured")
		}
	} else {
		printStatus("Mint relay", "disabled")
	}
	printStatus("Bot", "@%s (fid %d)", cfg.Bot.Username, cfg.Bot.FID)

	// Show archive size if the server is running.
	if serverUp {
		if c, err := newAPIClient(); err == nil {
			listResp, err := c.get(context.Background(), "/api/evermarks?limit=1")
			if err == nil {
				var out struct {
					Pagination struct {
						Total int `json:"total"`
					} `json:"pagination"`
				}
				if decodeJSON(listResp, &out) == nil {
					printStatus("Evermarks", "%d", out.Pagination.Total)
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func credentialLabel(secret string) string {
	if secret == "" {
		return "not configured"
	}
	return "configured"
}
