// ABOUTME: Entry point for the minefleet server
// ABOUTME: Manages a fleet of game bots holding persistent server connections

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/wardenlabs/minefleet/internal/api"
	"github.com/wardenlabs/minefleet/internal/auth"
	"github.com/wardenlabs/minefleet/internal/config"
	"github.com/wardenlabs/minefleet/internal/fleet"
	"github.com/wardenlabs/minefleet/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _            __ _           _
 _ __ ___ (_)_ __   ___/ _| | ___  ___| |_
| '_ ' _ \| | '_ \ / _ \ |_| |/ _ \/ _ \ __|
| | | | | | | | | |  __/  _| |  __/  __/ |_
|_| |_| |_|_|_| |_|\___|_| |_|\___|\___|\__|
`

// getConfigPath returns the path to the config file.
// Priority: MINEFLEET_CONFIG env var > XDG_CONFIG_HOME/minefleet/minefleet.yaml > ~/.config/minefleet/minefleet.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MINEFLEET_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "minefleet.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "minefleet", "minefleet.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: minefleet <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the fleet server")
		fmt.Println("  health                      Check server health")
		fmt.Println("  token --chat-id ID [flags]  Create a user (if needed) and print an API token")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting minefleet",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"db", cfg.Database.Path,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	hub := api.NewHub(logger)
	notifier := fleet.MultiNotifier{fleet.NewSlogNotifier(logger), hub}

	versions := map[string][]string{
		store.EditionJava:    cfg.Versions.Java,
		store.EditionBedrock: cfg.Versions.Bedrock,
	}

	mgr := fleet.NewManager(st, notifier, fleet.Options{
		MaxBotsPerUser:       cfg.Fleet.MaxBotsPerUser,
		MaxReconnectAttempts: cfg.Fleet.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Fleet.ReconnectDelay,
		SweepInterval:        cfg.Fleet.SweepInterval,
		ConnectTimeout:       cfg.Fleet.ConnectTimeout,
		Versions:             versions,
	})

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	srv := api.New(cfg.Server.HTTPAddr, mgr, st, verifier, hub, versions)

	go mgr.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.Shutdown(shutdownCtx)
	return srv.Stop(shutdownCtx)
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	url := fmt.Sprintf("http://%s/health", addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runToken creates (or finds) a user by chat id and prints a signed API
// token for it: minefleet token --chat-id 12345 --username steve [--admin]
func runToken(ctx context.Context) error {
	var chatID, username string
	var admin bool
	expiry := 30 * 24 * time.Hour

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--chat-id":
			if i+1 >= len(args) {
				return fmt.Errorf("--chat-id requires a value")
			}
			chatID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--chat-id="):
			chatID = strings.TrimPrefix(arg, "--chat-id=")
		case arg == "--username":
			if i+1 >= len(args) {
				return fmt.Errorf("--username requires a value")
			}
			username = args[i+1]
			i++
		case strings.HasPrefix(arg, "--username="):
			username = strings.TrimPrefix(arg, "--username=")
		case arg == "--admin":
			admin = true
		case arg == "--expiry":
			if i+1 >= len(args) {
				return fmt.Errorf("--expiry requires a value")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --expiry: %w", err)
			}
			expiry = d
			i++
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if chatID == "" {
		return fmt.Errorf("--chat-id flag is required")
	}
	if username == "" {
		username = "user-" + chatID
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	user, err := st.GetUserByChatID(ctx, chatID)
	if err != nil {
		user = &store.User{
			ID:       uuid.NewString(),
			ChatID:   chatID,
			Username: username,
			IsAdmin:  admin,
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(user.ID, expiry)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("user:  ")
	fmt.Printf("%s (%s)\n", user.Username, user.ID)
	green.Printf("token: ")
	fmt.Println(token)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
