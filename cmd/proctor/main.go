package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coral-ai/proctor/internal/archive"
	"github.com/coral-ai/proctor/internal/examdb"
	appI18n "github.com/coral-ai/proctor/internal/i18n"
	"github.com/coral-ai/proctor/internal/room"
	"github.com/coral-ai/proctor/internal/session"
	"github.com/coral-ai/proctor/internal/speech"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proctor",
		Short: "Voice exam proctor agent",
	}

	serve := serveCmd()
	root.AddCommand(serve, tokenCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `proctor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the exam room server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	f.String("mongo-db", "coral-ai", "MongoDB database name")
	f.String("archive-db", "proctor.db", "Local transcript archive path (SQLite)")
	f.String("token-secret", "", "HMAC secret for room tokens (or set PROCTOR_TOKEN_SECRET)")
	f.StringP("lang", "l", "en", "Spoken language (en, ru)")
	f.String("tts-url", "", "OpenAI-compatible TTS base URL (empty = default endpoint)")
	f.String("tts-key", "", "API key for TTS (empty disables audio synthesis)")
	f.String("tts-voice", "alloy", "TTS voice name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a room access token",
		RunE:  runToken,
	}
	f := cmd.Flags()
	f.String("room", "", "Room name (required)")
	f.String("identity", "", "Participant identity (default: generated)")
	f.String("token-secret", "", "HMAC secret for room tokens (or set PROCTOR_TOKEN_SECRET)")
	f.Duration("ttl", time.Hour, "Token lifetime")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("room")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived transcripts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("archive-db", "proctor.db", "Local transcript archive path (SQLite)")
	f.String("exam-id", "", "Filter by exam identifier (empty = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PROCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("proctor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/proctor")
	v.AddConfigPath("/etc/proctor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	setupLogging(cmd)
	v := viperForCmd(cmd)

	secret := v.GetString("token-secret")
	if secret == "" {
		return fmt.Errorf("token secret is required: set --token-secret flag or PROCTOR_TOKEN_SECRET env var")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// The submission store being down is degraded, not fatal: sessions
	// fall back to frontend-supplied exam data and the local archive.
	var repo session.Repository
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := examdb.New(ctx, v.GetString("mongo-uri"), v.GetString("mongo-db"))
	cancel()
	if err != nil {
		slog.Error("submission store unreachable, continuing without it", "error", err)
		repo = examdb.Disconnected{}
	} else {
		defer db.Close(context.Background())
		repo = db
		slog.Info("connected to submission store", "db", v.GetString("mongo-db"))
	}

	arch, err := archive.New(v.GetString("archive-db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	if pending, err := arch.PendingCount(context.Background()); err == nil && pending > 0 {
		slog.Warn("archive holds transcripts that never reached the store", "pending", pending)
	}

	var tts *speech.Synthesizer
	if key := v.GetString("tts-key"); key != "" {
		tts = speech.New(v.GetString("tts-url"), key, v.GetString("tts-voice"))
		slog.Info("speech synthesis enabled", "voice", v.GetString("tts-voice"))
	}

	srv := room.NewServer(repo, arch, tts, room.Config{
		TokenSecret: []byte(secret),
		Delays:      session.DefaultDelays(),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	srv.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting room server",
		"addr", addr,
		"lang", lang,
		"mongo_db", v.GetString("mongo-db"),
		"archive_db", v.GetString("archive-db"),
		"tts", tts != nil,
	)
	return http.ListenAndServe(addr, r)
}

func runToken(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	setupLogging(cmd)
	v := viperForCmd(cmd)

	secret := v.GetString("token-secret")
	if secret == "" {
		return fmt.Errorf("token secret is required: set --token-secret flag or PROCTOR_TOKEN_SECRET env var")
	}

	identity := v.GetString("identity")
	if identity == "" {
		identity = "student-" + uuid.New().String()[:8]
	}

	token, err := room.NewToken([]byte(secret), v.GetString("room"), identity, v.GetDuration("ttl"))
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	arch, err := archive.New(v.GetString("archive-db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	records, err := arch.List(context.Background(), v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("list transcripts: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
