package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"github.com/pavelanni/autograder/internal/gradebook"
	"github.com/pavelanni/autograder/internal/handler"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/importer"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autograder",
		Short: "Handwritten homework grader powered by vision LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, reportCmd(), importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `autograder --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "autograder.db", "SQLite database path")
	f.String("llm-url", llm.DefaultBaseURL, "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM endpoint (or set AUTOGRADER_LLM_KEY)")
	f.String("llm-model", llm.DefaultModel, "Vision-capable model name")
	f.Duration("llm-timeout", 60*time.Second, "Timeout for a single LLM request")
	f.Int("grade-attempts", 3, "Grading attempts when the model reply cannot be parsed")
	f.String("prompt-variant", string(prompts.Standard), "Grading prompt variant (strict, standard, lenient)")
	f.String("site-url", "", "Site URL sent as HTTP-Referer to the LLM provider")
	f.String("app-title", "Autograder", "Application title sent as X-Title to the LLM provider")
	f.StringP("lang", "l", "en", "UI language (en, ru), also used to sort student names")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /grader)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("teacher-username", "teacher", "Username of the initial teacher account")
	f.String("teacher-password", "", "Initial teacher password (or set AUTOGRADER_TEACHER_PASSWORD)")
	f.StringSlice("cors-origins", nil, "Origins allowed to call the JSON API (repeatable)")
	f.Duration("shutdown-timeout", 15*time.Second, "Time allowed for in-flight requests on shutdown")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the gradebook of an assignment as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.String("assignment-id", "", "Assignment ID (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Language used to sort student names")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("assignment-id")

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import assignments from JSON files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.StringSliceP("files", "f", nil, "Paths to assignment JSON files (repeatable)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("files")

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

	v.SetEnvPrefix("AUTOGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("autograder")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/autograder")
	v.AddConfigPath("/etc/autograder")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedTeacher(ctx, db, v.GetString("teacher-username"), v.GetString("teacher-password")); err != nil {
		return fmt.Errorf("seed teacher: %w", err)
	}

	promptSet, err := prompts.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.Standard)
	}
	llmClient, err := llm.New(llm.Config{
		BaseURL:       v.GetString("llm-url"),
		APIKey:        v.GetString("llm-key"),
		Model:         v.GetString("llm-model"),
		SiteURL:       v.GetString("site-url"),
		AppTitle:      v.GetString("app-title"),
		PromptVariant: prompts.Variant(variant),
		MaxAttempts:   v.GetInt("grade-attempts"),
		Timeout:       v.GetDuration("llm-timeout"),
	}, promptSet)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if err := llmClient.Ping(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	catalog, err := appI18n.Load()
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	lang := v.GetString("lang")
	if !catalog.Supported(lang) {
		slog.Warn("unsupported UI language, falling back to English", "lang", lang)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	appCfg := model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	}

	h, err := handler.New(db, llmClient, appCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(catalog.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	go cleanupSessions(ctx, db, sessionCleanupInterval)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Grading waits on the model, so responses may take a while.
		WriteTimeout: v.GetDuration("llm-timeout")*time.Duration(max(v.GetInt("grade-attempts"), 1)) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", srv.Addr,
			"model", v.GetString("llm-model"),
			"llm_url", v.GetString("llm-url"),
			"prompt_variant", variant,
			"lang", lang,
			"base_path", basePath,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// cleanupSessions removes expired teacher sessions until ctx is done.
func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions(ctx)
			if err != nil {
				slog.Error("failed to clean up sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tag, err := language.Parse(v.GetString("lang"))
	if err != nil {
		return fmt.Errorf("parse lang: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	id := v.GetString("assignment-id")
	a, err := db.GetAssignment(ctx, id)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return fmt.Errorf("assignment %s not found", id)
	}

	report, err := gradebook.NewBuilder(tag).Generate(ctx, db, a.Summary())
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
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
	_, _ = fmt.Fprintln(w)

	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	for _, path := range v.GetStringSlice("files") {
		res, err := importer.ImportFile(ctx, db, path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		switch res.Status {
		case importer.Imported:
			slog.Info("imported assignments", "path", path, "count", len(res.AssignmentIDs))
			for _, id := range res.AssignmentIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		case importer.Unchanged:
			slog.Info("assignments file unchanged, skipping", "path", path)
		case importer.Changed:
			slog.Warn("assignments file changed since last import, skipping to keep existing submissions intact",
				"path", path)
		}
	}
	return nil
}

func seedTeacher(ctx context.Context, db *store.Store, username, password string) error {
	count, err := db.TeacherCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("teacher password is required: set --teacher-password flag or AUTOGRADER_TEACHER_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash teacher password: %w", err)
	}

	_, err = db.CreateTeacher(ctx, model.Teacher{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}

	slog.Info("seeded teacher account", "username", username)
	return nil
}
