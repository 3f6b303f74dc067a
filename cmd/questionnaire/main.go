package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/questionnaire/internal/filestore"
	"github.com/pavelanni/questionnaire/internal/handler"
	appI18n "github.com/pavelanni/questionnaire/internal/i18n"
	"github.com/pavelanni/questionnaire/internal/model"
	"github.com/pavelanni/questionnaire/internal/question"
	"github.com/pavelanni/questionnaire/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "questionnaire",
		Short: "Questionnaire server with star-rating questions and personal files",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `questionnaire --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP questionnaire server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "questionnaire.db", "SQLite database path")
	f.String("data-dir", "data", "Directory for stored personal files")
	f.StringSliceP("definitions", "q", nil, "Paths to questionnaire definition JSON files (repeatable)")
	f.StringP("lang", "l", "en", "UI language (en, zh-CN)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("admin-password", "", "Initial admin password (or set QUESTIONNAIRE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export questionnaire results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "questionnaire.db", "SQLite database path")
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

	v.SetEnvPrefix("QUESTIONNAIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("questionnaire")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/questionnaire")
	v.AddConfigPath("/etc/questionnaire")
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
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := filestore.NewOsFileStore(filepath.Join(v.GetString("data-dir"), "files"))
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// Load questionnaire definitions from all specified files.
	if err := loadDefinitions(db, v.GetStringSlice("definitions")); err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.ServerConfig{
		Addr:          v.GetString("addr"),
		DataDir:       v.GetString("data-dir"),
		Lang:          lang,
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h := handler.New(db, files, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	slog.Info("starting server",
		"addr", cfg.Addr,
		"data_dir", cfg.DataDir,
		"lang", lang,
	)
	return http.ListenAndServe(cfg.Addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAll()
	if err != nil {
		return fmt.Errorf("export questionnaires: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
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

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// definitionFile is the JSON shape of a questionnaire definition.
type definitionFile struct {
	Name      string `json:"name"`
	CourseID  int64  `json:"course_id"`
	Questions []struct {
		Kind     model.QuestionKind `json:"kind"`
		Name     string             `json:"name"`
		Content  string             `json:"content"`
		Required bool               `json:"required"`
		MaxStars int                `json:"max_stars"`
		// Choices holds one choice per line, as entered in the settings form.
		Choices string `json:"choices"`
	} `json:"questions"`
}

// loadDefinitions creates questionnaires from JSON files. A file already
// loaded (tracked by content hash) is skipped; a changed file is skipped
// with a warning so existing responses stay consistent.
func loadDefinitions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check load status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("definition file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("definition file changed since last load, skipping to avoid breaking existing responses",
				"path", path)
			continue
		}

		var def definitionFile
		if err := json.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if def.CourseID == 0 {
			def.CourseID = 1
		}

		qnrID, err := db.CreateQuestionnaire(model.Questionnaire{
			CourseID: def.CourseID,
			Name:     def.Name,
		})
		if err != nil {
			return fmt.Errorf("create questionnaire from %s: %w", path, err)
		}

		for i, qd := range def.Questions {
			q := model.Question{
				QuestionnaireID: qnrID,
				Kind:            qd.Kind,
				Name:            qd.Name,
				Content:         qd.Content,
				Required:        qd.Required,
				MaxStars:        qd.MaxStars,
				Position:        i,
			}
			if err := question.ValidateSettings(q); err != nil {
				return fmt.Errorf("question %d in %s: %w", i, path, err)
			}
			sq, _ := question.ForKind(q.Kind)
			if sq.HasChoices() {
				for _, content := range sq.PreprocessChoices(qd.Choices) {
					q.Choices = append(q.Choices, model.Choice{Content: content})
				}
			}
			if _, err := db.InsertQuestion(q); err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record load for %s: %w", path, err)
		}
		slog.Info("loaded questionnaire definition", "path", path, "questions", len(def.Questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or QUESTIONNAIRE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
