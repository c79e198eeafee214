package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/domain/services"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
	"github.com/ersonp/pseudo-core/internal/infrastructure/gender"
	"github.com/ersonp/pseudo-core/internal/infrastructure/library"
	llm "github.com/ersonp/pseudo-core/internal/infrastructure/llm/openai"
	"github.com/ersonp/pseudo-core/internal/infrastructure/logging"
	"github.com/ersonp/pseudo-core/internal/infrastructure/metrics"
	"github.com/ersonp/pseudo-core/internal/infrastructure/parsers"
	"github.com/ersonp/pseudo-core/internal/infrastructure/relationaldb/sqlite"
)

// workspace is the loaded configuration of the current directory.
type workspace struct {
	cwd     string
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Deps holds the handlers a command needs, bound to one open store.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Entity  *handlers.EntityHandler
	Erase   *handlers.EraseHandler
	Audit   *handlers.AuditHandler
	Metrics *metrics.Metrics

	ws    *workspace
	store *sqlite.Repository
	pass  string
}

func loadWorkspace() (*workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	slog.SetDefault(logger)

	return &workspace{cwd: cwd, cfg: cfg, logger: logger, metrics: metrics.New()}, nil
}

// withDeps loads config, unlocks the store and builds handlers, then calls
// fn. The store is closed and metrics are flushed afterwards.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}

	pass, err := passphrase(ws.cfg, false)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, ws, pass)
	if err != nil {
		return err
	}
	defer store.Close()

	d := &Deps{
		Config:  ws.cfg,
		Logger:  ws.logger,
		Entity:  handlers.NewEntityHandler(services.NewEntityService(store)),
		Erase:   handlers.NewEraseHandler(services.NewErasureService(store, ws.logger, ws.metrics)),
		Audit:   handlers.NewAuditHandler(services.NewAuditService(store, ws.logger)),
		Metrics: ws.metrics,
		ws:      ws,
		store:   store,
		pass:    pass,
	}

	err = fn(d)
	flushMetrics(ws)
	return err
}

func openStore(ctx context.Context, ws *workspace, pass string) (*sqlite.Repository, error) {
	store, err := sqlite.Open(ctx, config.SQLiteConfig{Path: ws.cfg.StorePath(ws.cwd)}, pass, sqlite.WithLogger(ws.logger))
	if errors.Is(err, entities.ErrAuthenticationFailure) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

// passphrase returns the configured passphrase or prompts for it on the
// terminal. confirm asks twice, for store creation.
func passphrase(cfg *config.Config, confirm bool) (string, error) {
	if cfg.Passphrase != "" {
		return cfg.Passphrase, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("passphrase required: set %s or run from a terminal", config.EnvPassphrase)
	}

	read := func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	p, err := read("Passphrase: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", errors.New("passphrase must not be empty")
	}
	if confirm {
		again, err := read("Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", errors.New("passphrases do not match")
		}
	}
	return p, nil
}

// buildRecognizer returns the configured span source.
func buildRecognizer(cfg *config.Config) (ports.Recognizer, error) {
	switch cfg.Processing.Recognizer {
	case "llm":
		c, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
		return c, nil
	default:
		return parsers.NewSidecarRecognizer(), nil
	}
}

// buildClassifier returns the configured gender classifier.
func buildClassifier(cfg *config.Config, lib ports.PseudonymLibrary) (ports.GenderClassifier, error) {
	switch cfg.Processing.GenderClassifier {
	case "llm":
		c, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
		return c, nil
	default:
		d, err := gender.NewDictionary(lib)
		if err != nil {
			return nil, fmt.Errorf("loading given-name dictionary: %w", err)
		}
		return d, nil
	}
}

// processStack is everything a ProcessHandler needs except the store.
type processStack struct {
	theme      entities.Theme
	library    *library.Library
	recognizer ports.Recognizer
	classifier ports.GenderClassifier
}

func newProcessStack(cfg *config.Config, themeOverride string) (*processStack, error) {
	themeName := cfg.Processing.Theme
	if themeOverride != "" {
		themeName = themeOverride
	}
	theme, err := entities.ParseTheme(themeName)
	if err != nil {
		return nil, err
	}

	lib, err := library.New()
	if err != nil {
		return nil, fmt.Errorf("loading pseudonym library: %w", err)
	}
	rec, err := buildRecognizer(cfg)
	if err != nil {
		return nil, err
	}
	cls, err := buildClassifier(cfg, lib)
	if err != nil {
		return nil, err
	}
	return &processStack{theme: theme, library: lib, recognizer: rec, classifier: cls}, nil
}

// handler binds the stack to one store session.
func (s *processStack) handler(store ports.Store, validator ports.Validator, ws *workspace) *handlers.ProcessHandler {
	engine := services.NewAssignmentEngine(store, s.library, s.classifier, services.AssignmentOptions{
		Theme:   s.theme,
		Logger:  ws.logger,
		Metrics: ws.metrics,
	})
	name, ver := s.recognizer.ModelInfo()
	processor := services.NewProcessor(store, engine, validator, services.ProcessorOptions{
		ModelName:    name,
		ModelVersion: ver,
		Logger:       ws.logger,
		Metrics:      ws.metrics,
	})
	return handlers.NewProcessHandler(processor, s.recognizer, store, ws.logger)
}

// sessionFactory opens a private store connection and cipher per worker.
func (s *processStack) sessionFactory(ws *workspace, pass string) handlers.SessionFactory {
	return func(ctx context.Context) (*handlers.Session, error) {
		store, err := openStore(ctx, ws, pass)
		if err != nil {
			return nil, err
		}
		return &handlers.Session{
			Handler: s.handler(store, nil, ws),
			Close:   store.Close,
		}, nil
	}
}

func flushMetrics(ws *workspace) {
	path := ws.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := ws.metrics.WriteTextfile(path); err != nil {
		ws.logger.Warn("could not write metrics textfile", "path", path, "error", err)
	}
}
