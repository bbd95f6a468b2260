package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BulletinDispatch/internal/config"
	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/infrastructure/artifacts"
	"BulletinDispatch/internal/infrastructure/mail"
	"BulletinDispatch/internal/infrastructure/storage"
	"BulletinDispatch/internal/infrastructure/telegram"
	"BulletinDispatch/internal/logging"
	"BulletinDispatch/internal/ports"
	"BulletinDispatch/internal/report"
	"BulletinDispatch/internal/usecase"
)

// Application wires configs to use cases for one batch invocation.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.Store
	generator  *usecase.Generator
	dispatcher *usecase.Dispatcher
}

// Option customizes adapters before the use cases are built.
type Option func(*options)

type options struct {
	mailer  ports.Mailer
	alerter ports.Alerter
	now     func() time.Time
}

// WithMailer replaces the SMTP transport.
func WithMailer(m ports.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithAlerter replaces the Telegram alerter.
func WithAlerter(a ports.Alerter) Option {
	return func(o *options) { o.alerter = a }
}

// WithClock fixes the time source used for generation and send timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New opens the store and builds the generator and dispatcher.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fs, err := artifacts.NewFilesystem(cfg.Artifacts.Dir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	if o.mailer == nil && cfg.Mail.Configured() {
		smtp, err := mail.NewSMTPMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			TLS:      cfg.Mail.TLS,
			Timeout:  cfg.Mail.Timeout,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		o.mailer = smtp
	}

	if o.alerter == nil && cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		o.alerter = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	locale := report.LookupLocale(cfg.Report.Locale)
	var fonts *report.FontSet
	if cfg.Report.FontRegular != "" {
		if fonts, err = report.LoadFonts(cfg.Report.FontRegular, cfg.Report.FontBold); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	renderer, err := report.NewPDFRenderer(locale, cfg.Report.Title, fonts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	generator := usecase.NewGenerator(usecase.GeneratorDeps{
		Repository: store,
		Clients:    store,
		Artifacts:  fs,
		Renderer:   renderer,
		Locker:     store.Locker,
		Alerter:    o.alerter,
		Logger:     baseLogger.With("component", "generator"),
		Locale:     locale,
		Workers:    cfg.Dispatch.Workers,
		Now:        o.now,
	})

	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		Repository:  store,
		Clients:     store,
		Artifacts:   fs,
		Mailer:      o.mailer,
		OutcomeLog:  store,
		Locker:      store.Locker,
		Alerter:     o.alerter,
		Logger:      baseLogger.With("component", "dispatcher"),
		Locale:      locale,
		Workers:     cfg.Dispatch.Workers,
		SendTimeout: cfg.Mail.Timeout,
		Now:         o.now,
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		generator:  generator,
		dispatcher: dispatcher,
	}, nil
}

// Migrate creates the schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.store.Migrate(ctx)
}

// Generate runs one report generation batch.
func (a *Application) Generate(ctx context.Context) (usecase.GenerateResult, error) {
	return a.generator.Generate(ctx)
}

// Dispatch runs the gate and, when confirmed, sends the generated reports.
func (a *Application) Dispatch(ctx context.Context, confirm bool) (usecase.DispatchResult, error) {
	return a.dispatcher.Dispatch(ctx, usecase.DispatchOptions{Confirm: confirm})
}

// Classify sets the importance of an ungenerated bulletin.
func (a *Application) Classify(ctx context.Context, id int64, importance domain.Importance) error {
	return a.store.Classify(ctx, id, importance)
}

// AddBulletin inserts a bulletin row and returns its id.
func (a *Application) AddBulletin(ctx context.Context, b domain.Bulletin) (int64, error) {
	return a.store.InsertBulletin(ctx, b)
}

// SetClient creates or replaces a client directory entry.
func (a *Application) SetClient(ctx context.Context, c domain.Client) error {
	return a.store.UpsertClient(ctx, c)
}

// Outcomes lists dispatch log entries, optionally for one client.
func (a *Application) Outcomes(ctx context.Context, clientKey string) ([]domain.OutcomeLogEntry, error) {
	return a.store.List(ctx, clientKey)
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}
