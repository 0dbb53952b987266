package backend

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/claim"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/entrystore"
	"fintrack/internal/eventbus"
	"fintrack/internal/log"
	"fintrack/internal/repository"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

const (
	claimCapacity   = 4096
	amqpDialTimeout = 30 * time.Second
)

// New wires storage, repositories, the entry store, claims, the optional
// broker and the services behind a Tracker.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	opts = opts.withDefaults()
	logger := opts.Logger.WithComponent(log.ComponentBackend)

	b := &Backend{
		Config:  cfg,
		Clock:   opts.Clock,
		Bus:     eventbus.New(),
		Caches:  cache.NewManager(opts.Logger),
		Metrics: opts.Metrics,
	}

	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	store := opts.Store
	if store == nil {
		var err error
		if store, err = b.openStore(ctx, cfg); err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
		}
		b.onClose(store.Close)
	}
	b.Store = store

	entryRepo := repository.New(store, repository.KeyEntries,
		repository.WithDefault(func() []core.Transaction { return []core.Transaction{} }),
		repository.WithBus[[]core.Transaction](b.Bus, eventbus.TopicEntriesChanged))
	templateRepo := repository.New(store, repository.KeyTemplates,
		repository.WithDefault(func() []core.RecurringTemplate { return []core.RecurringTemplate{} }),
		repository.WithBus[[]core.RecurringTemplate](b.Bus, eventbus.TopicTemplatesChanged))
	profileRepo := repository.New(store, repository.KeyProfile,
		repository.WithDefault(core.DefaultProfile),
		repository.WithBus[core.Profile](b.Bus, eventbus.TopicProfileChanged))

	b.unsubscribeOnClose(
		services.WatchEntries(entryRepo, opts.Metrics),
		services.WatchTemplates(templateRepo, opts.Metrics),
	)

	var pinger entrystore.Pinger
	switch cfg.EntryBackend {
	case config.EntryBackendRemote:
		remote := entrystore.NewRemote(cfg.RemoteAPIURL, cfg.RemoteTimeout, opts.Logger)
		b.Entries, pinger = remote, remote
		b.unsubscribeOnClose(services.RefreshOnReconnect(b.Bus, remote, opts.Logger))
	default:
		local := entrystore.NewLocal(entryRepo, opts.IDs, opts.Clock)
		b.Entries, pinger = local, local
	}

	if cfg.RedisURL != "" {
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect claim store: %w", err)
		}
		b.Claims = claim.NewRedis(client, cfg.ClaimTTL)
	} else {
		mem := claim.NewMemory(cfg.ClaimTTL, claimCapacity)
		b.Caches.Register(mem.Cache())
		b.Claims = mem
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, amqpDialTimeout)
		client, err := amqp.NewClient(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, opts.Logger)
		cancel()
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			b.AMQP = client
			publisher = client
			b.onClose(client.Close)
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	entries := services.NewEntryService(b.Entries, publisher, opts.Metrics, opts.Logger)
	templates := services.NewTemplateService(templateRepo, opts.IDs, opts.Clock, opts.Logger)
	processor := services.NewRecurringProcessor(templates, entries, b.Claims, opts.Clock, opts.Metrics, opts.Logger)
	profiles := services.NewProfileService(profileRepo, nil, opts.Logger)
	liveness := services.NewLivenessMonitor(pinger, b.Bus, opts.Clock, opts.Metrics, opts.Logger)

	b.Tracker = services.NewTracker(entries, templates, processor, profiles, liveness, opts.Clock, cfg.WeekStartDay())

	logger.Info("Backend initialized",
		log.FieldBackend, cfg.StorageBackend,
		"entry_backend", cfg.EntryBackend,
		"distributed_claims", b.Redis != nil,
		"amqp_enabled", b.AMQP != nil)

	ok = true
	return b, nil
}

// NewMirror builds the spreadsheet mirror: Google Sheets when a
// spreadsheet is configured, otherwise an in-memory table.
func NewMirror(ctx context.Context, cfg *config.Config, caches *cache.Manager, logger *log.Logger) (sheets.Mirror, error) {
	if err := cfg.ValidateMirrorSource(); err != nil {
		return nil, err
	}
	if !cfg.SheetsEnabled() {
		logger.WithComponent(log.ComponentBackend).Info("Spreadsheet mirror not configured, using in-memory mirror")
		return memory.New(), nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	if caches != nil {
		caches.Register(client.RowCache())
	}
	return client, nil
}
