package main

import (
	"context"

	harpoonconfig "harpoon/internal/config"
	"harpoon/internal/dedupe"
	"harpoon/internal/events"
	"harpoon/internal/gate"
	"harpoon/internal/genai"
	"harpoon/internal/handlers"
	"harpoon/internal/hunter"
	"harpoon/internal/janitor"
	"harpoon/internal/notify"
	"harpoon/internal/replywatch"
	"harpoon/internal/search"
	"harpoon/internal/store"
	"harpoon/internal/strategy"
	"harpoon/pkg/config"
	"harpoon/pkg/database"
	"harpoon/pkg/email"
	"harpoon/pkg/llm"
	"harpoon/pkg/logging"
	"harpoon/pkg/monitoring"
	"harpoon/pkg/server"
	"harpoon/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("harpoon")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Harpoon (Lead Hunting Pipeline)")

	cfg := harpoonconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to ensure drafts schema")
	}
	draftStore := store.NewDraftStore(db)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("harpoon", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("harpoon", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":   cfg.DatabaseURL,
		"SEARCH_API_URL": cfg.SearchAPIURL,
	}))

	// Kafka decision audit trail is optional; warn and continue without it.
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		publisher, err = events.NewPublisher(events.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			ClusterID: cfg.KafkaClusterID,
			Topic:     cfg.DecisionTopic,
			Logger:    logger,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to create decision publisher - admission audit trail disabled")
			publisher = nil
		} else {
			defer func() { _ = publisher.Close() }()
			healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(publisher.Producer().GetClient()))
			logger.WithField("topic", cfg.DecisionTopic).Info("Decision publisher connected")
		}
	} else {
		logger.Info("KAFKA_BROKERS not set - admission audit trail disabled")
	}

	// LLM provider backs both intent classification and reply generation
	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}
	generator := genai.New(genai.Config{Provider: provider, Logger: logger})

	registry := strategy.DefaultRegistry()

	failPolicy := gate.PolicyAdmit
	if !cfg.ClassifierFailOpen {
		failPolicy = gate.PolicyReject
	}
	admissionGate := gate.New(gate.Config{
		Classifier:        generator,
		Logger:            logger,
		OnClassifierError: failPolicy,
		Threshold:         cfg.ScoreThreshold,
	})

	suppressor := dedupe.NewSuppressor(dedupe.Config{
		Store:               draftStore,
		Logger:              logger,
		SessionTTL:          cfg.SessionTTL,
		RecencyWindow:       cfg.RecencyWindow,
		SimilarityThreshold: cfg.SimilarityThreshold,
	})

	searchClient := search.NewClient(search.Config{
		BaseURL:   cfg.SearchAPIURL,
		APIKey:    cfg.SearchAPIKey,
		Platforms: cfg.SearchPlatforms,
		Timeout:   cfg.SearchTimeout,
		Logger:    logger,
	})

	smtpConfig := email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	notifier := notify.NewReviewNotifier(notify.ReviewNotifierConfig{
		Sender: email.NewSender(smtpConfig),
		SMTP:   smtpConfig,
		To:     cfg.ReviewEmail,
		Logger: logger,
	})
	if !smtpConfig.Configured() || cfg.ReviewEmail == "" {
		logger.Info("SMTP or REVIEW_EMAIL not set - review notifications disabled")
	}

	leadHunter := hunter.New(hunter.Config{
		Registry:         registry,
		Search:           searchClient,
		Suppressor:       suppressor,
		Gate:             admissionGate,
		Generator:        generator,
		Store:            draftStore,
		Publisher:        publisher,
		Notifier:         notifier,
		Logger:           logger,
		Interval:         cfg.HuntInterval,
		MaxPerDay:        cfg.MaxDraftsPerDay,
		KeywordDelay:     cfg.KeywordDelay,
		HighQualityScore: cfg.HighQualityScore,
		Attribution:      cfg.Attribution,
	})
	leadHunter.SetMetrics(hunter.NewMetrics(metricsCollector))

	// The watcher feeds harvested replies back into the hunter, so the
	// scheduler side is wired after both exist.
	watcher := replywatch.New(replywatch.Config{
		Fetcher:       searchClient,
		Sink:          leadHunter,
		Logger:        logger,
		SweepInterval: cfg.SweepInterval,
		TopK:          cfg.ReplyTopK,
		Retention:     cfg.ReplyRetention,
	})
	leadHunter.SetScheduler(watcher)

	draftJanitor := janitor.New(janitor.Config{
		Store:    draftStore,
		Logger:   logger,
		Interval: cfg.JanitorInterval,
		MaxAge:   cfg.DraftMaxAge,
	})

	go leadHunter.Start(ctx)
	go watcher.Start(ctx)
	go draftJanitor.Start(ctx)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "harpoon", healthChecker, metricsCollector)

	handlers.RegisterRoutes(router, &handlers.Handlers{
		Hunter:     leadHunter,
		Registry:   registry,
		Gate:       admissionGate,
		Suppressor: suppressor,
		Store:      draftStore,
		Watcher:    watcher,
		Logger:     logger,
	})

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("harpoon", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
