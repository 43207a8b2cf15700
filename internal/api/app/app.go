package app

import (
	"context"
	"fmt"
	"log"

	"epubinspect/internal/api/config"
	"epubinspect/internal/api/handler"
	"epubinspect/internal/api/server"
	"epubinspect/internal/audit"
	"epubinspect/internal/inspect"
	"epubinspect/internal/license"
	"epubinspect/internal/llm"
	"epubinspect/internal/storage"
	"epubinspect/internal/workpool"
)

type App struct {
	server  *server.Server
	closers []func() error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var closers []func() error

	// Dependencies
	source, err := storage.NewS3Source(storage.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	keys, keyCloser, err := newLicenseResolver(cfg)
	if err != nil {
		return nil, err
	}
	if keyCloser != nil {
		closers = append(closers, keyCloser)
	}

	recorder, auditCloser, err := newAuditRecorder(cfg)
	if err != nil {
		return nil, err
	}
	if auditCloser != nil {
		closers = append(closers, auditCloser)
	}

	suggester, err := llm.NewGeminiClient(ctx, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	decryptSlots := cfg.Gates.DecryptSlots
	if decryptSlots == 0 {
		decryptSlots = workpool.DefaultDecryptSlots()
	}
	downloadSlots := cfg.Gates.DownloadSlots
	if downloadSlots == 0 {
		downloadSlots = workpool.DefaultDownloadSlots
	}
	decryptGate := workpool.NewGate(decryptSlots)
	downloadGate := workpool.NewGate(downloadSlots)

	retriever := storage.NewRetriever(source, downloadGate)
	pipeline := inspect.NewPipeline(retriever, keys, recorder, decryptGate)
	svc := inspect.NewService(pipeline, suggester, recorder, decryptGate)

	startPointHandler := handler.NewStartPointHandler(svc)

	// Routing & Server
	mux := server.NewMux(startPointHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:  srv,
		closers: closers,
	}, nil
}

func newLicenseResolver(cfg *config.Config) (license.Resolver, func() error, error) {
	if cfg.DB.LicenseDSN == "" {
		log.Printf("license store: no DSN configured, using in-memory store")
		return license.NewMemoryStore(), nil, nil
	}
	store, err := license.NewPostgres(cfg.DB.LicenseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("init license store: %w", err)
	}
	return store, store.Close, nil
}

func newAuditRecorder(cfg *config.Config) (audit.Recorder, func() error, error) {
	if cfg.DB.AuditDSN == "" {
		log.Printf("audit log: no DSN configured, using in-memory recorder")
		return audit.NewMemoryRecorder(), nil, nil
	}
	rec, err := audit.NewPostgres(cfg.DB.AuditDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("init audit log: %w", err)
	}
	return rec, rec.Close, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	for _, close := range a.closers {
		if cerr := close(); cerr != nil {
			log.Printf("close dependency: %v", cerr)
		}
	}
	return err
}
