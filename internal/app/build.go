package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ent0n29/medtranslate/internal/audit"
	"github.com/ent0n29/medtranslate/internal/cipher"
	"github.com/ent0n29/medtranslate/internal/config"
	"github.com/ent0n29/medtranslate/internal/httpapi"
	"github.com/ent0n29/medtranslate/internal/observability"
	"github.com/ent0n29/medtranslate/internal/session"
	"github.com/ent0n29/medtranslate/internal/voice"
)

type ProviderInfo struct {
	Inference       string
	InferenceDetail string
	Speech          string
	SpeechDetail    string
	AuditSink       string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *voice.Orchestrator
	Cipher       *cipher.Service
	Metrics      *observability.Metrics
	Providers    ProviderInfo

	// Cleanup should be called on shutdown to flush and close the audit sink.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	inference, err := resolveInference(cfg)
	if err != nil {
		return nil, err
	}
	speech, err := resolveSpeech(cfg)
	if err != nil {
		return nil, err
	}

	cipherSvc, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("cipher init failed: %w", err)
	}

	sink, sinkMode, err := audit.NewSink(ctx, cfg.DatabaseURL, cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("audit sink init failed: %w", err)
	}
	auditor := audit.NewLogger(sink, metrics)
	auditor.SetFallback(slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(
		"component", "audit_fallback",
		"audit_sink", sinkMode,
	))

	sessions := session.NewManager(cfg.SessionInactivityTimeout, auditor)
	orchestrator := voice.NewOrchestrator(
		sessions,
		cipherSvc,
		auditor,
		inference.transcriber,
		inference.translator,
		speech.synthesizer,
		metrics,
		voice.OrchestratorConfig{CallTimeout: cfg.ExternalCallTimeout},
	)

	api := httpapi.New(cfg, orchestrator, metrics, httpapi.RuntimeInfo{
		InferenceProvider:      inference.resolvedProvider,
		SpeechProvider:         speech.resolvedProvider,
		AuditSink:              sinkMode,
		EncryptionKeyGenerated: cipherSvc.Generated(),
	})

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Cipher:       cipherSvc,
		Metrics:      metrics,
		Providers: ProviderInfo{
			Inference:       inference.resolvedProvider,
			InferenceDetail: inference.detail,
			Speech:          speech.resolvedProvider,
			SpeechDetail:    speech.detail,
			AuditSink:       sinkMode,
		},
		Cleanup: auditor.Close,
	}, nil
}
