package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"blood-report-agent/internal/agent"
	"blood-report-agent/internal/chat"
	"blood-report-agent/internal/document"
	"blood-report-agent/internal/export"
	"blood-report-agent/internal/insight"
	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/platform/telegram"
	"blood-report-agent/internal/plot"
	"blood-report-agent/internal/upload"
)

func main() {
	// 1. Infrastructure
	log, err := logger.New(os.Getenv("APP_MODE"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 2. Clients
	ctx := context.Background()
	var gemini *agent.GeminiClient
	gemini, err = agent.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
	if err != nil {
		log.Warn("Gemini client unavailable, chat and narrative insights will be degraded", "error", err)
		gemini = nil
	}

	var messenger export.MessengerClient
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		messenger = telegram.NewClient(token)
	}
	clinicianChatID, _ := strconv.ParseInt(os.Getenv("CLINICIAN_CHAT_ID"), 10, 64)
	if messenger != nil && clinicianChatID == 0 {
		log.Warn("TELEGRAM_BOT_TOKEN is set but CLINICIAN_CHAT_ID is not; summaries will not be delivered")
	}

	// 3. Services
	plotDir := os.Getenv("PLOT_DIR")
	if plotDir == "" {
		plotDir = "static/plots"
	}

	var storeOpts []chat.StoreOption
	if ttl, err := time.ParseDuration(os.Getenv("SESSION_TTL")); err == nil && ttl > 0 {
		storeOpts = append(storeOpts, chat.WithTTL(ttl))
	}
	store := chat.NewMemoryStore(storeOpts...)

	loader := document.NewLoader(log)
	plotter := plot.NewRenderer(plotDir, log)
	exporter := export.NewService(messenger, clinicianChatID, log)

	var insightModel insight.NarrativeModel
	var chatModel chat.Model
	if gemini != nil {
		insightModel = gemini
		chatModel = gemini
	}
	insights := insight.NewService(insightModel, log)
	uploadSvc := upload.NewService(loader, insights, plotter, exporter, log)
	responder := chat.NewResponder(chatModel, store, log)
	chatSvc := chat.NewService(responder)

	uploadHandler := upload.NewHandler(uploadSvc, log)
	chatHandler := chat.NewHandler(chatSvc, log)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		upload.RegisterRoutes(r, uploadHandler)
		chat.RegisterRoutes(r, chatHandler)
	})
	r.Handle("/plots/*", http.StripPrefix("/plots/", http.FileServer(http.Dir(plotDir))))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("server starting", "port", port, "plot_dir", plotDir)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}
