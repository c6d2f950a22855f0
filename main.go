package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/chat"
	"media-studio-server/modules/common/config"
	"media-studio-server/modules/common/kv"
	"media-studio-server/modules/common/logger"
	"media-studio-server/modules/download"
	"media-studio-server/modules/hub"
	"media-studio-server/modules/library"
	"media-studio-server/modules/parser"
	"media-studio-server/modules/render"
	"media-studio-server/modules/studio"
)

var startTime = time.Now()

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"service": "media-studio-server",
		"uptime":  time.Since(startTime).String(),
	})
}

// enableCORS - allow browser clients from any origin
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	zlog, err := logger.NewSugared()
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	store, err := kv.Open(cfg)
	if err != nil {
		zlog.Fatalf("❌ Failed to open store backend %s: %v", cfg.StoreBackend, err)
	}

	lib := library.NewStore(store, zlog)
	lib.Load(ctx)

	renderService, err := render.NewService(cfg, zlog)
	if err != nil {
		zlog.Fatalf("❌ Failed to init render service: %v", err)
	}

	eventHub := hub.New(zlog)

	downloads := download.NewQueue(cfg.DownloadDir, cfg.DownloadDelay, zlog, func(task download.Task, path string, err error) {
		if err != nil {
			eventHub.Publish(task.SessionID, hub.EventDownloadFailed, map[string]string{
				"filename": task.Filename,
				"error":    err.Error(),
			})
			return
		}
		eventHub.Publish(task.SessionID, hub.EventDownloadCompleted, map[string]string{
			"filename": task.Filename,
			"path":     path,
		})
	})
	downloads.Start(ctx)

	renderClient := assetreq.NewClient(cfg.RenderBaseURL)
	bridge := chat.NewBridge(cfg.ParserBaseURL)
	manager := studio.NewManager(lib, renderClient, bridge, zlog)

	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", eventHub.HandleWS)

	render.NewHandler(renderService, cfg, zlog).RegisterRoutes(r)
	parser.NewHandler(zlog).RegisterRoutes(r)
	studio.NewHandler(manager, eventHub, downloads, zlog).RegisterRoutes(r)

	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticRoot))))

	zlog.Infof("🚀 Media Studio server starting on port %s", cfg.Port)
	zlog.Infof("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
	zlog.Infof("❤️  Health check: http://localhost:%s/health", cfg.Port)
	zlog.Infof("💾 Store backend: %s", cfg.StoreBackend)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		zlog.Fatalf("Server failed to start: %v", err)
	}
}
