package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/config"
	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/objectstore"
	"github.com/huddle/backend/internal/services"
	"github.com/huddle/backend/internal/storage"
)

// Eventarc delivers CloudEvents; for GCS finalized events the body contains object info.
type gcsFinalizeEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// cloudEventEnvelope is the structured content mode where the GCS payload sits under "data".
type cloudEventEnvelope struct {
	Data gcsFinalizeEvent `json:"data"`
}

func parseFinalizeEvent(raw []byte) (gcsFinalizeEvent, error) {
	var ev gcsFinalizeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, err
	}
	if ev.Bucket != "" && ev.Name != "" {
		return ev, nil
	}
	var envelope cloudEventEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data.Name != "" {
		return envelope.Data, nil
	}
	return ev, nil
}

type worker struct {
	bucket  string
	avatars *services.AvatarService
	log     *zap.Logger
}

func (wk *worker) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ev, err := parseFinalizeEvent(raw)
	if err != nil {
		wk.log.Warn("[Worker] failed to decode event body", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Anything else is acknowledged so Eventarc does not redeliver it.
	if ev.Bucket != wk.bucket || !strings.HasPrefix(ev.Name, "avatars/") {
		wk.log.Debug("[Worker] skipping object", zap.String("bucket", ev.Bucket), zap.String("name", ev.Name))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	removed, err := wk.avatars.Recheck(ctx, ev.Name)
	if err != nil {
		wk.log.Error("[Worker] recheck failed", zap.String("name", ev.Name), zap.Error(err))
		// 500 makes Eventarc retry.
		http.Error(w, "moderation failed", http.StatusInternalServerError)
		return
	}
	wk.log.Info("[Worker] avatar checked", zap.String("name", ev.Name), zap.Bool("removed", removed))
	w.WriteHeader(http.StatusOK)
}

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("cannot build logger: " + err.Error())
	}
	defer log.Sync()

	if cfg.AvatarBackend != "gcs" || cfg.StoreDriver != "mongo" {
		log.Fatal("[Worker] requires AVATAR_BACKEND=gcs and STORE_DRIVER=mongo")
	}

	ctx := context.Background()
	client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("[Worker] mongo connect failed", zap.Error(err))
	}
	defer client.Disconnect(ctx)
	profiles := services.NewProfileService(storage.NewMongoProfileStore(ctx, client.Database(cfg.MongoDB)), log)

	gcs, err := objectstore.NewGCSStore(ctx, cfg.GCSBucket)
	if err != nil {
		log.Fatal("[Worker] gcs client failed", zap.Error(err))
	}
	defer gcs.Close()
	moderator, err := objectstore.NewSafeSearchModerator(ctx, gcs, log)
	if err != nil {
		log.Fatal("[Worker] vision client failed", zap.Error(err))
	}

	wk := &worker{
		bucket:  cfg.GCSBucket,
		avatars: services.NewAvatarService(gcs, moderator, profiles, log),
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/events", wk.handleFinalize)

	log.Info("[Worker] moderation worker listening", zap.String("addr", cfg.ServerAddress))
	if err := http.ListenAndServe(cfg.ServerAddress, mux); err != nil {
		log.Fatal("[Worker] server failed", zap.Error(err))
	}
}
