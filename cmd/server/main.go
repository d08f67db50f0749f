package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/config"
	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/handlers"
	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/notify"
	"github.com/huddle/backend/internal/objectstore"
	"github.com/huddle/backend/internal/services"
	"github.com/huddle/backend/internal/session"
	"github.com/huddle/backend/internal/storage"
)

type stores struct {
	accounts storage.AccountStore
	profiles storage.ProfileStore
	friends  storage.FriendStore
	events   storage.EventStore
	close    func(context.Context) error
}

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("cannot build logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("[Server] failed to open storage", zap.Error(err))
	}
	defer st.close(context.Background())

	rdb := openRedis(ctx, cfg, log)
	var (
		revoker session.Revoker = session.NewMemoryRevoker()
		cache   geocode.Cache   = geocode.NewMemoryCache()
	)
	if rdb != nil {
		defer rdb.Close()
		revoker = session.NewRedisRevoker(rdb)
		cache = geocode.NewRedisCache(rdb)
	}

	var notifier notify.Publisher = notify.Nop{}
	if cfg.NATSURL != "" {
		nats, err := notify.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Warn("[Server] NATS unavailable, notifications disabled", zap.Error(err))
		} else {
			defer nats.Close()
			notifier = nats
			log.Info("[Server] publishing notifications to NATS", zap.String("url", cfg.NATSURL))
		}
	}

	geoClient := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocodeTimeout)
	lookup := geocode.NewCachedLookup(geoClient, cache, cfg.GeocodeCacheTTL, log)
	debouncer := geocode.NewDebouncer(lookup, cfg.AddressDebounce)

	objects, moderator, uploadDir, err := openAvatarStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("[Server] failed to open avatar storage", zap.Error(err))
	}

	profiles := services.NewProfileService(st.profiles, log)
	friends := services.NewFriendService(st.friends, profiles, notifier, log)
	chat := services.NewChatService(st.events, profiles, cfg.ChatHistoryLimit, cfg.Location())
	events := services.NewEventService(st.events, profiles, friends, chat, lookup, notifier, services.EventServiceConfig{
		StrictAddressCheck: cfg.StrictAddressCheck,
		Location:           cfg.Location(),
	}, log)

	svc := handlers.Services{
		Accounts:  services.NewAccountService(st.accounts, profiles, revoker, cfg.JWTSecret, cfg.JWTExpiration, log),
		Profiles:  profiles,
		Friends:   friends,
		Events:    events,
		Chat:      chat,
		Addresses: services.NewAddressService(debouncer, log),
		Avatars:   services.NewAvatarService(objects, moderator, profiles, log),
		Maps:      services.NewMapService(st.events, lookup, cfg.Location(), log),
	}

	verifiers := []middleware.Verifier{middleware.NewJWTVerifier(cfg.JWTSecret, revoker)}
	if cfg.FirebaseProjectID != "" {
		authClient, err := middleware.NewFirebaseAuthClient(ctx, middleware.FirebaseAuthConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			log.Warn("[Server] failed to initialize Firebase Auth client", zap.Error(err))
		} else {
			verifiers = append(verifiers, middleware.NewFirebaseVerifier(authClient))
		}
	}

	srv := &http.Server{
		Addr: cfg.ServerAddress,
		Handler: handlers.NewRouter(svc, handlers.RouterConfig{
			Verifiers: verifiers,
			UploadDir: uploadDir,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("[Server] shutdown failed", zap.Error(err))
		}
	}()

	log.Info("[Server] Huddle API starting", zap.String("addr", cfg.ServerAddress), zap.String("store", cfg.StoreDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("[Server] failed to start", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == "mongo" {
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		friends, err := storage.NewMongoFriendStore(ctx, db)
		if err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		log.Info("[Server] using MongoDB storage", zap.String("db", cfg.MongoDB))
		return &stores{
			accounts: storage.NewMongoAccountStore(ctx, db),
			profiles: storage.NewMongoProfileStore(ctx, db),
			friends:  friends,
			events:   storage.NewMongoEventStore(ctx, db),
			close:    client.Disconnect,
		}, nil
	}

	accounts, err := storage.NewMemoryAccountStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	profiles, err := storage.NewMemoryProfileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	friends, err := storage.NewMemoryFriendStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	events, err := storage.NewMemoryEventStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	log.Info("[Server] using in-memory storage", zap.String("data_dir", cfg.DataDir))
	return &stores{
		accounts: accounts,
		profiles: profiles,
		friends:  friends,
		events:   events,
		close:    func(context.Context) error { return nil },
	}, nil
}

// openRedis returns nil when Redis is not configured or not reachable.
func openRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("[Server] Redis unavailable, using in-process caches", zap.Error(err))
		rdb.Close()
		return nil
	}
	log.Info("[Server] connected to Redis", zap.String("addr", cfg.RedisAddr))
	return rdb
}

// openAvatarStore also returns the directory to serve at /uploads/, empty for remote backends.
func openAvatarStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (objectstore.Store, objectstore.Moderator, string, error) {
	switch cfg.AvatarBackend {
	case "gcs":
		gcs, err := objectstore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, "", err
		}
		if !cfg.AvatarModeration {
			return gcs, nil, "", nil
		}
		moderator, err := objectstore.NewSafeSearchModerator(ctx, gcs, log)
		if err != nil {
			return nil, nil, "", err
		}
		return gcs, moderator, "", nil
	case "s3":
		if cfg.AvatarModeration {
			log.Warn("[Server] avatar moderation requires AVATAR_BACKEND=gcs, skipping")
		}
		s3, err := objectstore.NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			return nil, nil, "", err
		}
		return s3, nil, "", nil
	default:
		local, err := objectstore.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, "", err
		}
		return local, nil, cfg.UploadDir, nil
	}
}
