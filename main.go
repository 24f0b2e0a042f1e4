package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"restaurant-tab-service/internal/cache"
	"restaurant-tab-service/internal/config"
	"restaurant-tab-service/internal/db"
	"restaurant-tab-service/internal/floor"
	httpapi "restaurant-tab-service/internal/http"
	"restaurant-tab-service/internal/http/handlers"
	"restaurant-tab-service/internal/logger"
	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/payments"
	"restaurant-tab-service/internal/queue"
	"restaurant-tab-service/internal/receipt"
	"restaurant-tab-service/internal/storage"
	"restaurant-tab-service/internal/store/memory"
	"restaurant-tab-service/internal/store/postgres"
	"restaurant-tab-service/internal/ws"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// backend is what the order engine and floor service need from storage.
type backend interface {
	orders.Store
	orders.Catalog
	floor.Directory
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	var store backend
	switch cfg.StorageDriver {
	case "memory":
		mem := memory.New()
		if !cfg.IsProduction() {
			seedDemoCatalog(mem)
		}
		log.Warn("using in-memory store; data is lost on restart")
		store = mem
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool, log); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		store = postgres.New(pool)
	}

	var publishers orders.Publishers
	var snapshots orders.SnapshotCache
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, int(cfg.RedisDB))
		if err := client.Ping(ctx).Err(); err != nil {
			if cfg.IsProduction() {
				log.Fatal("redis connection failed", zap.Error(err))
			}
			log.Warn("redis connection failed; tracking cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			orderSnapshots := cache.NewOrderSnapshots(cache.NewRedisCache(client, cfg.ServiceName), cfg.TrackingCacheTTL, log)
			snapshots = orderSnapshots
			publishers = append(publishers, orderSnapshots)
			log.Info("tracking cache enabled", zap.Duration("ttl", cfg.TrackingCacheTTL))
		}
	}

	hub := ws.NewHub(log)
	publishers = append(publishers, hub)

	var objectStore *storage.ObjectStore
	storageCfg := storage.Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		AccessKeyID:     cfg.ObjectStoreAccessKeyID,
		SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
		Bucket:          cfg.ObjectStoreBucket,
		PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
		StorageClass:    cfg.ObjectStoreStorageClass,
	}
	if storageCfg.Enabled() {
		objectStore, err = storage.NewObjectStore(ctx, storageCfg)
		if err != nil {
			log.Fatal("object store init failed", zap.Error(err))
		}
		log.Info("receipt archive enabled", zap.String("bucket", cfg.ObjectStoreBucket))
	}

	receiptOpts := receipt.Options{
		RestaurantName: cfg.RestaurantName,
		Currency:       cfg.PaymentCurrency,
		Timezone:       cfg.RestaurantTimezone,
	}

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		queueClient = connectQueue(cfg, log)
	} else {
		log.Info("event relay disabled (RABBITMQ_URL is empty)")
	}
	if queueClient != nil {
		defer queueClient.Close()
		eventPublisher := queue.NewEventPublisher(queueClient, log)
		publishers = append(publishers, eventPublisher)
		startRelay(ctx, queueClient, eventPublisher.Origin(), hub, log)
	}

	engine := orders.NewEngine(store, store, publishers, snapshots, log)

	if queueClient != nil {
		startReceiptWorkers(ctx, cfg, queueClient, store, objectStore, receiptOpts, log)
	}

	var reconciler *payments.Reconciler
	provider, err := newPaymentProvider(cfg)
	if err != nil {
		log.Fatal("payment provider init failed", zap.Error(err))
	}
	if provider != nil {
		reconciler = payments.NewReconciler(store, provider, publishers, payments.Config{
			Currency:        cfg.PaymentCurrency,
			ProviderTimeout: cfg.PaymentProviderTimeout,
		}, log)
		log.Info("online payments enabled", zap.String("provider", provider.Name()))
	} else {
		log.Info("online payments disabled", zap.String("provider", cfg.PaymentProvider))
	}

	h := &handlers.Handler{
		Engine:     engine,
		Reconciler: reconciler,
		Floor:      floor.NewService(store, store, cfg.RestaurantTimezone, log),
		Logger:     log,
		Config:     cfg,
		Receipt:    receiptOpts,
	}
	wsServer := ws.NewServer(hub, engine, cfg.WSHeartbeatInterval, log)

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("tab api ready", zap.String("base", "/api"))
		log.Info("tab ws ready", zap.String("base", "/ws"))
		log.Info("tab service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

func connectQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without relay", zap.Error(err))
		return nil
	}

	for name, ensure := range map[string]func(*queue.Client) error{
		"events":       queue.EnsureEventsTopology,
		"receipt_jobs": queue.EnsureReceiptJobsTopology,
	} {
		if err := ensure(qc); err != nil {
			if cfg.IsProduction() {
				log.Fatal("rabbitmq topology failed", zap.String("topology", name), zap.Error(err))
			}
			log.Warn("rabbitmq topology failed; continuing without relay", zap.String("topology", name), zap.Error(err))
			_ = qc.Close()
			return nil
		}
	}
	log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange))
	return qc
}

// startRelay fans events from other instances out to this instance's websocket clients.
func startRelay(ctx context.Context, qc *queue.Client, origin string, hub *ws.Hub, log *zap.Logger) {
	instanceQueue, err := qc.EnsureInstanceQueue()
	if err == nil {
		err = qc.BindQueue(instanceQueue.Name, queue.EventsExchange, "#")
	}
	if err != nil {
		log.Warn("event relay unavailable", zap.Error(err))
		return
	}
	go func() {
		if err := qc.ConsumeAutoAck(ctx, instanceQueue.Name, queue.RelayHandler(origin, hub)); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event relay stopped", zap.Error(err))
		}
	}()
}

func startReceiptWorkers(ctx context.Context, cfg config.Config, qc *queue.Client, source receipt.OrderSource, objectStore *storage.ObjectStore, opts receipt.Options, log *zap.Logger) {
	if cfg.RabbitMQWorkerMode != "daemon" {
		log.Info("receipt worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
		return
	}
	if objectStore == nil {
		log.Info("receipt worker disabled (object store not configured)")
		return
	}

	log.Info("receipt worker enabled", zap.String("mode", "daemon"))
	archiver := receipt.NewArchiver(source, objectStore, opts, log)

	go func() {
		err := qc.ConsumeWithRetry(ctx, queue.ReceiptEventsQueue, func(ctx context.Context, body []byte) error {
			return queue.ProcessEventToJobs(ctx, qc, body)
		}, 5, 5*time.Second, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event translator stopped", zap.Error(err))
		}
	}()
	go func() {
		err := qc.ConsumeWithRetry(ctx, queue.ReceiptJobsQueue, queue.ReceiptJobHandler(archiver.Archive), 5, 10*time.Second, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("receipt worker stopped", zap.Error(err))
		}
	}()
}

func newPaymentProvider(cfg config.Config) (payments.Provider, error) {
	switch cfg.PaymentProvider {
	case "razorpay":
		if cfg.RazorpayKeyID == "" && cfg.RazorpayKeySecret == "" {
			return nil, nil
		}
		return payments.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, nil
		}
		return payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripePublishableKey)
	default:
		return nil, nil
	}
}

func seedDemoCatalog(store *memory.Store) {
	for i, name := range []string{"T1", "T2", "T3", "T4"} {
		store.PutTable(orders.Table{ID: int64(i + 1), Number: name})
	}
	store.PutDish(orders.Dish{ID: 1, Name: "Masala Dosa", Price: decimal.RequireFromString("150.00"), Available: true})
	store.PutDish(orders.Dish{ID: 2, Name: "Paneer Tikka", Price: decimal.RequireFromString("280.00"), Available: true})
	store.PutDish(orders.Dish{ID: 3, Name: "Filter Coffee", Price: decimal.RequireFromString("60.00"), Available: true})
}
