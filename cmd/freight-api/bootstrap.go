package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FreightBox/config"
	freightapi "github.com/BearBump/FreightBox/internal/api/freight_api"
	"github.com/BearBump/FreightBox/internal/broker/kafka"
	"github.com/BearBump/FreightBox/internal/cache/rediscache"
	"github.com/BearBump/FreightBox/internal/services/access"
	"github.com/BearBump/FreightBox/internal/services/actions"
	"github.com/BearBump/FreightBox/internal/services/waybills"
	"github.com/BearBump/FreightBox/internal/storage/memfreight"
	"github.com/BearBump/FreightBox/internal/storage/pgfreight"
)

type freightStore interface {
	actions.Store
	access.Repository
	waybills.Repository
}

type freightAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     freightAPIOpts
	api      *freightapi.FreightAPI
	reads    *waybills.Service
	consumer *kafka.Consumer
	producer *kafka.Producer
	closeDB  func()
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// openStore picks the backend; "memory" is seeded with the demo company.
func openStore(cfg *config.Config) (freightStore, func(), error) {
	if cfg.FreightBox.Storage == "memory" {
		st := memfreight.New()
		d := memfreight.SeedDemo(st)
		slog.Info("memory storage seeded", "admin_user_id", d.Admin, "branch_a_user_id", d.BranchAUser, "branch_b_user_id", d.BranchBUser)
		return st, nil, nil
	}
	st, err := openPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func openPostgresWithRetry(connString string, wait time.Duration) (*pgfreight.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfreight.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %v", wait, lastErr)
}

func mustBootstrapFreightAPI() *freightAPIApp {
	config.LoadDotEnv()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.FreightBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.FreightBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "freight-api"
	}
	topic := cfg.Kafka.WaybillRoutedTopicName
	if topic == "" {
		topic = "waybill.routed"
	}

	st, closeDB, err := openStore(cfg)
	if err != nil {
		panic(err)
	}

	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, consumerGroup)

	resolver := access.NewResolver(st,
		seconds(cfg.FreightBox.UserCacheTTLSeconds, access.DefaultUserTTL),
		seconds(cfg.FreightBox.SettingsCacheTTLSeconds, access.DefaultSettingsTTL),
		nil)
	reads := waybills.New(st, rc, seconds(cfg.FreightBox.WaybillCacheTTLSeconds, 10*time.Minute), nil)
	exec := actions.NewExecutor(st, resolver, producer, topic, nil).WithSnapshots(reads)

	perMinute := int64(cfg.FreightBox.ActionRateLimitPerMinute)
	if perMinute <= 0 {
		perMinute = 120
	}
	api := freightapi.New(exec, reads, access.NewSessionStore(rc), resolver, rl, freightapi.Options{
		CookieName:       cfg.FreightBox.SessionCookieName,
		ActionsPerMinute: perMinute,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &freightAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: freightAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		reads:    reads,
		consumer: consumer,
		producer: producer,
		closeDB:  closeDB,
	}
}

func (a *freightAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *freightAPIApp) Run() error {
	return runFreightAPI(a.ctx, a.opts, a.api, a.reads, a.consumer)
}
