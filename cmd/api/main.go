package main

import (
	"context"
	"database/sql"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/infrastructure/database/postgres"
	"github.com/vfg2006/adstats-sync/infrastructure/database/redis"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/dplatform/dclient"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform"
	"github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform/rclient"
	"github.com/vfg2006/adstats-sync/infrastructure/migration"
	"github.com/vfg2006/adstats-sync/infrastructure/repository"
	"github.com/vfg2006/adstats-sync/internal/api"
	"github.com/vfg2006/adstats-sync/internal/api/handler"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/internal/scheduler"
	"github.com/vfg2006/adstats-sync/internal/usecases/account"
	"github.com/vfg2006/adstats-sync/internal/usecases/syncing"
)

func main() {
	// Inicializa configuração de logs
	configureLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	// Define o nível de log com base na configuração
	logLevel, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logrus.Warnf("Nível de log inválido: %s, usando 'info'", cfg.App.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	logrus.Infof("Nível de log configurado para: %s", logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	err = pgConn.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return migration.Apply(ctx, tx)
	})
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao aplicar o schema do banco de dados")
	}

	deps := map[string]handler.Pinger{"postgres": pgConn}

	// Redis é opcional: sem ele o lock de execução é apenas local e os
	// tokens de sessão da plataforma D ficam só em memória
	var (
		locker       scheduler.RunLocker
		sessionCache dclient.SessionCache
	)
	if cfg.Redis.Enabled() {
		redisConn := redisconn(ctx, cfg.Redis)
		defer redisConn.Close()

		locker = redis.NewRunLocker(redisConn)
		sessionCache = redis.NewSessionCache(redisConn, cfg.DPlatform.SessionCachePrefix)
		deps["redis"] = redisConn
	}

	m := metrics.NewMetrics("adstats", prometheus.DefaultRegisterer)

	accountRepo := repository.NewAccountRepository(pgConn)
	dailyStatRepo := repository.NewDailyStatRepository(pgConn)
	credentialRepo := repository.NewCredentialRepository(pgConn)

	rIntegrator := rplatform.New(cfg, rclient.NewClient(cfg, m))
	dIntegrator := dplatform.New(cfg, dclient.NewClient(cfg, sessionCache, m))
	adapters := []syncing.PlatformAdapter{rIntegrator, dIntegrator}

	accountService := account.NewService(accountRepo, dailyStatRepo, credentialRepo, cfg)

	dailyStatsSyncService := scheduler.NewDailyStatsSyncService(
		accountRepo,
		credentialRepo,
		dailyStatRepo,
		adapters,
		locker,
		m,
		cfg,
	)

	reconciliationScanService := scheduler.NewReconciliationScanService(
		accountRepo,
		credentialRepo,
		dailyStatRepo,
		adapters,
		locker,
		m,
		cfg,
	)

	// Inicia os agendadores em background
	if err := dailyStatsSyncService.Start(ctx); err != nil {
		logrus.WithError(err).Error("Erro ao iniciar o agendador de sincronização diária")
	} else {
		logrus.Info("Agendador de sincronização diária iniciado com sucesso")
	}

	if err := reconciliationScanService.Start(ctx); err != nil {
		logrus.WithError(err).Error("Erro ao iniciar o agendador de reconciliação")
	} else {
		logrus.Info("Agendador de reconciliação iniciado com sucesso")
	}

	server, err := api.New(
		cfg,
		accountService,
		dailyStatsSyncService,
		reconciliationScanService,
		deps,
	)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.Run(ctx); err != nil {
		logrus.Error(err)
	}
}

// configureLogger configura o formato e comportamento dos logs
func configureLogger() {
	_, file, _, _ := runtime.Caller(0)
	dir := path.Dir(file)
	os.Chdir(dir)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

// pgconn cria uma conexão com o banco de dados
func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao PostgreSQL")
	}

	err = conn.Ping(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao testar conexão com PostgreSQL")
	}

	logrus.Info("Conexão com PostgreSQL estabelecida com sucesso")
	return conn
}

// redisconn cria a conexão com o Redis
func redisconn(ctx context.Context, redisConfig config.Redis) *redis.Connection {
	conn, err := redis.NewConnection(ctx, redisConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao Redis")
	}
	return conn
}
