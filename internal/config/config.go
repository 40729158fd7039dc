package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	App                App                `mapstructure:",squash"`
	Server             Server             `mapstructure:",squash"`
	Database           Database           `mapstructure:",squash"`
	Redis              Redis              `mapstructure:",squash"`
	RPlatform          RPlatform          `mapstructure:",squash"`
	DPlatform          DPlatform          `mapstructure:",squash"`
	DailyStatsSync     DailyStatsSync     `mapstructure:",squash"`
	ReconciliationScan ReconciliationScan `mapstructure:",squash"`
	Auth               Auth               `mapstructure:",squash"`
}

type Server struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Database struct {
	DSN      string `mapstructure:"-"`
	Driver   string `mapstructure:"database_driver"`
	Password string `mapstructure:"database_password"`
	URL      string `mapstructure:"database_url"`
	User     string `mapstructure:"database_user"`

	MaxOpenConns    int           `mapstructure:"database_max_open_conns"`
	MaxIdleConns    int           `mapstructure:"database_max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"database_conn_max_lifetime"`
}

// Redis é opcional: com Addr vazio o lock de execução fica apenas no processo
// e o cache de sessão da plataforma D fica apenas em memória.
type Redis struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type App struct {
	LogLevel         string         `mapstructure:"log_level"`
	BusinessTimezone string         `mapstructure:"business_timezone"`
	Location         *time.Location `mapstructure:"-"`
}

type Auth struct {
	CronSecret string `mapstructure:"cron_secret"`
}

// RCredential é um par de credenciais da plataforma R
type RCredential struct {
	UserID string
	Token  string
}

type RPlatform struct {
	URL            string        `mapstructure:"r_platform_url"`
	Timezone       string        `mapstructure:"r_platform_timezone"`
	Currency       string        `mapstructure:"r_platform_currency"`
	RawCredentials []string      `mapstructure:"r_platform_credentials"`
	MaxSpanDays    int           `mapstructure:"r_platform_max_span_days"`
	Timeout        time.Duration `mapstructure:"r_platform_timeout"`
	Credentials    []RCredential `mapstructure:"-"`
}

type DPlatform struct {
	BaseURL            string        `mapstructure:"d_platform_base_url"`
	Country            string        `mapstructure:"d_platform_country"`
	SessionTTL         time.Duration `mapstructure:"d_platform_session_ttl"`
	RateLimitSleep     time.Duration `mapstructure:"d_platform_rate_limit_sleep"`
	ReportMaxAttempts  int           `mapstructure:"d_platform_report_max_attempts"`
	ListWorkers        int           `mapstructure:"d_platform_list_workers"`
	ReportWorkers      int           `mapstructure:"d_platform_report_workers"`
	CampaignGraceDays  int           `mapstructure:"d_platform_campaign_grace_days"`
	Timeout            time.Duration `mapstructure:"d_platform_timeout"`
	SessionCachePrefix string        `mapstructure:"d_platform_session_cache_prefix"`
}

type DailyStatsSync struct {
	CronSchedule string        `mapstructure:"daily_stats_sync_cron"`
	Enabled      bool          `mapstructure:"daily_stats_sync_enabled"`
	RWorkers     int           `mapstructure:"daily_stats_sync_r_workers"`
	DWorkers     int           `mapstructure:"daily_stats_sync_d_workers"`
	MaxAttempts  int           `mapstructure:"daily_stats_sync_max_attempts"`
	RetryDelay   time.Duration `mapstructure:"daily_stats_sync_retry_delay"`
	LockTTL      time.Duration `mapstructure:"daily_stats_sync_lock_ttl"`
}

type ReconciliationScan struct {
	CronSchedule   string        `mapstructure:"reconciliation_scan_cron"`
	Enabled        bool          `mapstructure:"reconciliation_scan_enabled"`
	AccountWorkers int           `mapstructure:"reconciliation_scan_account_workers"`
	FloorDate      string        `mapstructure:"reconciliation_scan_floor_date"`
	MaxAttempts    int           `mapstructure:"reconciliation_scan_max_attempts"`
	RetryDelay     time.Duration `mapstructure:"reconciliation_scan_retry_delay"`
	LockTTL        time.Duration `mapstructure:"reconciliation_scan_lock_ttl"`
}

// Floor retorna a data mínima segura para o scanner de reconciliação
func (r ReconciliationScan) Floor() (time.Time, error) {
	if r.FloorDate == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, r.FloorDate)
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/adstats?sslmode=disable")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 10) // cobre os pools de R e D somados
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")

	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("R_PLATFORM_URL", "https://broadciel.rpt.rixbeedesk.com/api/report/v1")
	viper.SetDefault("R_PLATFORM_TIMEZONE", "UTC+8")
	viper.SetDefault("R_PLATFORM_CURRENCY", "TWD")
	viper.SetDefault("R_PLATFORM_CREDENTIALS", "") // user_id:token,user_id:token (ordem de failover)
	viper.SetDefault("R_PLATFORM_MAX_SPAN_DAYS", 7)
	viper.SetDefault("R_PLATFORM_TIMEOUT", "60s")

	viper.SetDefault("D_PLATFORM_BASE_URL", "https://s2s.popin.cc")
	viper.SetDefault("D_PLATFORM_COUNTRY", "tw")
	viper.SetDefault("D_PLATFORM_SESSION_TTL", "55m")
	viper.SetDefault("D_PLATFORM_RATE_LIMIT_SLEEP", "1s")
	viper.SetDefault("D_PLATFORM_REPORT_MAX_ATTEMPTS", 3)
	viper.SetDefault("D_PLATFORM_LIST_WORKERS", 3)
	viper.SetDefault("D_PLATFORM_REPORT_WORKERS", 5)
	viper.SetDefault("D_PLATFORM_CAMPAIGN_GRACE_DAYS", 30)
	viper.SetDefault("D_PLATFORM_TIMEOUT", "20s")
	viper.SetDefault("D_PLATFORM_SESSION_CACHE_PREFIX", "dplatform:session:")

	viper.SetDefault("DAILY_STATS_SYNC_CRON", "30 2 * * *") // Todos os dias às 2h30
	viper.SetDefault("DAILY_STATS_SYNC_ENABLED", false)
	viper.SetDefault("DAILY_STATS_SYNC_R_WORKERS", 5)
	viper.SetDefault("DAILY_STATS_SYNC_D_WORKERS", 3)
	viper.SetDefault("DAILY_STATS_SYNC_MAX_ATTEMPTS", 2)
	viper.SetDefault("DAILY_STATS_SYNC_RETRY_DELAY", "1s")
	viper.SetDefault("DAILY_STATS_SYNC_LOCK_TTL", "2h")

	viper.SetDefault("RECONCILIATION_SCAN_CRON", "0 */6 * * *") // A cada 6 horas
	viper.SetDefault("RECONCILIATION_SCAN_ENABLED", false)
	viper.SetDefault("RECONCILIATION_SCAN_ACCOUNT_WORKERS", 2)
	viper.SetDefault("RECONCILIATION_SCAN_FLOOR_DATE", "2024-01-01")
	viper.SetDefault("RECONCILIATION_SCAN_MAX_ATTEMPTS", 2)
	viper.SetDefault("RECONCILIATION_SCAN_RETRY_DELAY", "1s")
	viper.SetDefault("RECONCILIATION_SCAN_LOCK_TTL", "6h")

	viper.SetDefault("CRON_SECRET", "")

	viper.SetDefault("LOG_LEVEL", "debug")
	viper.SetDefault("BUSINESS_TIMEZONE", "Asia/Taipei")
}

func NewConfig() (*Config, error) {
	loadEnvFile() // ONLY LOCAL

	config := &Config{}

	SetDefaults()

	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("Usando variáveis carregadas pelo godotenv (viper não conseguiu ler .env):", err)
	} else {
		logrus.Info("Arquivo .env lido pelo Viper com sucesso")
	}

	err := viper.Unmarshal(&config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	if err := config.finalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// finalize deriva os campos calculados a partir dos valores carregados
func (c *Config) finalize() error {
	loc, err := time.LoadLocation(c.App.BusinessTimezone)
	if err != nil {
		return fmt.Errorf("fuso horário de negócio inválido %q: %w", c.App.BusinessTimezone, err)
	}
	c.App.Location = loc

	creds, err := ParseRCredentials(c.RPlatform.RawCredentials)
	if err != nil {
		return err
	}
	c.RPlatform.Credentials = creds

	if _, err := c.ReconciliationScan.Floor(); err != nil {
		return fmt.Errorf("data mínima de reconciliação inválida %q: %w", c.ReconciliationScan.FloorDate, err)
	}

	c.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		c.Database.Driver,
		c.Database.User,
		c.Database.Password,
		c.Database.URL,
	)

	return nil
}

// ParseRCredentials converte entradas "user_id:token" preservando a ordem de failover
func ParseRCredentials(raw []string) ([]RCredential, error) {
	creds := make([]RCredential, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		userID, token, ok := strings.Cut(entry, ":")
		if !ok || userID == "" || token == "" {
			return nil, fmt.Errorf("credencial da plataforma R mal formada: esperado user_id:token")
		}

		creds = append(creds, RCredential{UserID: userID, Token: token})
	}
	return creds, nil
}

// Função auxiliar para carregar o arquivo .env usando godotenv
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("Não foi possível obter o diretório atual:", err)
		return
	}

	locations := []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(filepath.Dir(cwd), ".env"),
		filepath.Join(cwd, "../../.env"),
	}

	for _, location := range locations {
		err := godotenv.Load(location)
		if err == nil {
			logrus.Info("Arquivo .env carregado com sucesso de:", location)
			return
		}
	}

	logrus.Warn("Não foi possível carregar o arquivo .env de nenhuma localização conhecida")
}
