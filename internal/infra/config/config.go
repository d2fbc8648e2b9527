package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ActorSet содержит идентификаторы акторов Apify. Собирается один раз при старте.
type ActorSet struct {
	FacebookPosts     string `envconfig:"ACTOR_FACEBOOK_POSTS" default:"scraper_one/facebook-posts-scraper"`
	FacebookComments  string `envconfig:"ACTOR_FACEBOOK_COMMENTS" default:"apify/facebook-comments-scraper"`
	FacebookReactions string `envconfig:"ACTOR_FACEBOOK_REACTIONS" default:"scraper_one/facebook-reactions-scraper"`
	InstagramPosts    string `envconfig:"ACTOR_INSTAGRAM_POSTS" default:"apify/instagram-scraper"`
	InstagramComments string `envconfig:"ACTOR_INSTAGRAM_COMMENTS" default:"apify/instagram-comment-scraper"`
	YouTubePosts      string `envconfig:"ACTOR_YOUTUBE_POSTS" default:"streamers/youtube-scraper"`
	YouTubeComments   string `envconfig:"ACTOR_YOUTUBE_COMMENTS" default:"p7UMdpQnjKmmpR21D"`
}

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":9090"`
	APIKey      string        `envconfig:"API_KEY"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"600s"`

	Apify struct {
		Token        string        `envconfig:"APIFY_TOKEN"`
		BaseURL      string        `envconfig:"APIFY_BASE_URL" default:"https://api.apify.com"`
		Timeout      time.Duration `envconfig:"APIFY_TIMEOUT" default:"300s"`
		MaxAttempts  int           `envconfig:"APIFY_MAX_ATTEMPTS" default:"4"`
		BaseDelay    time.Duration `envconfig:"APIFY_BASE_DELAY" default:"1s"`
		MaxDelay     time.Duration `envconfig:"APIFY_MAX_DELAY" default:"60s"`
		PollInterval time.Duration `envconfig:"APIFY_POLL_INTERVAL" default:"5s"`
	} `envconfig:""`

	Actors ActorSet `envconfig:""`

	Limits struct {
		MaxPosts        int           `envconfig:"DEFAULT_MAX_POSTS" default:"10"`
		MaxComments     int           `envconfig:"DEFAULT_MAX_COMMENTS" default:"25"`
		CommentDelay    time.Duration `envconfig:"COMMENT_FETCH_DELAY" default:"2s"`
		CommentWorkers  int           `envconfig:"COMMENT_FETCH_WORKERS" default:"3"`
		ReactionsBatch  int           `envconfig:"REACTIONS_BATCH_SIZE" default:"5"`
		ReactionsPerRun int           `envconfig:"REACTIONS_RESULTS_LIMIT" default:"500"`
		ReactionsDelay  time.Duration `envconfig:"REACTIONS_DELAY" default:"2s"`
		MaxAttempts     int           `envconfig:"JOB_MAX_ATTEMPTS" default:"3"`
	} `envconfig:""`

	DataDir  string        `envconfig:"DATA_DIR" default:"data"`
	PGDSN    string        `envconfig:"PG_DSN"`
	MongoURI string        `envconfig:"MONGO_URI"`
	MongoDB  string        `envconfig:"MONGO_DB" default:"social_pulse"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"3600s"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Fetch   string `envconfig:"FETCH_QUEUE_KEY" default:"fetch_jobs"`
	} `envconfig:""`

	Schedule struct {
		Cron         string        `envconfig:"SCHEDULE_CRON" default:"0 */6 * * *"`
		Timezone     string        `envconfig:"SCHEDULE_TZ" default:"UTC"`
		Targets      []string      `envconfig:"SCHEDULE_TARGETS"`
		WithComments bool          `envconfig:"SCHEDULE_WITH_COMMENTS" default:"true"`
		DedupTTL     time.Duration `envconfig:"SCHEDULE_DEDUP_TTL" default:"1h"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_REPORT_CHAT_ID"`
	} `envconfig:""`
}

// LoadE читает .env (если есть) и окружение.
func LoadE() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("чтение .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if cfg.Apify.MaxAttempts < 1 {
		cfg.Apify.MaxAttempts = 1
	}
	if cfg.Limits.MaxAttempts < 1 {
		cfg.Limits.MaxAttempts = 1
	}
	if cfg.Limits.CommentWorkers < 1 {
		cfg.Limits.CommentWorkers = 1
	}
	return cfg, nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := LoadE()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
