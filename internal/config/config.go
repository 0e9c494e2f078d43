package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mkostiuk/contact_service/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	REDIS_ADDR     string
	REDIS_PASSWORD string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	KAFKA_ADDRESS string

	JWT_SECRET     string
	REFRESH_SECRET string

	MAIL_HOST     string
	MAIL_PORT     string
	MAIL_USERNAME string
	MAIL_PASSWORD string
	MAIL_FROM     string

	CLOUD_NAME       string
	CLOUD_API_KEY    string
	CLOUD_API_SECRET string

	PUBLIC_URL   string
	FRONTEND_URL string
	LOG_LEVEL    string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:          os.Getenv("DB_HOST"),
		DB_PORT:          os.Getenv("DB_PORT"),
		DB_USER:          os.Getenv("DB_USER"),
		DB_PASSWORD:      os.Getenv("DB_PASSWORD"),
		DB_NAME:          os.Getenv("DB_NAME"),
		REDIS_ADDR:       os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD:   os.Getenv("REDIS_PASSWORD"),
		ES_URL:           os.Getenv("ES_URL"),
		ES_USER:          os.Getenv("ES_USER"),
		ES_PASSWORD:      os.Getenv("ES_PASSWORD"),
		KAFKA_ADDRESS:    os.Getenv("KAFKA_ADDRESS"),
		JWT_SECRET:       os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:   os.Getenv("REFRESH_SECRET"),
		MAIL_HOST:        os.Getenv("MAIL_HOST"),
		MAIL_PORT:        os.Getenv("MAIL_PORT"),
		MAIL_USERNAME:    os.Getenv("MAIL_USERNAME"),
		MAIL_PASSWORD:    os.Getenv("MAIL_PASSWORD"),
		MAIL_FROM:        os.Getenv("MAIL_FROM"),
		CLOUD_NAME:       os.Getenv("CLOUD_NAME"),
		CLOUD_API_KEY:    os.Getenv("CLOUD_API_KEY"),
		CLOUD_API_SECRET: os.Getenv("CLOUD_API_SECRET"),
		PUBLIC_URL:       os.Getenv("PUBLIC_URL"),
		FRONTEND_URL:     os.Getenv("FRONTEND_URL"),
		LOG_LEVEL:        os.Getenv("LOG_LEVEL"),
	}

	if config.JWT_SECRET == "" || config.REFRESH_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
	}

	return config, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Contact{}); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}

func InitRedis(cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.REDIS_ADDR,
		Password: cfg.REDIS_PASSWORD,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}
	return client, nil
}
