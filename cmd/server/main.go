package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mkostiuk/contact_service/internal/avatar"
	"github.com/mkostiuk/contact_service/internal/config"
	"github.com/mkostiuk/contact_service/internal/es"
	"github.com/mkostiuk/contact_service/internal/events"
	authhdl "github.com/mkostiuk/contact_service/internal/handlers/auth"
	"github.com/mkostiuk/contact_service/internal/handlers/contacts"
	"github.com/mkostiuk/contact_service/internal/logging"
	"github.com/mkostiuk/contact_service/internal/mail"
	mw "github.com/mkostiuk/contact_service/internal/middleware/auth"
	loggingmw "github.com/mkostiuk/contact_service/internal/middleware/logging"
	"github.com/mkostiuk/contact_service/internal/service/identity"
	"github.com/mkostiuk/contact_service/internal/service/token"
	"github.com/mkostiuk/contact_service/internal/tokencache"
	httpserver "github.com/mkostiuk/contact_service/internal/transport/http"
)

const contactIndex = "contacts"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	redisClient, err := config.InitRedis(configuration)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	cache := tokencache.New(redisClient)

	tokenService := token.NewService(
		cache,
		[]byte(configuration.JWT_SECRET),
		[]byte(configuration.REFRESH_SECRET),
	)
	resolver := identity.NewResolver(db, cache, tokenService)

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var mailer *mail.Mailer
	if configuration.MAIL_HOST != "" {
		port, err := strconv.Atoi(configuration.MAIL_PORT)
		if err != nil {
			log.Fatalf("invalid MAIL_PORT: %v", err)
		}
		mailer = &mail.Mailer{
			Host:        configuration.MAIL_HOST,
			Port:        port,
			Username:    configuration.MAIL_USERNAME,
			Password:    configuration.MAIL_PASSWORD,
			From:        configuration.MAIL_FROM,
			PublicURL:   configuration.PUBLIC_URL,
			FrontendURL: configuration.FRONTEND_URL,
		}
	}

	var avatars *avatar.Store
	if configuration.CLOUD_NAME != "" {
		avatars, err = avatar.NewStore(
			configuration.CLOUD_NAME,
			configuration.CLOUD_API_KEY,
			configuration.CLOUD_API_SECRET,
		)
		if err != nil {
			log.Fatalf("cloudinary init error: %v", err)
		}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	authHandler := &authhdl.AuthHandler{
		DB:       db,
		Tokens:   tokenService,
		Resolver: resolver,
		Producer: producer,
	}
	if mailer != nil {
		authHandler.Mail = mailer
	}
	if avatars != nil {
		authHandler.Avatars = avatars
	}

	deps := httpserver.Deps{
		AuthHandler: authHandler,
		ContactHandler: &contacts.ContactHandler{
			DB:       db,
			ES:       esClient,
			Index:    contactIndex,
			Producer: producer,
		},
		AuthMW: &mw.Middleware{Resolver: resolver},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}
	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
