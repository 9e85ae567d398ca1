package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"anomidate/internal/accounts"
	"anomidate/internal/api"
	"anomidate/internal/auth"
	"anomidate/internal/cache"
	"anomidate/internal/config"
	"anomidate/internal/db"
	"anomidate/internal/email"
	"anomidate/internal/matching"
	"anomidate/internal/messaging"
	"anomidate/internal/moderation"
	"anomidate/internal/roblox"
	"anomidate/internal/verification"
	"anomidate/internal/views"
	"anomidate/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users := db.NewUserRepository(database)
	swipes := db.NewSwipeRepository(database)
	quotas := db.NewQuotaRepository(database)
	resets := db.NewPasswordResetRepository(database)

	modService := moderation.NewService(database, cfg.Swipe.Location())
	if cfg.Admin.BootstrapUsername != "" {
		created, err := modService.Bootstrap(ctx, cfg.Admin.BootstrapUsername, cfg.Admin.BootstrapPassword)
		if err != nil {
			return fmt.Errorf("bootstrapping operator: %w", err)
		}
		if created {
			slog.Info("bootstrap operator created", "username", cfg.Admin.BootstrapUsername)
		}
	}

	cleanupService := db.NewCleanupService(resets, quotas)
	go cleanupService.Start(ctx)

	hub := ws.NewHub()
	go hub.Run()

	robloxOpts := roblox.Options{
		UsersURL:      cfg.Roblox.UsersURL,
		ThumbnailsURL: cfg.Roblox.ThumbnailsURL,
		Phrase:        cfg.Roblox.VerificationPhrase,
		Timeout:       cfg.Roblox.Timeout,
	}
	var cachePinger api.Pinger
	if cfg.Cache.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.AvatarTTL)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, avatar lookups will not be cached until it recovers", "addr", cfg.Cache.RedisAddr, "error", err)
		}
		robloxOpts.Avatars = redisCache
		cachePinger = redisCache
		slog.Info("avatar cache configured", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.AvatarTTL)
	}
	robloxClient := roblox.NewClient(robloxOpts)

	oauthProvider := roblox.NewOAuthProvider(roblox.OAuthConfig{
		ClientID:     cfg.Roblox.OAuth.ClientID,
		ClientSecret: cfg.Roblox.OAuth.ClientSecret,
		RedirectURL:  cfg.Roblox.OAuth.RedirectURL,
		AuthURL:      cfg.Roblox.OAuth.AuthURL,
		TokenURL:     cfg.Roblox.OAuth.TokenURL,
		UserInfoURL:  cfg.Roblox.OAuth.UserInfoURL,
		Scopes:       cfg.Roblox.OAuth.Scopes,
		Timeout:      cfg.Roblox.Timeout,
	})

	sessions, err := auth.NewSessionService(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}

	renderer, err := views.New(cfg.Server.Name)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	engine := matching.NewEngine(users, swipes, quotas, matching.Options{
		DailyLimit:     cfg.Swipe.DailyLimit,
		Location:       cfg.Swipe.Location(),
		ExcludeDecided: cfg.Swipe.ExcludeDecided,
		Notifier:       hub,
	})

	server, err := api.NewServer(cfg, api.Deps{
		DB:           database,
		Views:        renderer,
		Accounts:     accounts.NewService(users, resets, auth.NewResetCodeService(cfg.Auth.ResetCodeTTL), newMailer(cfg.Email.SMTP)),
		Verification: verification.NewService(robloxClient, users, db.NewVerificationRepository(database)),
		Matching:     engine,
		Messaging:    messaging.NewService(db.NewMessageRepository(database), engine, hub),
		Moderation:   modService,
		Avatars:      robloxClient,
		OAuth:        oauthProvider,
		Sessions:     sessions,
		States:       auth.NewStateSigner(cfg.Auth.SessionSecret),
		Hub:          hub,
		Cache:        cachePinger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		server.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	slog.Info("shutting down")

	server.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func newMailer(cfg config.SMTPConfig) accounts.Mailer {
	if !cfg.Enabled() {
		slog.Warn("smtp not configured, reset codes will be logged")
		return email.NewLogSender(slog.Default())
	}
	slog.Info("email configured", "host", cfg.Host, "port", cfg.Port)
	return email.NewSMTPService(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.From)
}
