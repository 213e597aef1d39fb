package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aldergrove/carecircle/internal/backup"
	"github.com/aldergrove/carecircle/internal/database"
	"github.com/aldergrove/carecircle/internal/logging"
	"github.com/aldergrove/carecircle/internal/push"
	"github.com/aldergrove/carecircle/internal/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "gen-vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate VAPID keys:", err)
			os.Exit(1)
		}
		fmt.Println("CARECIRCLE_VAPID_PUBLIC_KEY=" + pub)
		fmt.Println("CARECIRCLE_VAPID_PRIVATE_KEY=" + priv)
		return
	}

	logger := logging.Setup(os.Getenv("CARECIRCLE_LOG_LEVEL"), os.Getenv("CARECIRCLE_LOG_FORMAT"))

	dbPath := envOr("CARECIRCLE_DB_PATH", "carecircle.db")
	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		DetectorToken:   os.Getenv("CARECIRCLE_DETECTOR_TOKEN"),
		ServiceToken:    os.Getenv("CARECIRCLE_SERVICE_TOKEN"),
		VAPIDPublicKey:  os.Getenv("CARECIRCLE_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("CARECIRCLE_VAPID_PRIVATE_KEY"),
		PostmarkToken:   os.Getenv("CARECIRCLE_POSTMARK_TOKEN"),
		EmailFrom:       envOr("CARECIRCLE_EMAIL_FROM", "noreply@carecircle.app"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("CARECIRCLE_BACKUP_S3_ENDPOINT"),
				Bucket:    os.Getenv("CARECIRCLE_BACKUP_S3_BUCKET"),
				Region:    envOr("CARECIRCLE_BACKUP_S3_REGION", "auto"),
				AccessKey: os.Getenv("CARECIRCLE_BACKUP_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("CARECIRCLE_BACKUP_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			Passphrase:    os.Getenv("CARECIRCLE_BACKUP_PASSPHRASE"),
			ScheduleHour:  envInt("CARECIRCLE_BACKUP_HOUR", 3),
			RetentionDays: envInt("CARECIRCLE_BACKUP_RETENTION_DAYS", 30),
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.Backups.Start(ctx)
	defer srv.Backups.Stop()

	// Hourly housekeeping: expired sessions and stale rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.Sessions.DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.Limiter.Cleanup()
			}
		}
	}()

	addr := ":" + envOr("CARECIRCLE_PORT", "8080")
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
