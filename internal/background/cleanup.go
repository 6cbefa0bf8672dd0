package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SecretStore clears OTP and reset-token pairs whose expiry has passed
type SecretStore interface {
	ClearExpiredSecrets(ctx context.Context) (int64, error)
}

// CleanupManager periodically clears expired secrets from user records.
// Expired secrets already fail verification; clearing them only keeps dead
// hashes out of the table.
type CleanupManager struct {
	store    SecretStore
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store SecretStore, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		store:    store,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called or
// ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.store.ClearExpiredSecrets(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clear expired secrets", slog.Any("error", err))
		return
	}

	if cleared > 0 {
		cm.logger.Info("expired secrets cleared", slog.Int64("users_updated", cleared))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
