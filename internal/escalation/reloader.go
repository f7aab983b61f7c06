package escalation

import (
	"context"
	"log/slog"
	"time"
)

// Reloader polls Redis for policy version changes and hot-swaps the policy
// held by the scheduler when the version moves.
type Reloader struct {
	loader         *Loader
	holder         *Holder
	pollInterval   time.Duration
	currentVersion int64
}

// NewReloader creates a new reloader with the given dependencies.
func NewReloader(loader *Loader, holder *Holder, pollInterval time.Duration) *Reloader {
	return &Reloader{
		loader:       loader,
		holder:       holder,
		pollInterval: pollInterval,
	}
}

// Start loads the initial policy if one is published and begins polling for
// version changes in a background goroutine. The goroutine exits when ctx
// is cancelled. A missing snapshot is not an error: the holder keeps its
// seeded default until one is published.
func (r *Reloader) Start(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}
	if version > 0 {
		policy, err := r.loader.LoadPolicy(ctx)
		if err != nil {
			return err
		}
		r.holder.Update(policy)
		r.currentVersion = version
	}

	slog.Info("Starting escalation policy poller",
		"poll_interval", r.pollInterval,
		"initial_version", r.currentVersion,
	)

	go r.pollLoop(ctx)
	return nil
}

// pollLoop continuously polls Redis for version changes.
func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Escalation policy poller stopped")
			return
		case <-ticker.C:
			if err := r.checkAndReload(ctx); err != nil {
				slog.Error("Failed to check/reload escalation policy",
					"error", err,
				)
				// Continue polling even if reload fails
			}
		}
	}
}

// checkAndReload reloads the policy if the published version has changed.
func (r *Reloader) checkAndReload(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}

	if version == r.currentVersion {
		return nil
	}

	slog.Info("Escalation policy version changed, reloading",
		"old_version", r.currentVersion,
		"new_version", version,
	)

	policy, err := r.loader.LoadPolicy(ctx)
	if err != nil {
		return err
	}

	r.holder.Update(policy)
	r.currentVersion = version

	slog.Info("Escalation policy reloaded",
		"version", version,
		"steps", len(policy.Steps),
	)

	return nil
}

// ReloadNow forces an immediate reload of the policy from the Redis snapshot.
func (r *Reloader) ReloadNow(ctx context.Context) error {
	return r.checkAndReload(ctx)
}
