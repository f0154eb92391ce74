package cron

import (
	"context"
	"time"

	"github.com/Dias221467/bladder/internal/jobs"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/robfig/cron/v3"
)

const reconcileTimeout = 5 * time.Minute

// StartReconcileCronJobs runs the friendship reconciler on schedule. Stop the returned
// cron to end it.
func StartReconcileCronJobs(reconciler *jobs.FriendshipReconciler, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		if _, err := reconciler.Run(ctx); err != nil {
			logger.Log.WithError(err).Error("Friendship reconcile failed")
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Log.WithField("schedule", schedule).Info("Friendship reconciler scheduled")
	return c, nil
}
