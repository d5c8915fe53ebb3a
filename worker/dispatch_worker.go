package worker

import (
	"context"
	"sync"
	"time"

	"leadcadence/engine"
	"leadcadence/store"

	"github.com/sirupsen/logrus"
)

// DispatchWorker is the periodic actor: it repeatedly fetches due pending
// items and hands each to the execution engine. The engine never retries
// on its own; every pass re-reads fresh state, so recoverable failures
// simply surface again here.
type DispatchWorker struct {
	Store  store.Store
	Engine *engine.Engine
	Logger *logrus.Logger

	Interval  time.Duration
	BatchSize int

	// Concurrency bounds the worker pool per pass.
	Concurrency int
}

func NewDispatchWorker(st store.Store, eng *engine.Engine, logger *logrus.Logger) *DispatchWorker {
	return &DispatchWorker{
		Store:       st,
		Engine:      eng,
		Logger:      logger,
		Interval:    1 * time.Minute,
		BatchSize:   200,
		Concurrency: 8,
	}
}

func (dw *DispatchWorker) Start(ctx context.Context) {
	dw.Logger.Info("dispatch worker started")

	ticker := time.NewTicker(dw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dw.Logger.Info("dispatch worker shutting down")
			return
		case <-ticker.C:
			dw.processDue(ctx)
		}
	}
}

func (dw *DispatchWorker) processDue(ctx context.Context) {
	items, err := dw.Store.QueryDuePending(ctx, time.Now().UTC(), dw.BatchSize)
	if err != nil {
		dw.Logger.WithError(err).Error("error fetching due items")
		return
	}
	if len(items) == 0 {
		return
	}

	dw.Logger.WithField("count", len(items)).Info("processing due items")

	sem := make(chan struct{}, dw.Concurrency)
	var wg sync.WaitGroup
	for i := range items {
		item := items[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result := dw.Engine.Process(ctx, &item)
			if !result.Success && result.DeliveryError != "" {
				dw.Logger.WithFields(logrus.Fields{
					"message_id":     item.ID,
					"lead_id":        item.LeadID,
					"delivery_error": result.DeliveryError,
				}).Warn("item not delivered this pass")
			}
		}()
	}
	wg.Wait()
}
