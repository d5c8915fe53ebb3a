// Package leadcadence is the temporal-scheduling and compliance core of a
// sales-outreach platform. Given a trigger event for a lead it selects a
// cadence, compiles it into concrete send times inside legal contact hours,
// and drives each persisted item through its delivery state machine.
// Content generation and channel transport are collaborator interfaces
// supplied by the embedding service.
package leadcadence

import (
	"leadcadence/config"
	"leadcadence/engine"
	"leadcadence/scheduler"
	"leadcadence/store"
	"leadcadence/timewindow"
	"leadcadence/worker"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service bundles the wired core for an embedding application.
type Service struct {
	Store     *store.GormStore
	Compiler  *scheduler.Compiler
	Engine    *engine.Engine
	Canceller *engine.Canceller
	Worker    *worker.DispatchWorker
}

// Collaborators are the external systems the core calls out to.
type Collaborators struct {
	Generator engine.ContentGenerator
	Transport engine.Transport
	Stages    engine.StageOracle
}

// New wires the core against a connected database and the caller's
// collaborators, using the loaded application config for policy settings.
func New(db *gorm.DB, logger *logrus.Logger, collab Collaborators) *Service {
	if err := timewindow.SetDefaultTimezone(config.AppConfig.DefaultTimezone); err != nil {
		logger.WithError(err).WithField("timezone", config.AppConfig.DefaultTimezone).
			Warn("configured default timezone failed to load, keeping built-in fallback")
	}

	st := store.NewGormStore(db, logger)

	var sendCap *store.SendCap
	if client := config.NewRedisClient(); client != nil {
		sendCap = store.NewSendCap(client, config.AppConfig.DailySendLimit)
	}

	eng := &engine.Engine{
		Store:        st,
		Generator:    collab.Generator,
		Transport:    collab.Transport,
		Stages:       collab.Stages,
		Policy:       engine.StagePolicy{Excluded: config.AppConfig.ExcludedStages},
		Logger:       logger,
		SendCap:      sendCap,
		SenderName:   config.AppConfig.SenderName,
		CalendarLink: config.AppConfig.CalendarLink,
		ReportErrors: config.AppConfig.SentryDSN != "",
	}

	dw := worker.NewDispatchWorker(st, eng, logger)
	dw.Interval = config.AppConfig.WorkerInterval
	dw.BatchSize = config.AppConfig.WorkerBatchSize

	return &Service{
		Store:     st,
		Compiler:  scheduler.NewCompiler(st, logger),
		Engine:    eng,
		Canceller: engine.NewCanceller(st, logger),
		Worker:    dw,
	}
}
