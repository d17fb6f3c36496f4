package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tellerops/internal/config"
	"tellerops/internal/handler"
	"tellerops/internal/i18n"
	"tellerops/internal/logger"
	"tellerops/internal/notifier"
	"tellerops/internal/scheduler"
	"tellerops/internal/service"
	"tellerops/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	if err := i18n.Init(cfg.DefaultLocale); err != nil {
		log.WithError(err).Fatal("load locales")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.WithError(err).Fatalf("load timezone %s", cfg.Timezone)
	}

	db, err := store.NewMongoDB(cfg.MongoURI, cfg.MongoDB, log)
	if err != nil {
		log.WithError(err).Fatal("connect to MongoDB")
	}
	defer db.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stores. Index creation happens here, before the server accepts traffic.
	tellerStore := store.NewTellerStore(db)
	assignmentStore, err := store.NewAssignmentStore(ctx, db)
	if err != nil {
		log.WithError(err).Fatal("init assignment store")
	}
	attendanceStore, err := store.NewAttendanceStore(ctx, db)
	if err != nil {
		log.WithError(err).Fatal("init attendance store")
	}
	fullWeekStore, err := store.NewFullWeekStore(ctx, db)
	if err != nil {
		log.WithError(err).Fatal("init full week store")
	}
	absenceStore, err := store.NewAbsenceStore(ctx, db)
	if err != nil {
		log.WithError(err).Fatal("init absence store")
	}

	var notify notifier.Notifier = &notifier.LogNotifier{Log: log}
	if cfg.WebhookURL != "" {
		notify = notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookToken, log)
	}

	// Services
	penalties := service.NewPenaltyTracker(tellerStore)
	ledger := service.NewLedger(attendanceStore, tellerStore, penalties)
	ranker := service.NewRanker(tellerStore, ledger, absenceStore)
	rotation := service.NewRotation(assignmentStore, tellerStore, ledger, notify)
	suggester := service.NewSuggester(ranker, assignmentStore)
	planner := service.NewPlanner(assignmentStore, tellerStore, fullWeekStore, ledger, notify)
	generator := service.NewGenerator(ranker, rotation, fullWeekStore, cfg.RosterHeadcount)
	absences := service.NewAbsencePlanner(absenceStore, tellerStore, notify)

	// Routes
	mux := http.NewServeMux()
	handler.NewScheduleHandler(rotation, suggester, planner, generator, absences, loc, log).RegisterRoutes(mux)

	// Health checks
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Nightly roster generation
	rosterJob := scheduler.New(generator, cfg.RosterCronSpec, loc, log)
	if err := rosterJob.Start(); err != nil {
		log.WithError(err).Fatal("start roster scheduler")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.LoggingMiddleware(log, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("schedule service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	rosterJob.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
