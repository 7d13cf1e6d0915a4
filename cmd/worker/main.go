package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquaa/markly/internal/attendance"
	"github.com/aquaa/markly/internal/config"
	"github.com/aquaa/markly/internal/logging"
	"github.com/aquaa/markly/internal/metrics"
	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/notify"
	"github.com/aquaa/markly/internal/queue"
	"github.com/aquaa/markly/internal/store"
)

// Worker consumes absence jobs, calls the messenger gateway, and marks
// the attendance record notified on success.
func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer st.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	att := attendance.NewService(st)
	notifier := notify.NewNotifier(st)
	messenger := notify.NewMessenger(cfg.MessengerURL, cfg.MessengerSkip)

	if !cfg.MessengerSkip {
		if err := messenger.Health(ctx); err != nil {
			slog.Warn("messenger gateway not available, will retry per job", "err", err)
		} else {
			slog.Info("messenger gateway connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	slog.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != queue.TypeAbsence {
			continue
		}
		processAbsence(ctx, st, att, messenger, notifier, msg)
		time.Sleep(10 * time.Millisecond)
	}

	slog.Info("worker stopped")
}

func processAbsence(ctx context.Context, st *store.Store, att *attendance.Service, messenger *notify.Messenger, notifier *notify.Notifier, msg queue.Message) {
	log := slog.Default().With("student_id", msg.StudentID, "date", msg.Date)

	student, err := st.StudentByID(ctx, msg.StudentID)
	if err != nil {
		log.Warn("fetch student failed", "err", err)
		metrics.AbsenceNotificationsTotal.WithLabelValues("error").Inc()
		return
	}
	day := model.DayFromMillis(msg.Date)

	// The record may have changed since the job was queued; only a
	// still-absent, still-unnotified record gets a message.
	rec, err := st.AttendanceByStudentAndDate(ctx, msg.StudentID, msg.Date)
	if err != nil || rec.Present || rec.Notified {
		log.Info("skipping stale absence job")
		metrics.AbsenceNotificationsTotal.WithLabelValues("stale").Inc()
		return
	}

	text := msg.Body
	if text == "" {
		text = fmt.Sprintf("Dear guardian, %s was absent on %s.", student.Name, day.Format("2006-01-02"))
	}
	if _, err := messenger.Send(ctx, student.GuardianMobile, text); err != nil {
		log.Warn("messenger send failed", "err", err)
		metrics.AbsenceNotificationsTotal.WithLabelValues("failed").Inc()
		notifier.Record(ctx, "Absence Alert Failed",
			fmt.Sprintf("Could not notify guardian of %s: %v", student.Name, err), notify.SeverityError)
		return
	}

	if err := att.MarkNotified(ctx, msg.StudentID, day, true); err != nil {
		log.Warn("marking record notified failed", "err", err)
		metrics.AbsenceNotificationsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.AbsenceNotificationsTotal.WithLabelValues("sent").Inc()
	notifier.Record(ctx, "Absence Alert Sent",
		fmt.Sprintf("Guardian of %s notified about the absence on %s.", student.Name, day.Format("2006-01-02")),
		notify.SeveritySuccess)
	log.Info("absence notification sent")
}
