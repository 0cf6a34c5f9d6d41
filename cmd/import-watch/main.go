package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-backend/config"
	"catalog-backend/logger"
	"catalog-backend/models"
	"catalog-backend/poller"
	"catalog-backend/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	usage = `usage: import-watch [-api URL] [-token T] [-interval 2s] <watch|cancel|pause|resume> <job-id>`

	operatorTokenTTL = time.Hour
)

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadEnv()

	api := flag.String("api", config.GetEnv("IMPORT_API_URL", "http://localhost:8080"), "base URL of the catalog API")
	token := flag.String("token", os.Getenv("IMPORT_API_TOKEN"), "admin bearer token; signed locally from JWT_SECRET when empty")
	interval := flag.Duration("interval", poller.DefaultInterval, "poll interval")
	level := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.NewEntry(logger.New(*level, "text"))

	if flag.NArg() != 2 {
		flag.Usage()
		return 2
	}
	command := flag.Arg(0)
	id, err := uuid.Parse(flag.Arg(1))
	if err != nil {
		log.Errorf("Invalid job id %q: %v", flag.Arg(1), err)
		return 2
	}

	bearer, err := operatorToken(*token)
	if err != nil {
		log.WithError(err).Error("Could not issue an operator token")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := poller.NewClient(*api, bearer)
	controls := poller.Controls{Controller: client}

	switch command {
	case "watch":
		return watch(ctx, client, id, *interval, log)
	case "cancel":
		err = controls.CancelImport(ctx, id)
	case "pause":
		err = controls.PauseImport(ctx, id)
	case "resume":
		err = controls.ResumeImport(ctx, id)
	default:
		flag.Usage()
		return 2
	}
	if err != nil {
		log.WithError(err).Errorf("Could not %s import %s", command, id)
		return 1
	}
	log.WithField("job_id", id).Infof("Import %s requested", command)
	return 0
}

// operatorToken returns the given token, or signs a short-lived admin token
// when the shared secret is available. An empty result sends no Authorization.
func operatorToken(given string) (string, error) {
	if given != "" || os.Getenv("JWT_SECRET") == "" {
		return given, nil
	}
	return utils.GenerateToken(uuid.Nil, "import-watch@localhost", "admin", operatorTokenTTL)
}

func watch(ctx context.Context, source poller.JobStatusSource, id uuid.UUID, interval time.Duration, log *logrus.Entry) int {
	p := poller.New(source, interval, log)

	final, err := p.Watch(ctx, id, func(u poller.Update) {
		fields := logrus.Fields{
			"status":    u.Job.Status,
			"processed": fmt.Sprintf("%d/%d", u.Job.ProcessedProducts, u.Job.TotalProducts),
			"progress":  fmt.Sprintf("%.1f%%", u.Metrics.Progress),
			"success":   u.Job.SuccessCount,
			"errors":    u.Job.ErrorCount,
			"rate":      fmt.Sprintf("%.1f/s", u.Metrics.Rate),
			"elapsed":   poller.FormatDuration(u.Metrics.Elapsed),
		}
		if u.Metrics.HasETA {
			fields["eta"] = poller.FormatDuration(u.Metrics.ETA)
		}
		log.WithFields(fields).Info("Import progress")
	})
	if err != nil {
		log.WithError(err).Error("Stopped watching import")
		return 1
	}

	for _, e := range final.ErrorLog {
		log.WithFields(logrus.Fields{"row": e.Row, "product": e.Product, "details": e.Details}).Warn(e.Error)
	}

	switch final.Status {
	case models.ImportStatusCompleted:
		return 0
	case models.ImportStatusCancelled:
		return 3
	default:
		return 1
	}
}
