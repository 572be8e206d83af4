package pipeline

import (
	"context"
	"io"
	"time"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/notify"
	"casewatch/pkg/logging"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, records []cases.CaseRecord) notify.Report
}

// Outcome is everything one upload produced.
type Outcome struct {
	RowsScanned int                `json:"rows_scanned" yaml:"rows_scanned"`
	Threshold   float64            `json:"threshold" yaml:"threshold"`
	Cases       []cases.CaseRecord `json:"cases" yaml:"cases"`
	Report      notify.Report      `json:"notifications" yaml:"notifications"`
}

type Service struct {
	threshold  float64
	dispatcher Dispatcher
	logger     logging.Logger
	metrics    *Metrics
}

type Config struct {
	Threshold float64
	// Dispatcher may be nil, in which case Process only extracts outliers.
	Dispatcher Dispatcher
	Logger     logging.Logger
	Metrics    *Metrics
}

func NewService(cfg Config) *Service {
	return &Service{
		threshold:  cfg.Threshold,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Process parses one CSV upload, extracts the outlier cases and notifies
// every configured channel about them. Parse and schema failures are returned
// before any notification is attempted.
func (s *Service) Process(ctx context.Context, r io.Reader) (*Outcome, error) {
	table, err := cases.Load(r)
	if err != nil {
		s.metrics.IncUpload(uploadStatus(err))
		return nil, err
	}

	records, err := cases.Extract(table, s.threshold)
	if err != nil {
		s.metrics.IncUpload(uploadStatus(err))
		s.logger.WithFields(logging.Fields{
			"rows":  len(table.Rows),
			"error": err.Error(),
		}).Warn("Rejected case upload")
		return nil, err
	}

	outcome := &Outcome{
		RowsScanned: len(table.Rows),
		Threshold:   s.threshold,
		Cases:       records,
		Report:      notify.Report{Webhook: []notify.NotificationResult{}},
	}
	if len(records) > 0 && s.dispatcher != nil {
		start := time.Now()
		outcome.Report = s.dispatcher.Dispatch(ctx, records)
		s.metrics.ObserveDispatch(time.Since(start))
	}

	s.metrics.IncUpload("processed")
	s.metrics.AddFlagged(len(records))
	s.logger.WithFields(logging.Fields{
		"rows":     outcome.RowsScanned,
		"outliers": len(records),
	}).Info("Processed case upload")

	return outcome, nil
}

func uploadStatus(err error) string {
	if cases.IsInputError(err) {
		return "invalid"
	}
	return "error"
}
