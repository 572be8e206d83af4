package main

import (
	"context"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/handlers"
	"casewatch/api_outliers/internal/notify"
	"casewatch/api_outliers/internal/pipeline"
	"casewatch/pkg/config"
	"casewatch/pkg/logging"
	"casewatch/pkg/monitoring"
	"casewatch/pkg/server"
	"casewatch/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("outliers")
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())

	port := config.GetEnv("PORT", "18040")
	notifyConfig := notify.LoadConfig()

	healthChecker := monitoring.NewHealthChecker("outliers", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("outliers", version.Version, version.GitCommit)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(notifyConfig.RequiredSettings()))

	notifyMetrics := &notify.Metrics{
		Notifications: metricsCollector.NewCounter("notifications_total", "Notification attempts by channel and outcome", []string{"channel", "status"}),
	}
	dispatchDuration := metricsCollector.NewHistogram("dispatch_duration_seconds", "Time spent notifying all channels for one upload",
		nil, []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120})
	pipelineMetrics := &pipeline.Metrics{
		Uploads:          metricsCollector.NewCounter("uploads_total", "Processed uploads by outcome", []string{"status"}),
		FlaggedCases:     metricsCollector.NewCounter("flagged_cases_total", "Cases above the outlier threshold", nil).WithLabelValues(),
		DispatchDuration: dispatchDuration.WithLabelValues(),
	}
	uploadMetrics := &handlers.UploadMetrics{
		ProcessRequests: metricsCollector.NewCounter("process_requests_total", "Upload requests by outcome", []string{"status"}),
	}

	dispatcher, err := notify.NewDispatcherFromConfig(context.Background(), notifyConfig, logger, notifyMetrics)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure notification channels")
	}

	service := pipeline.NewService(pipeline.Config{
		Threshold:  cases.Threshold,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    pipelineMetrics,
	})

	app := server.SetupServiceRouter(logger, "outliers", healthChecker, metricsCollector)
	app.SetHTMLTemplate(handlers.Templates())

	processHandler := handlers.NewProcessHandler(service, logger, uploadMetrics)
	processHandler.Register(app)

	serverConfig := server.DefaultConfig("outliers", port)
	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.Fatal(err.Error())
	}
}
