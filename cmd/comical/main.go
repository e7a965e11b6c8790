package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/fx"

	rakuten "github.com/tigerroll/comical/pkg/batch/adapter/catalog/rakuten"
	gormadapter "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm"
	gormmysql "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm/mysql"
	gormpostgres "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm/postgres"
	gormsqlite "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm/sqlite"
	storage "github.com/tigerroll/comical/pkg/batch/adapter/storage"
	storagegcs "github.com/tigerroll/comical/pkg/batch/adapter/storage/gcs"
	storagelocal "github.com/tigerroll/comical/pkg/batch/adapter/storage/local"
	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	scheduler "github.com/tigerroll/comical/pkg/batch/engine/scheduler"
	inframetrics "github.com/tigerroll/comical/pkg/batch/infrastructure/metrics"
	migration "github.com/tigerroll/comical/pkg/batch/infrastructure/migration"
	sqlrepo "github.com/tigerroll/comical/pkg/batch/infrastructure/repository/sql"
	report "github.com/tigerroll/comical/pkg/batch/report"
	trigger "github.com/tigerroll/comical/pkg/batch/trigger"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary carries its defaults.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	jobFlag := flag.String("job", "", "job kind to run: registration or image_download")
	onceFlag := flag.Bool("once", false, "exit after the initial run instead of staying resident")
	flag.Parse()

	kind, err := job.ParseJobKind(*jobFlag)
	if err != nil {
		logger.Fatalf("Invalid -job flag: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	runApplication(ctx, kind, envFilePath, *onceFlag)
	os.Exit(0)
}

// runApplication assembles the worker with uber-fx and runs it until shutdown.
func runApplication(appCtx context.Context, kind job.JobKind, envFilePath string, once bool) {
	app := fx.New(
		fx.Supply(
			config.EmbeddedConfig(embeddedConfig),
			kind,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		logger.Module,
		config.Module,
		inframetrics.Module,

		gormpostgres.Module,
		gormmysql.Module,
		gormsqlite.Module,
		gormadapter.Module,

		storagelocal.Module,
		storagegcs.Module,
		storage.Module,

		rakuten.Module,
		sqlrepo.Module,
		migration.Module,

		service.Module,
		job.Module,
		scheduler.Module,
		report.Module,
		trigger.Module,

		fx.Invoke(fx.Annotate(startInitialRun(once), fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // driver *job.Driver
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startInitialRun launches one run of this worker's job when the application
// starts. In resident mode the process then keeps serving the trigger API and
// the resume scheduler; with -once it shuts down after the run.
func startInitialRun(once bool) func(fx.Lifecycle, fx.Shutdowner, *job.Driver, context.Context) {
	return func(lc fx.Lifecycle, shutdowner fx.Shutdowner, driver *job.Driver, appCtx context.Context) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					defer func() {
						if r := recover(); r != nil {
							logger.Errorf("Panic recovered in job execution: %v", r)
						}
						if once {
							logger.Infof("Requesting application shutdown after job completion.")
							if err := shutdowner.Shutdown(); err != nil {
								logger.Errorf("Failed to shutdown application: %v", err)
							}
						}
					}()

					logger.Infof("Starting initial %s run...", driver.Kind())
					if err := driver.Run(appCtx); err != nil {
						logger.Errorf("Initial %s run failed: %v", driver.Kind(), err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				logger.Infof("Application is shutting down.")
				return nil
			},
		})
	}
}
