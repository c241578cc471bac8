package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/college-timetable-api/api/swagger"
	internalhandler "github.com/noah-isme/college-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/college-timetable-api/internal/middleware"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/cache"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/database"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

// @title College Timetable API
// @version 0.1.0
// @description Constraint-aware weekly timetable generation service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	metricsHandler := internalhandler.NewMetricsHandler(metricsSvc)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise database", "error", err)
	}
	defer db.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	policy := models.SchedulingPolicy{
		ReserveThursdayFirst: cfg.Scheduler.ReserveThursdayFirst,
		RestrictTutorials:    cfg.Scheduler.RestrictTutorials,
	}

	branchRepo := repository.NewBranchRepository(db)
	sectionRepo := repository.NewYearSectionRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	labroomRepo := repository.NewLabRoomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("timetable cache disabled", "error", err)
	} else {
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.CacheTTL, logr)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "college-timetable-api",
	})
	timetableSvc := service.NewTimetableService(versionRepo, entryRepo, sectionRepo, cacheSvc, logr)
	generatorSvc := service.NewGeneratorService(subjectRepo, sectionRepo, versionRepo, entryRepo, metricsSvc, logr, service.GeneratorConfig{
		Timeout:      cfg.Scheduler.Timeout,
		AttemptLimit: cfg.Scheduler.AttemptLimit,
		Policy:       policy,
	})
	versionSvc := service.NewVersionService(versionRepo, logr)
	editSvc := service.NewEditService(versionRepo, entryRepo, sectionRepo, subjectRepo, timetableSvc, policy, nil, logr)
	reportSvc := service.NewReportService(versionRepo, entryRepo, subjectRepo, catalogRepo, policy, logr)
	ingestSvc := service.NewIngestService(branchRepo, sectionRepo, facultyRepo, classroomRepo, labroomRepo, subjectRepo, logr)
	catalogSvc := service.NewCatalogService(branchRepo, facultyRepo, classroomRepo, labroomRepo, subjectRepo)

	authHandler := internalhandler.NewAuthHandler(authSvc)
	timetableHandler := internalhandler.NewTimetableHandler(generatorSvc, timetableSvc, reportSvc, versionSvc)
	entryHandler := internalhandler.NewEntryHandler(editSvc)
	versionHandler := internalhandler.NewVersionHandler(versionSvc, timetableSvc)
	uploadHandler := internalhandler.NewUploadHandler(ingestSvc)
	catalogHandler := internalhandler.NewCatalogHandler(catalogSvc)

	var exportHandler *internalhandler.ExportHandler
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(
			versionRepo, entryRepo, subjectRepo, sectionRepo,
			branchRepo, facultyRepo, classroomRepo, labroomRepo,
			fileStore, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix},
			logr,
		)
		queueCfg := jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		}
		queueCtx, cancel := context.WithCancel(context.Background())
		exportQueue := jobs.NewQueue("exports", exportSvc.Handle, queueCfg)
		exportQueue.Start(queueCtx)
		defer func() {
			cancel()
			exportQueue.Stop()
		}()
		exportSvc.AttachQueue(exportQueue)
		exportHandler = internalhandler.NewExportHandler(exportSvc)
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	readers := internalmiddleware.RBAC(models.RoleViewer, models.RoleAdmin)
	admins := internalmiddleware.RBAC(models.RoleAdmin)

	secured.GET("/timetable", readers, timetableHandler.Get)
	secured.GET("/timetable/statistics", readers, timetableHandler.Statistics)
	secured.GET("/timetable/:branch/:year/:section", readers, timetableHandler.GetCohort)
	secured.POST("/timetable/generate", admins, timetableHandler.Generate)
	secured.POST("/timetable/reshuffle", admins, timetableHandler.Reshuffle)
	secured.POST("/timetable/validate", admins, timetableHandler.Validate)
	secured.DELETE("/timetable/clear", admins, timetableHandler.Clear)

	secured.GET("/versions", readers, versionHandler.List)
	secured.POST("/versions/:id/activate", admins, versionHandler.Activate)
	secured.DELETE("/versions/:id", admins, versionHandler.Delete)

	entries := secured.Group("/entries", admins)
	entries.POST("/lock", entryHandler.Lock)
	entries.POST("/move", entryHandler.Move)
	entries.POST("/swap", entryHandler.Swap)
	entries.POST("/assign", entryHandler.Assign)

	uploads := secured.Group("/upload", admins)
	uploads.POST("/master", uploadHandler.Master)
	uploads.POST("/assignment", uploadHandler.Assignment)

	catalog := secured.Group("/catalog", readers)
	catalog.GET("/branches", catalogHandler.Branches)
	catalog.GET("/faculty", catalogHandler.Faculty)
	catalog.GET("/classrooms", catalogHandler.Classrooms)
	catalog.GET("/labrooms", catalogHandler.LabRooms)
	catalog.GET("/subjects", catalogHandler.Subjects)

	if exportHandler != nil {
		secured.POST("/export", admins, exportHandler.Create)
		secured.GET("/export/status/:id", readers, exportHandler.Status)
		secured.GET("/export/download/:token", readers, exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
