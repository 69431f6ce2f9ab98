package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/gestao-escolar/escola-api/api/swagger"
	"github.com/gestao-escolar/escola-api/internal/handler"
	"github.com/gestao-escolar/escola-api/internal/middleware"
	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	"github.com/gestao-escolar/escola-api/internal/service"
	"github.com/gestao-escolar/escola-api/pkg/cache"
	"github.com/gestao-escolar/escola-api/pkg/config"
	"github.com/gestao-escolar/escola-api/pkg/database"
	"github.com/gestao-escolar/escola-api/pkg/logger"
	corsmiddleware "github.com/gestao-escolar/escola-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gestao-escolar/escola-api/pkg/middleware/requestid"
)

// @title Escola API
// @version 1.0.0
// @description Academic roster and record consistency engine for municipal schools
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, gradebook cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	schoolRepo := repository.NewSchoolRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)
	scopeRepo := repository.NewScopeRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)
	scopeSvc := service.NewScopeService(scopeRepo, teacherRepo, logr)
	matriculaSvc := service.NewMatriculaService(studentRepo, cfg.Matricula, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, schoolRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, schoolRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, enrollmentRepo, schoolRepo, matriculaSvc, metricsSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, validate, logr)
	rosterSvc := service.NewRosterService(enrollmentRepo, rosterRepo, classRepo, subjectRepo, teacherRepo, studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, classRepo, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, classRepo, rosterRepo, cacheRepo, metricsSvc, cfg.Grades, cfg.Gradebook, validate, logr)
	occurrenceSvc := service.NewOccurrenceService(occurrenceRepo, studentRepo, validate, logr)
	exportSvc := service.NewExportService(gradeSvc, attendanceSvc, nil, nil, logr)

	// Handlers.
	schoolHandler := handler.NewSchoolHandler(schoolSvc, scopeSvc)
	classHandler := handler.NewClassHandler(classSvc, rosterSvc, scopeSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc, scopeSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, scopeSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc, scopeSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(rosterSvc, attendanceSvc, scopeSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc, scopeSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, scopeSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, scopeSvc)
	occurrenceHandler := handler.NewOccurrenceHandler(occurrenceSvc, scopeSvc)
	exportHandler := handler.NewExportHandler(exportSvc, scopeSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleAdmin, models.RoleManager}
	ledger := []models.UserRole{models.RoleAdmin, models.RoleManager, models.RoleTeacher}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		schools := api.Group("/schools")
		{
			schools.GET("", middleware.RequireRoles(ledger...), schoolHandler.List)
			schools.GET("/:id", middleware.RequireRoles(ledger...), schoolHandler.Get)
			schools.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "create", "school"), schoolHandler.Create)
			schools.PUT("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "update", "school"), schoolHandler.Update)
			schools.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "delete", "school"), schoolHandler.Delete)
		}

		classes := api.Group("/classes")
		{
			classes.GET("", middleware.RequireRoles(ledger...), classHandler.List)
			classes.GET("/:id", middleware.RequireRoles(ledger...), classHandler.Get)
			classes.POST("", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "create", "class"), classHandler.Create)
			classes.PUT("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "update", "class"), classHandler.Update)
			classes.DELETE("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "delete", "class"), classHandler.Delete)

			classes.GET("/:id/subjects", middleware.RequireRoles(ledger...), rosterHandler.ListOffers)
			classes.POST("/:id/subjects", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "offer", "class_subject"), rosterHandler.OfferSubject)
			classes.DELETE("/:id/subjects/:subjectId", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "withdraw", "class_subject"), rosterHandler.WithdrawOffer)
			classes.POST("/:id/teachers", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "assign", "teacher_subject"), rosterHandler.AssignTeacher)
			classes.DELETE("/:id/teachers/:teacherId", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "unlink", "teacher_class"), rosterHandler.RemoveTeacher)

			classes.GET("/:id/attendance", middleware.RequireRoles(ledger...), attendanceHandler.Sheet)
			classes.POST("/:id/attendance", middleware.RequireRoles(ledger...), middleware.Audit(userRepo, "record", "attendance"), attendanceHandler.Record)
			classes.POST("/:id/grades", middleware.RequireRoles(ledger...), middleware.Audit(userRepo, "record", "grades"), gradeHandler.Record)
			classes.GET("/:id/gradebook", middleware.RequireRoles(ledger...), gradeHandler.Gradebook)
			if cfg.Exports.Enabled {
				classes.GET("/:id/gradebook/export", middleware.RequireRoles(ledger...), exportHandler.Gradebook)
				classes.GET("/:id/attendance/export", middleware.RequireRoles(ledger...), exportHandler.AttendanceSheet)
			}
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", middleware.RequireRoles(ledger...), subjectHandler.List)
			subjects.GET("/:id", middleware.RequireRoles(ledger...), subjectHandler.Get)
			subjects.POST("", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "create", "subject"), subjectHandler.Create)
			subjects.PUT("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "update", "subject"), subjectHandler.Update)
			subjects.DELETE("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "delete", "subject"), subjectHandler.Delete)
		}

		students := api.Group("/students")
		{
			students.GET("", middleware.RequireRoles(ledger...), studentHandler.List)
			students.GET("/:id", middleware.RequireRoles(ledger...), studentHandler.Get)
			students.POST("", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "create", "student"), studentHandler.Create)
			students.PUT("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "update", "student"), studentHandler.Update)
			students.DELETE("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "withdraw", "student"), studentHandler.Withdraw)

			students.GET("/:id/occurrences", middleware.RequireRoles(ledger...), occurrenceHandler.ListByStudent)
			students.POST("/:id/occurrences", middleware.RequireRoles(ledger...), middleware.Audit(userRepo, "create", "occurrence"), occurrenceHandler.Create)
		}

		teachers := api.Group("/teachers")
		{
			teachers.GET("", middleware.RequireRoles(ledger...), teacherHandler.List)
			teachers.GET("/:id", middleware.RequireRoles(ledger...), teacherHandler.Get)
			teachers.POST("", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "create", "teacher"), teacherHandler.Create)
			teachers.PUT("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "update", "teacher"), teacherHandler.Update)
			teachers.DELETE("/:id", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "delete", "teacher"), teacherHandler.Delete)
		}

		enrollments := api.Group("/enrollments")
		{
			enrollments.POST("", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "enroll", "enrollment"), enrollmentHandler.Enroll)
			enrollments.PUT("/:id/transfer", middleware.RequireRoles(staff...), middleware.Audit(userRepo, "transfer", "enrollment"), enrollmentHandler.Transfer)
			enrollments.GET("/:id/attendance", middleware.RequireRoles(ledger...), enrollmentHandler.AttendanceHistory)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
