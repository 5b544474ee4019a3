package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/easylabel/easylabel-backend/annotate"
	"github.com/easylabel/easylabel-backend/config"
	"github.com/easylabel/easylabel-backend/database"
	"github.com/easylabel/easylabel-backend/handlers"
	"github.com/easylabel/easylabel-backend/objectstore"
	"github.com/easylabel/easylabel-backend/repository"
	"github.com/easylabel/easylabel-backend/viewstate"
	"github.com/easylabel/easylabel-backend/workflow"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.StoragePath, cfg.ArchivesPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get sql.DB handle: %v", err)
	}
	defer sqlDB.Close()

	store, err := objectstore.NewLocalObjectStore(cfg.StoragePath, cfg.BaseURL, []byte(cfg.URLSigningSecret))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize object store: %v", err)
	}

	engine, err := annotate.NewEngine(cfg.EASTModelPath, cfg.OCRLanguage)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize OCR engine: %v", err)
	}
	defer engine.Close()

	imageRepo := repository.NewImageRepository(db)
	annotationRepo := repository.NewAnnotationRepository(db)
	userRepo := repository.NewUserRepository(db)

	machine := workflow.NewMachine(imageRepo)
	views := viewstate.NewManager()

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing objects in: %s (bucket %s)", cfg.StoragePath, cfg.Bucket)
	log.Printf("Storing export archives in: %s", cfg.ArchivesPath)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	authHandler := handlers.NewAuthHandler(userRepo, []byte(cfg.JWTSecret))
	projectHandler := handlers.NewProjectHandler(sqlDB)
	imageHandler := &handlers.ImageHandler{
		Cfg: cfg, Store: store, ImageRepo: imageRepo, DB: sqlDB,
		Machine: machine, Views: views,
	}
	annotationHandler := &handlers.AnnotationHandler{
		Cfg: cfg, Store: store, ImageRepo: imageRepo,
		AnnotationRepo: annotationRepo, Engine: engine,
	}
	exportHandler := &handlers.ExportHandler{
		Cfg: cfg, Store: store, ImageRepo: imageRepo, AnnotationRepo: annotationRepo,
	}
	viewHandler := &handlers.ViewHandler{Views: views, ImageRepo: imageRepo}
	fileHandler := &handlers.FileHandler{Store: store}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Group(func(r chi.Router) {
				r.Use(handlers.AuthMiddleware(userRepo, []byte(cfg.JWTSecret)))
				r.Get("/me", authHandler.CurrentUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(userRepo, []byte(cfg.JWTSecret)))

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.ListMine)
				r.Get("/shared", projectHandler.ListShared)
				r.Post("/", projectHandler.Create)
				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/progress", projectHandler.Progress)
					r.Get("/users", projectHandler.Uploaders)
				})
			})

			r.Route("/images", func(r chi.Router) {
				r.Post("/", imageHandler.Upload)
				r.Get("/", imageHandler.List)
				r.Delete("/", imageHandler.Delete)
				r.Get("/working", imageHandler.WorkingSet)
				r.Put("/status", imageHandler.TransitionBulk)
				r.Route("/{imageID}", func(r chi.Router) {
					r.Put("/status", imageHandler.Transition)
					r.Route("/annotations", func(r chi.Router) {
						r.Get("/", annotationHandler.Get)
						r.Put("/", annotationHandler.Put)
						r.Post("/detect", annotationHandler.Detect)
						r.Post("/ocr", annotationHandler.OCR)
					})
				})
			})

			r.Get("/view", viewHandler.Get)
			r.Put("/view", viewHandler.Put)

			r.Get("/permissions", handlers.ListPermissions)

			r.Post("/export", exportHandler.Create)
		})

		r.Get("/files/{bucket}/*", fileHandler.Serve)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
