package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Dias221467/bladder/internal/config"
	"github.com/Dias221467/bladder/internal/database"
	"github.com/Dias221467/bladder/internal/handlers"
	"github.com/Dias221467/bladder/internal/jobs"
	"github.com/Dias221467/bladder/internal/repository"
	cron "github.com/Dias221467/bladder/internal/scheduler"
	"github.com/Dias221467/bladder/internal/services"
	"github.com/Dias221467/bladder/internal/socket"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel, cfg.LogFile)
	logger.Log.WithField("env", cfg.Environment).Info("Logger initialized")

	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(indexCtx, db); err != nil {
		logger.Log.WithError(err).Fatal("Failed to create indexes")
	}
	cancelIndexes()

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	markerRepo := repository.NewAreaMarkerRepository(db)

	// --- Realtime + push ---
	hub := socket.NewHub(middleware.SocketIdentity(cfg.JWTSecret))

	var sender services.MulticastSender
	if cfg.FirebaseCredentialsPath != "" {
		client, err := services.NewFirebaseMessaging(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			logger.Log.WithError(err).Error("Firebase init failed, push notifications disabled")
		} else {
			sender = client
		}
	} else {
		logger.Log.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set, push notifications disabled")
	}
	pushService := services.NewPushService(sender, userRepo)

	var google services.GoogleVerifier
	if cfg.GoogleClientID != "" {
		google = services.IDTokenVerifier{ClientID: cfg.GoogleClientID}
	}

	// --- Services ---
	userService := services.NewUserService(userRepo)
	authService := services.NewAuthService(userRepo, google, cfg.JWTSecret, cfg.TokenExpiry)
	friendService := services.NewFriendService(friendRepo, userRepo)
	markerService := services.NewAreaMarkerService(markerRepo, hub)
	notificationService := services.NewNotificationService(hub, pushService)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, cfg.TokenExpiry)
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService, userService, notificationService)
	markerHandler := handlers.NewAreaMarkerHandler(markerService)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware, middleware.PrometheusMiddleware, middleware.AuthMiddleware(cfg.JWTSecret))
	requireAuth := chain(middleware.RequireAuth(cfg.GuestMode), middleware.UpdateLastActiveMiddleware(userService))

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/socket", hub.ServeWS)

	api := router.PathPrefix("/api").Subrouter()

	authHandler.RegisterRoutes(api.PathPrefix("/auth").Subrouter())

	userRoutes := api.PathPrefix("/user").Subrouter()
	userRoutes.Use(requireAuth)
	userHandler.RegisterRoutes(userRoutes)

	friendRoutes := api.PathPrefix("/friend-request").Subrouter()
	friendRoutes.Use(requireAuth)
	friendHandler.RegisterRoutes(friendRoutes)

	markerHandler.RegisterRoutes(api.PathPrefix("/area-marker").Subrouter(), requireAuth)

	var handler http.Handler = router
	if cfg.IsProduction() {
		router.PathPrefix("/").Handler(spaHandler(cfg.StaticDir)).Methods(http.MethodGet)
	} else {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		})
		handler = c.Handler(router)
	}

	// --- Jobs ---
	reconciler := jobs.NewFriendshipReconciler(friendRepo, userRepo)
	scheduler, err := cron.StartReconcileCronJobs(reconciler, cfg.ReconcileSchedule)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid reconcile schedule")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Log.Info("Shutting down")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Graceful shutdown failed")
	}
	if err := db.Client().Disconnect(ctx); err != nil {
		logger.Log.WithError(err).Warn("MongoDB disconnect failed")
	}
}

// chain applies outer first, then inner.
func chain(outer, inner mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return outer(inner(next))
	}
}

// spaHandler serves files from dir and falls back to index.html for unknown paths.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
