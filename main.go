package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"framebooth/capture"
	"framebooth/config"
	boothHandlers "framebooth/handlers/api/booth"
	removebgHandlers "framebooth/handlers/api/removebg"
	templateHandlers "framebooth/handlers/api/templates"
	"framebooth/removebg"
	"framebooth/stores"
)

func buildRouter(cfg *config.Config) *chi.Mux {
	store := stores.GetStore(cfg)
	bgClient := removebg.NewClient(cfg.RemoveBGURL)
	boothManager := boothHandlers.NewManager(capture.Config{
		CountdownFrom:     cfg.CaptureCountdownFrom,
		CountdownInterval: cfg.CaptureTickInterval,
		InterShotDelay:    cfg.CaptureInterShotWait,
		FrameTimeout:      cfg.CaptureFrameTimeout,
		MinimumShots:      cfg.CaptureMinimumShots,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", templateHandlers.HandleList(store))
		r.Post("/", templateHandlers.HandleSave(store))
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", templateHandlers.HandleGet(store))
			r.Put("/", templateHandlers.HandleSave(store))
			r.Delete("/", templateHandlers.HandleDelete(store))
			r.Post("/overlay", templateHandlers.HandleOverlay(store))
			r.Post("/compose", templateHandlers.HandleCompose(store))
		})
	})

	r.Post("/api/remove-background", removebgHandlers.HandleRemove(bgClient))

	// The share link: /booth/{slug} is the public capture experience, the
	// socket underneath drives the session.
	r.Get("/booth/{slug}/ws", boothManager.HandleWS(store))

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	listenAddress := flag.String("listen", cfg.ListenAddr, "The address to listen on.")
	logLevel := flag.String("loglevel", cfg.LogLevel, "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	r := buildRouter(cfg)

	server := &http.Server{Addr: *listenAddress, Handler: r}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit

	logrus.Info("Shutting down...")
	if err := server.Close(); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
}
