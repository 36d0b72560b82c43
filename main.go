package main

import (
	"flag"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"multicarrier-stego/audio"
	"multicarrier-stego/carrier"
	"multicarrier-stego/config"
	"multicarrier-stego/handlers"
	"multicarrier-stego/img"
	"multicarrier-stego/metrics"
	"multicarrier-stego/runner"
	"multicarrier-stego/video"
)

func main() {
	configPath := flag.String("config", os.Getenv("STEGO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ffmpeg := video.NewFFmpegAdapter(cfg.FFmpeg)
	if err := ffmpeg.Available(); err != nil {
		log.Printf("⚠ %v; compressed video carriers will be rejected", err)
	} else {
		log.Printf("✓ ffmpeg found and ready for video carriers")
	}

	registry := newRegistry(cfg, ffmpeg)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	stegoRunner, err := runner.New(registry, cfg.LSBBits, m)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	if handled, err := runCommand(stegoRunner, flag.Args()); handled {
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{
		"X-Stego-PSNR", "X-Stego-Carriers", "X-Stego-Operation",
		"X-Stego-Missing", "X-Stego-Failed-Carriers", "Content-Disposition",
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	stegoHandler := handlers.NewStegoHandler(stegoRunner, registry, cfg)
	stegoHandler.Register(router.Group("/api/v1"))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("API endpoints:")
	log.Printf("  POST /api/v1/stego/distribute - Split a secret file across carriers (returns zip of stego carriers)")
	log.Printf("  POST /api/v1/stego/reassemble - Rebuild the secret file from stego carriers")
	log.Printf("  POST /api/v1/stego/capacity   - Report how much each carrier can hold")
	log.Printf("  GET  /api/v1/health           - Health check")
	log.Printf("  GET  /metrics                 - Prometheus metrics")
	log.Printf("Defaults: lsb_bits=%d, mp3_mode=%s, max upload %d MB", cfg.LSBBits, cfg.MP3Mode, cfg.MaxUploadMB)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newRegistry(cfg *config.Config, ffmpeg *video.FFmpegAdapter) *carrier.Registry {
	registry := carrier.NewRegistry(
		audio.NewWAVAdapter(),
		audio.NewFLACAdapter(),
	)
	if cfg.MP3Mode == config.MP3ModeAncillary {
		registry.Register(audio.NewMP3AncillaryAdapter())
	} else {
		registry.Register(audio.NewMP3Adapter())
	}
	for _, a := range img.All() {
		registry.Register(a)
	}
	registry.Register(video.NewY4MAdapter())
	registry.Register(ffmpeg)
	return registry
}
