package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/altlab/recval/internal/audio"
	"github.com/altlab/recval/internal/cleanup"
	"github.com/altlab/recval/internal/extract"
	"github.com/altlab/recval/internal/handlers"
	"github.com/altlab/recval/internal/metadata"
	"github.com/altlab/recval/internal/pipeline"
	"github.com/altlab/recval/internal/queue"
	"github.com/altlab/recval/internal/store"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Storage struct {
		Database      string `yaml:"database"`
		BlobDir       string `yaml:"blob_dir"`
		TranscodedDir string `yaml:"transcoded_dir"`
		TempDir       string `yaml:"temp_dir"`
		MetadataCSV   string `yaml:"metadata_csv"`
	} `yaml:"storage"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
	} `yaml:"google_drive"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	configPath := os.Getenv("RECVAL_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch os.Args[1] {
	case "extract":
		if len(os.Args) < 3 {
			log.Fatal("usage: recval extract <sessions-dir>")
		}
		runExtract(config, os.Args[2])
	case "serve":
		runServe(config)
	case "metadata":
		runMetadata(config)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recval <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  extract <dir>  scan a session tree and import phrases")
	fmt.Fprintln(os.Stderr, "  serve          start the validation API server")
	fmt.Fprintln(os.Stderr, "  metadata       download the master recordings metadata sheet")
}

// runExtract scans a directory of recording sessions and imports every
// extractable phrase into the store.
func runExtract(config *Config, root string) {
	st, err := store.Open(config.Storage.Database, config.Storage.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := os.MkdirAll(config.Storage.TranscodedDir, 0755); err != nil {
		log.Fatalf("Failed to create transcoded directory: %v", err)
	}

	speakers := map[string]string{}
	if config.Storage.MetadataCSV != "" {
		speakers, err = metadata.LoadSpeakerCodes(config.Storage.MetadataCSV)
		if err != nil {
			log.Printf("WARNING: speaker metadata not available: %v", err)
			speakers = map[string]string{}
		} else {
			log.Printf("Loaded speaker codes for %d sessions", len(speakers))
		}
	}

	pool := queue.NewWorkerPool(config.Workers.Count, &audio.FFmpegTranscoder{})
	pool.Start()

	pipe := pipeline.New(st, pool, config.Storage.TranscodedDir, log.Default(), nil)
	scanner := extract.NewScanner(pipe.HandleSession, speakers, log.Default())

	if err := scanner.Scan(root); err != nil {
		log.Fatalf("Scan aborted: %v", err)
	}

	log.Println("Waiting for transcode jobs to finish...")
	pool.Drain()

	fmt.Print(pipe.Report(scanner.Stats))
}

// runServe starts the HTTP API over an already-populated store.
func runServe(config *Config) {
	st, err := store.Open(config.Storage.Database, config.Storage.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	scheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		time.Duration(config.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(config.Cleanup.MaxAgeHours)*time.Hour,
		log.Default(),
	)
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	searchHandler := handlers.NewSearchHandler(st)
	audioHandler := handlers.NewAudioHandler(config.Storage.TranscodedDir)
	phraseHandler := handlers.NewPhraseHandler(st)
	progressHub := handlers.NewProgressHub()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Get("/recording/_search/:query", searchHandler.Handle)

	// Kick off an extraction run in the background; progress streams
	// over the websocket feed.
	var extracting sync.Mutex
	app.Post("/extract", func(c *fiber.Ctx) error {
		var req struct {
			Dir string `json:"dir"`
		}
		if err := c.BodyParser(&req); err != nil || req.Dir == "" {
			return c.Status(400).JSON(fiber.Map{"error": "dir is required", "code": "ERR_NO_DIR"})
		}
		if !extracting.TryLock() {
			return c.Status(409).JSON(fiber.Map{"error": "extraction already running", "code": "ERR_BUSY"})
		}

		go func() {
			defer extracting.Unlock()

			pool := queue.NewWorkerPool(config.Workers.Count, &audio.FFmpegTranscoder{})
			pool.Start()

			speakers, err := metadata.LoadSpeakerCodes(config.Storage.MetadataCSV)
			if err != nil {
				speakers = nil
			}

			pipe := pipeline.New(st, pool, config.Storage.TranscodedDir, log.Default(), progressHub.Publish)
			sc := extract.NewScanner(pipe.HandleSession, speakers, log.Default())
			if err := sc.Scan(req.Dir); err != nil {
				log.Printf("extraction failed: %v", err)
			}
			pool.Drain()
			log.Print(pipe.Report(sc.Stats))
		}()
		return c.Status(202).JSON(fiber.Map{"status": "started", "dir": req.Dir})
	})
	app.Get("/audio/:file", audioHandler.Handle)
	app.Get("/phrases/:id/history", phraseHandler.History)
	app.Patch("/phrases/:id", phraseHandler.Update)
	app.Get("/ws/progress", websocket.New(progressHub.Handle))

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// runMetadata downloads the master recordings metadata sheet as CSV.
func runMetadata(config *Config) {
	ctx := context.Background()

	client, err := metadata.NewDriveClient(
		ctx,
		config.GoogleDrive.CredentialsFile,
		config.GoogleDrive.TokenFile,
	)
	if err != nil {
		log.Fatalf("Failed to initialize Google Drive: %v", err)
	}

	dest := config.Storage.MetadataCSV
	if dest == "" {
		dest = "etc/metadata.csv"
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		log.Fatalf("Failed to create metadata directory: %v", err)
	}

	if err := client.ExportCSV(metadata.MasterRecordingsSheetID, dest); err != nil {
		log.Fatalf("Failed to export metadata: %v", err)
	}
	log.Printf("Metadata written to %s", dest)
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
