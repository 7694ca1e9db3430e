package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classify"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

type config struct {
	Addr          string `env:"MUDRA_ADDR" envDefault:":8080"`
	CameraID      int    `env:"MUDRA_CAMERA_ID" envDefault:"0"`
	ClassifierURL string `env:"MUDRA_CLASSIFIER_URL" envDefault:"http://127.0.0.1:5000"`
	TargetSign    string `env:"MUDRA_TARGET_SIGN"`
	ShowUI        bool   `env:"MUDRA_SHOW_UI" envDefault:"true"`
	DataDir       string `env:"MUDRA_DATA_DIR"`
}

func main() {
	fmt.Println("Mudra - Sign Language Practice")

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, ".mudra")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "mudra.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	targetSign := cfg.TargetSign
	if targetSign == "" {
		if saved, err := st.Settings().Get(store.SettingTargetSign); err == nil {
			targetSign = saved
		}
	}

	classifier := classify.New(cfg.ClassifierURL)
	camera := capture.NewCamera(cfg.CameraID)

	// Try MediaPipe first, fall back to mock detector
	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		det = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		det = detector.NewMockDetector()
	}

	t := tray.New()

	controller := session.New(session.Config{
		Camera:        camera,
		Detector:      det,
		Classifier:    classifier,
		TargetSign:    targetSign,
		ShowUI:        cfg.ShowUI,
		CameraID:      cfg.CameraID,
		ClassifierURL: cfg.ClassifierURL,
		Callbacks: session.Callbacks{
			OnReady: func() {
				t.SetStatus("running")
			},
			OnSignDetected: func(sign string, det session.Detection) {
				t.SetLastSign(sign)
			},
			OnError: func(cls *session.ClassifiedError) {
				t.SetStatus("error")
				log.Printf("%s: %v", cls.Title, cls.Err)
			},
		},
	})

	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: controller,
		Classifier: classifier,
	})
	defer srv.Close()

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	t.OnToggle(func(practicing bool) {
		if practicing {
			if err := controller.Start(); err != nil {
				log.Printf("start session: %v", err)
			}
		} else {
			controller.Stop()
			t.SetStatus("stopped")
		}
	})
	t.OnOpen(func() {
		fmt.Printf("Practice view: http://localhost%s\n", cfg.Addr)
	})
	t.OnQuit(func() {
		controller.Stop()
	})

	// Blocks until Quit is selected from the tray menu.
	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
