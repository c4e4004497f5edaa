// FilePath: cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/logging"
	"github.com/bakerysensors/hub/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

// @title Sensor Hub API
// @version 1.0
// @description SensorPush telemetry polling, history and retention.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Monitoring.LogLevel); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Sync()
	nuts.L.Infof("[Main] Starting Sensor Hub Server v%s", nuts.GetVersion())

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		logging.Sync()
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"   _____                            __  __      __  ",
		"  / ___/___  ____  _________  _____/ / / /_  __/ /_ ",
		"  \\__ \\/ _ \\/ __ \\/ ___/ __ \\/ ___/ /_/ / / / / __ \\",
		" ___/ /  __/ / / (__  ) /_/ / /  / __  / /_/ / /_/ /",
		"/____/\\___/_/ /_/____/\\____/_/  /_/ /_/\\__,_/_.___/ ",
		"..................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
