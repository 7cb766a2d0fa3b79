package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"propertysanta/engine/internal/appdirs"
	"propertysanta/engine/internal/engine"
	"propertysanta/engine/internal/envfile"
	"propertysanta/engine/internal/envutil"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/mcptools"
)

func main() {
	// .env may itself move the data dir, so the default location is only a fallback.
	defaultDir, _ := appdirs.DataDir()
	envResult := envfile.Load(defaultDir)
	debug := envutil.Bool(envutil.DebugEnv)
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Fatalf("mcp init failed: %v", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, "mcp", debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "mcp")
	if envResult.Err != nil {
		logger.Warn("mcp.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("mcp.log_setup_failed", "error", logErr.Error())
	}
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	eng, err := engine.New(engine.WithLogger(logger), engine.WithDataDir(dataDir))
	if err != nil {
		logger.Error("mcp.engine_init_failed", "error", err.Error())
		log.Fatalf("engine init failed: %v", err)
	}
	defer eng.Close()

	s := server.NewMCPServer("propertysanta", engine.EngineVersion, server.WithToolCapabilities(false))
	mcptools.Register(s, eng)
	logger.Info("mcp.serving", "data_dir", dataDir)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp.serve_failed", "error", err.Error())
		log.Fatalf("mcp server error: %v", err)
	}
}
