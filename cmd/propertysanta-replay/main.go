package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"propertysanta/engine/internal/engine"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/replay"
	"propertysanta/engine/internal/settings"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to the YAML scenario to replay")
	dataDir := flag.String("data", "", "engine data directory (defaults to a temporary directory)")
	fake := flag.Bool("fake", true, "use the in-process fake model instead of a real provider")
	providerID := flag.String("provider", settings.ProviderGoogle, "provider to configure when -key is set")
	apiKey := flag.String("key", "", "API key to store for -provider before replaying")
	debug := flag.Bool("debug", false, "log engine activity to stderr")
	flag.Parse()

	if strings.TrimSpace(*scenarioPath) == "" {
		die("--scenario is required")
	}
	sc, err := replay.Load(*scenarioPath)
	if err != nil {
		die("load scenario: %v", err)
	}

	dir := *dataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "propertysanta-replay-")
		if err != nil {
			die("create data dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	if *fake {
		if err := os.Setenv(engine.FakeModelEnv, "1"); err != nil {
			die("enable fake model: %v", err)
		}
		if *apiKey == "" {
			*apiKey = "replay-key"
		}
	}

	logger := logging.Nop()
	if *debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	opts := []engine.Option{engine.WithDataDir(dir), engine.WithLogger(logger)}
	if sc.Property != nil {
		src, err := property.NewMemorySource(*sc.Property)
		if err != nil {
			die("scenario property: %v", err)
		}
		opts = append(opts, engine.WithProperties(src))
	}
	eng, err := engine.New(opts...)
	if err != nil {
		die("engine init: %v", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *apiKey != "" {
		params, _ := json.Marshal(map[string]string{"provider_id": *providerID, "api_key": *apiKey})
		if _, errInfo := eng.ProvidersSetApiKey(ctx, params); errInfo != nil {
			die("store api key: %s %s", errInfo.ErrorCode, errInfo.Detail)
		}
	}

	report, err := replay.Run(ctx, eng, sc)
	if err != nil {
		die("replay: %v", err)
	}
	fmt.Print(renderReport(report))
	if report.Failed() > 0 {
		os.Exit(1)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
