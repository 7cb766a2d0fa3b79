package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"propertysanta/engine/internal/appdirs"
	"propertysanta/engine/internal/engine"
	"propertysanta/engine/internal/envfile"
	"propertysanta/engine/internal/envutil"
	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/rpc"
)

func main() {
	// .env may itself move the data dir, so the default location is only a fallback.
	defaultDir, _ := appdirs.DataDir()
	envResult := envfile.Load(defaultDir)
	debug := envutil.Bool(envutil.DebugEnv)
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, "engine", debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "engine")
	if logSetup.Enabled {
		logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Keys, "kept", envResult.Kept, "skipped", envResult.Skipped)
	}
	if envResult.Err != nil {
		logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	eng, err := engine.New(engine.WithLogger(logger), engine.WithDataDir(dataDir))
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		log.Fatalf("engine init failed: %v", err)
	}
	defer eng.Close()
	server := rpc.NewServer(engine.APIVersion, os.Stdin, os.Stdout, logger)
	eng.SetNotifier(server.Notify)

	wrap := func(fn func(context.Context, json.RawMessage) (any, *errinfo.ErrorInfo)) rpc.Handler {
		return func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
			result, errInfo := fn(ctx, params)
			if errInfo != nil {
				msg := errInfo.ErrorCode
				if errInfo.Detail != "" {
					msg = errInfo.Detail
				}
				return nil, &rpc.Error{Message: msg, Data: errInfo}
			}
			return result, nil
		}
	}
	register := func(method string, fn func(context.Context, json.RawMessage) (any, *errinfo.ErrorInfo)) {
		server.Register(method, wrap(fn))
	}
	// Job methods run one at a time per job_id, in arrival order.
	registerJob := func(method string, fn func(context.Context, json.RawMessage) (any, *errinfo.ErrorInfo)) {
		server.RegisterOrdered(method, "job_id", wrap(fn))
	}

	register("EngineGetInfo", eng.EngineGetInfo)
	register("ProvidersGetStatus", eng.ProvidersGetStatus)
	register("ProvidersSetApiKey", eng.ProvidersSetApiKey)
	register("ProvidersClearApiKey", eng.ProvidersClearApiKey)
	register("ProvidersValidate", eng.ProvidersValidate)
	register("SettingsGet", eng.SettingsGet)
	register("SettingsSetModel", eng.SettingsSetModel)
	register("PropertiesList", eng.PropertiesList)
	register("IntentClassify", eng.IntentClassify)

	registerJob("JobStart", eng.JobStart)
	registerJob("JobSendEvent", eng.JobSendEvent)
	registerJob("JobGetState", eng.JobGetState)
	registerJob("JobGetChatHistory", eng.JobGetChatHistory)
	registerJob("JobReset", eng.JobReset)
	registerJob("JobRedoRoom", eng.JobRedoRoom)
	registerJob("JobGetSummary", eng.JobGetSummary)
	registerJob("JobClose", eng.JobClose)

	register("ArchiveListJobs", eng.ArchiveListJobs)
	register("ArchiveGetJob", eng.ArchiveGetJob)
	register("ArchiveGetPhoto", eng.ArchiveGetPhoto)

	if err := server.Serve(context.Background()); err != nil {
		logger.Error("rpc.server_error", "error", err.Error())
		log.Fatalf("rpc server error: %v", err)
	}
}
