// Package plugin registers the vite tasks with the host and decides how long
// each of them keeps the host alive.
package plugin

import (
	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/host"
)

const (
	TaskVite        = "vite"
	TaskViteServe   = "vite:serve"
	TaskViteBuild   = "vite:build"
	TaskVitePreview = "vite:preview"
)

// Command selects what the vite task runs.
type Command uint8

const (
	CommandServe Command = iota
	CommandDev
	CommandBuild
	CommandPreview
)

func (c Command) String() string {
	switch c {
	case CommandDev:
		return "dev"
	case CommandBuild:
		return "build"
	case CommandPreview:
		return "preview"
	default:
		return "serve"
	}
}

// ParseCommand matches exactly. Anything else, including nil, is serve.
func ParseCommand(v any) Command {
	s, _ := v.(string)
	switch s {
	case "dev":
		return CommandDev
	case "build":
		return CommandBuild
	case "preview":
		return CommandPreview
	default:
		return CommandServe
	}
}

// EnvOverrides are the per-invocation values exposed as import.meta.env.
type EnvOverrides map[string]any

// envFrom reads the env argument. Anything that is not an object means no
// overrides.
func envFrom(args host.Args) EnvOverrides {
	switch v := args["env"].(type) {
	case EnvOverrides:
		return v
	case map[string]any:
		return v
	case string:
		parsed, err := host.JSON.Parse("env", v)
		if err != nil {
			return nil
		}
		m, _ := parsed.(map[string]any)
		return m
	default:
		return nil
	}
}

// ExtendConfig resolves the vite section of the user config onto the host
// config.
func ExtendConfig(cfg *host.Config, user *host.UserConfig) {
	cfg.Vite = config.Resolve(config.HostPaths{
		Root:  cfg.Paths.Root,
		Cache: cfg.Paths.Cache,
	}, user.Vite)
}

// Register defines the vite tasks on tasks, backed by engine.
func Register(tasks *host.Registry, engine Engine) {
	r := &runners{engine: engine}

	tasks.Task(TaskVite, "Runs Vite commands in the context of Hardhat", r.vite).
		AddOptionalPositionalParam("command", "The Vite command to run (serve, build, preview)", nil, host.String).
		AddOptionalParam("env", "Environment variables to expose to the app, as JSON", map[string]any{}, host.JSON)

	tasks.Subtask(TaskViteServe, "Starts the Vite dev server", r.serve).
		AddOptionalParam("env", "Environment variables to expose to the app, as JSON", map[string]any{}, host.JSON)

	tasks.Subtask(TaskViteBuild, "Builds the app for production", r.build).
		AddOptionalParam("env", "Environment variables to expose to the app, as JSON", map[string]any{}, host.JSON)

	tasks.Subtask(TaskVitePreview, "Builds the app and serves the output", r.preview).
		AddOptionalParam("env", "Environment variables to expose to the app, as JSON", map[string]any{}, host.JSON)
}
