package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/davezuko/hardhat-pack/internal/build"
	"github.com/davezuko/hardhat-pack/internal/host"
	"github.com/davezuko/hardhat-pack/internal/lifetime"
	"github.com/davezuko/hardhat-pack/internal/logger"
	"github.com/davezuko/hardhat-pack/internal/plugin"
	"github.com/davezuko/hardhat-pack/pkg/api"
)

const envUsage = `environment variables exposed to the app as import.meta.env, as JSON (e.g. '{"API_URL":"http://localhost:8545"}')`

type options struct {
	configFile string
	logLevel   string
}

func (o *options) load(cmd *cobra.Command) (*api.Project, error) {
	return api.Load(api.LoadOptions{
		ConfigFile: o.configFile,
		LogLevel:   o.logLevel,
		Out:        cmd.OutOrStdout(),
		Err:        cmd.ErrOrStderr(),
	})
}

func runImpl(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "\n%s\n\n", err)
		return 1
	}
	return 0
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "pack",
		Short: "Run the Vite dev server, build and preview next to your contracts",
		Long: `pack runs a frontend's dev server, production build and preview server from
the same config file as the contracts it talks to.

Examples:
  # Scaffold a frontend in the current project
  pack init

  # Start the dev server with an env value the app can read
  pack vite --env '{"CONTRACT":"0x5FbDB2315678afecb367f032d93F642f64180aa3"}'

  # Build for production, then serve the output
  pack vite build
  pack vite preview`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "config file (default is hardhat.config.{yaml,yml,json}, can also use "+host.ConfigEnv+")")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (info, warn, error, silent), overrides vite.logLevel")

	root.AddCommand(
		viteCommand(o),
		serveCommand(o),
		buildCommand(o),
		previewCommand(o),
		configCommand(o),
		initCommand(),
	)
	return root
}

func addEnvFlag(fs *pflag.FlagSet, env *string) {
	fs.StringVar(env, "env", "{}", envUsage)
}

func parseEnv(s string) (any, error) {
	return host.JSON.Parse("env", s)
}

func viteCommand(o *options) *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   plugin.TaskVite + " [command]",
		Short: "Runs Vite commands (serve, build, preview)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseEnv(env)
			if err != nil {
				return err
			}
			p, err := o.load(cmd)
			if err != nil {
				return err
			}
			taskArgs := map[string]any{"env": parsed}
			if len(args) == 1 {
				taskArgs["command"] = args[0]
			}
			res, err := p.Run(cmd.Context(), plugin.TaskVite, taskArgs)
			if err != nil {
				return err
			}
			if out, ok := res.(*build.Output); ok {
				printOutput(cmd.OutOrStdout(), p, out)
			}
			return nil
		},
	}
	addEnvFlag(cmd.Flags(), &env)
	return cmd
}

type runningServer interface {
	HTTPServer() lifetime.Handle
	Close() error
}

// subtaskCommand runs a vite subtask. Servers it returns are kept running
// until they close or the command is interrupted.
func subtaskCommand(o *options, task, short string, done func(cmd *cobra.Command, p *api.Project, res any)) *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   task,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseEnv(env)
			if err != nil {
				return err
			}
			p, err := o.load(cmd)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), task, map[string]any{"env": parsed})
			if err != nil {
				return err
			}
			if done != nil {
				done(cmd, p, res)
			}
			if srv, ok := res.(runningServer); ok {
				return waitServer(cmd.Context(), srv)
			}
			return nil
		},
	}
	addEnvFlag(cmd.Flags(), &env)
	return cmd
}

func waitServer(ctx context.Context, srv runningServer) error {
	err := lifetime.WaitUntilClosed(ctx, srv.HTTPServer())
	if ctx.Err() != nil {
		srv.Close()
	}
	return err
}

func serveCommand(o *options) *cobra.Command {
	return subtaskCommand(o, plugin.TaskViteServe, "Starts the dev server", nil)
}

func buildCommand(o *options) *cobra.Command {
	return subtaskCommand(o, plugin.TaskViteBuild, "Builds the app for production", func(cmd *cobra.Command, p *api.Project, res any) {
		if out, ok := res.(*build.Output); ok {
			printOutput(cmd.OutOrStdout(), p, out)
		}
	})
}

func previewCommand(o *options) *cobra.Command {
	return subtaskCommand(o, plugin.TaskVitePreview, "Builds the app and serves the output", nil)
}

func printOutput(w io.Writer, p *api.Project, out *build.Output) {
	cfg := p.Config().Vite
	if level, err := logger.ParseLevel(cfg.LogLevelName()); err == nil && level > logger.LevelInfo {
		return
	}
	outDir, err := filepath.Rel(cfg.RootDir(), cfg.OutDirPath())
	if err != nil {
		outDir = cfg.OutDirPath()
	}
	for _, f := range out.Output {
		size := len(f.Code)
		if f.Type == build.TypeAsset {
			size = len(f.Source)
		}
		fmt.Fprintf(w, "%-40s %8.2f kB\n", filepath.ToSlash(filepath.Join(outDir, f.FileName)), float64(size)/1000)
	}
}

func configCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.load(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(p.Config()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func initCommand() *cobra.Command {
	var title string
	var force bool
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffolds a frontend (index.html, src/main.ts, public/)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := api.New(api.NewOptions{Path: dir, Title: title, Force: force}); err != nil {
				return fmt.Errorf("something went wrong while creating your frontend.\n\n  > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSuccess! Your frontend is ready to go.\n\n  cd %s && pack vite\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "page title (default is the directory name)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
