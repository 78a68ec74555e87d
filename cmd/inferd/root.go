package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/logging"
)

// rootOptions are the persistent flags shared by every subcommand. Flags
// override the config file and INFERD_* variables.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	modelsDir  string
	backend    string
	backendURL string
	model      string
	template   string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Local LLM inference runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", os.Getenv("INFERD_CONFIG"), "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&o.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	pf.StringVar(&o.backend, "backend", "", "Backend kind: local|llama|openai|ollama")
	pf.StringVar(&o.backendURL, "backend-url", "", "Base URL of a remote backend")
	pf.StringVarP(&o.model, "model", "m", "", "Model file (local) or model name (remote)")
	pf.StringVar(&o.template, "template", "", "Prompt template; empty infers it from the model name")

	root.AddCommand(newServeCmd(o), newChatCmd(o), newModelsCmd(o), newFormatsCmd())
	return root
}

// applyFlags copies the flags the user set onto cfg.
func (o *rootOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name, v string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = v
		}
	}
	set("log-level", o.logLevel, &cfg.Log.Level)
	set("log-format", o.logFormat, &cfg.Log.Format)
	set("models-dir", o.modelsDir, &cfg.ModelsDir)
	set("backend", o.backend, &cfg.Backend.Kind)
	set("backend-url", o.backendURL, &cfg.Backend.URL)
	set("model", o.model, &cfg.Backend.Model)
	set("template", o.template, &cfg.Agent.Template)
}

// resolve builds the effective Config: file, then environment, then flags,
// then defaults.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
		cfg = c
	}
	cfg, err := config.ApplyEnv(cfg)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	o.applyFlags(cmd, &cfg)
	cfg = config.Defaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()), nil
}

// reapply puts the flags back on top of a reloaded Config so a file edit
// does not undo them.
func (o *rootOptions) reapply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	o.applyFlags(cmd, &cfg)
	return cfg, config.Validate(cfg)
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
