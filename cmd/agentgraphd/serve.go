package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentgraph/config"
	"github.com/hupe1980/agentgraph/conversation"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/credential"
	"github.com/hupe1980/agentgraph/engine"
	"github.com/hupe1980/agentgraph/model"
	anthropicmodel "github.com/hupe1980/agentgraph/model/anthropic"
	openaimodel "github.com/hupe1980/agentgraph/model/openai"
	"github.com/hupe1980/agentgraph/resolver"
	"github.com/hupe1980/agentgraph/server"
)

// credentialEnvPrefix namespaces the environment variables credential
// references resolve against.
const credentialEnvPrefix = "AGENTGRAPH_SECRET_"

// definitions is the on-disk shape of the graph definitions file.
type definitions struct {
	Graphs         []*core.Graph             `json:"graphs"`
	ContextConfigs []*resolver.ContextConfig `json:"context_configs"`
}

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	Graphs string `arg:"" type:"existingfile" help:"Path to the graph definitions file"`
}

// Run wires the full service and blocks on the listener.
func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cli.LogLevel)

	defs, err := loadDefinitions(c.Graphs)
	if err != nil {
		return err
	}

	var store interface {
		core.ConversationStore
		core.MessageStore
	}
	if cfg.Store.SQLitePath != "" {
		sqlStore, err := conversation.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
		logger.Info("using sqlite store", "path", cfg.Store.SQLitePath)
	} else {
		store = conversation.NewInMemoryStore()
		logger.Warn("using in-memory store, conversations will not survive restarts")
	}

	stepFn, err := buildStepFunction(cfg.Model)
	if err != nil {
		return err
	}

	eng := engine.New(func(o *engine.Options) {
		o.StepFn = stepFn
		o.Conversations = store
		o.Messages = store
		o.Resolver = resolver.NewResolver(store, store, func(ro *resolver.Options) {
			ro.Credentials = credential.NewEnvStore(credentialEnvPrefix)
			ro.Logger = logger
		})
		o.Logger = logger
	})

	for _, cc := range defs.ContextConfigs {
		eng.Resolver().RegisterConfig(cc)
	}
	for _, g := range defs.Graphs {
		if err := eng.RegisterGraph(g); err != nil {
			return fmt.Errorf("register graph %q: %w", g.ID, err)
		}
		logger.Info("registered graph", "graph_id", g.ID, "agents", len(g.Agents))
	}

	srv := server.New(eng, func(o *server.Options) {
		o.Logger = logger
		o.ServerName = cfg.App.Name
	})

	logger.Info("listening", "addr", cfg.Server.Addr())
	return http.ListenAndServe(cfg.Server.Addr(), srv.Routes())
}

// ValidateCmd checks a graph definitions file without starting the server.
type ValidateCmd struct {
	Graphs string `arg:"" type:"existingfile" help:"Path to the graph definitions file"`
}

// Run validates every graph in the file.
func (c *ValidateCmd) Run(cli *CLI) error {
	defs, err := loadDefinitions(c.Graphs)
	if err != nil {
		return err
	}
	for _, g := range defs.Graphs {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("graph %q: %w", g.ID, err)
		}
	}
	fmt.Printf("%d graph(s), %d context config(s) OK\n", len(defs.Graphs), len(defs.ContextConfigs))
	return nil
}

func loadDefinitions(path string) (*definitions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var defs definitions
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	if len(defs.Graphs) == 0 {
		return nil, fmt.Errorf("definitions file declares no graphs")
	}
	return &defs, nil
}

func buildStepFunction(cfg config.ModelConfig) (core.StepFunction, error) {
	var m model.Model
	switch cfg.Provider {
	case "openai":
		m = openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.OpenAIKey
		})
	case "anthropic":
		m = anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Name != "" {
				o.Model = anthropic.Model(cfg.Name)
			}
			o.APIKey = cfg.AnthropicKey
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
	return model.NewStepRunner(m), nil
}
