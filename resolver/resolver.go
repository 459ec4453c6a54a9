// Package resolver validates and resolves caller-supplied context variables
// against a graph's declared context configuration before a run starts.
// Fields backed by a credential reference are materialized through the
// injected credential capability so downstream code never sees raw
// references. Defaults apply on a conversation's first turn only; continuing
// turns inherit the previously resolved values cached on the conversation
// row unless the caller supplies them explicitly. Credential-derived values
// are re-resolved every run and never cached.
package resolver

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/credential"
	"github.com/hupe1980/agentgraph/logging"
)

// FieldSpec declares one context variable of a graph.
type FieldSpec struct {
	// Type is the expected JSON type ("string", "number", "integer",
	// "boolean", "object", "array"). Empty accepts any type.
	Type string `json:"type,omitempty"`
	// Required fields must be present after defaults and inheritance.
	Required bool `json:"required,omitempty"`
	// Default applies on the conversation's first turn only.
	Default any `json:"default,omitempty"`
	// Rules is a go-playground/validator expression evaluated against the
	// resolved value, e.g. "min=1,max=64" or "oneof=de en fr".
	Rules string `json:"rules,omitempty"`
	// CredentialRef names a secret to materialize into this field. Fields
	// with a credential reference never come from the caller.
	CredentialRef string `json:"credential_ref,omitempty"`
	Description   string `json:"description,omitempty"`
}

// ContextConfig is the declared context schema a graph may reference.
type ContextConfig struct {
	ID     string               `json:"id"`
	Fields map[string]FieldSpec `json:"fields"`
}

// Options configures a Resolver.
type Options struct {
	// Credentials resolves credential references. Defaults to an empty
	// in-memory store, failing any credential-backed field.
	Credentials credential.Resolver
	Logger      logging.Logger
}

// Resolver resolves run context bindings. Safe for concurrent use.
type Resolver struct {
	mu            sync.RWMutex
	configs       map[string]*ContextConfig
	conversations core.ConversationStore
	messages      core.MessageStore
	credentials   credential.Resolver
	validate      *validator.Validate
	logger        logging.Logger
}

// NewResolver constructs a Resolver over the given stores.
func NewResolver(conversations core.ConversationStore, messages core.MessageStore, optFns ...func(o *Options)) *Resolver {
	opts := Options{
		Credentials: credential.NewInMemoryStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resolver{
		configs:       map[string]*ContextConfig{},
		conversations: conversations,
		messages:      messages,
		credentials:   opts.Credentials,
		validate:      validator.New(),
		logger:        opts.Logger,
	}
}

// RegisterConfig registers a context configuration, replacing any previous
// one with the same id.
func (r *Resolver) RegisterConfig(cfg *ContextConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
}

// Config returns the registered configuration for id.
func (r *Resolver) Config(id string) (*ContextConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Resolve produces the run's validated context bindings. Schema violations
// come back as core.ValidationErrors, a client error; the run must not
// start. With no declared configuration the request context passes through
// unchanged.
func (r *Resolver) Resolve(ctx context.Context, g *core.Graph, conversationID string, requestContext map[string]any) (map[string]any, error) {
	if g.ContextConfigID == "" {
		out := map[string]any{}
		maps.Copy(out, requestContext)
		return out, nil
	}
	cfg, ok := r.Config(g.ContextConfigID)
	if !ok {
		return nil, fmt.Errorf("graph %s references unknown context config %q", g.ID, g.ContextConfigID)
	}

	count, err := r.messages.Count(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	firstTurn := count == 0

	var inherited map[string]any
	if !firstTurn {
		conv, err := r.conversations.Get(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		inherited = conv.Metadata.ResolvedContext
	}

	resolved := map[string]any{}
	var violations core.ValidationErrors
	for name, spec := range cfg.Fields {
		if spec.CredentialRef != "" {
			secret, err := r.credentials.Resolve(ctx, spec.CredentialRef)
			if err != nil {
				return nil, fmt.Errorf("resolve credential for field %q: %w", name, err)
			}
			resolved[name] = secret
			continue
		}

		value, present := requestContext[name]
		if !present {
			if firstTurn {
				if spec.Default != nil {
					value, present = spec.Default, true
				}
			} else if v, ok := inherited[name]; ok {
				value, present = v, true
			}
		}
		if !present {
			if spec.Required {
				violations = append(violations, core.ValidationError{Field: name, Message: "required field is missing"})
			}
			continue
		}
		if spec.Type != "" && !matchesType(value, spec.Type) {
			violations = append(violations, core.ValidationError{Field: name, Message: fmt.Sprintf("expected type %s, got %T", spec.Type, value)})
			continue
		}
		if spec.Rules != "" {
			if err := r.validate.Var(value, spec.Rules); err != nil {
				violations = append(violations, core.ValidationError{Field: name, Message: fmt.Sprintf("value violates rule %q", spec.Rules)})
				continue
			}
		}
		resolved[name] = value
	}
	if len(violations) > 0 {
		return nil, violations
	}

	if err := r.cacheResolved(ctx, conversationID, cfg, resolved); err != nil {
		// Cache write failures degrade carry-forward but not this run.
		r.logger.Warn("failed to cache resolved context", "conversation_id", conversationID, "error", err)
	}
	return resolved, nil
}

// cacheResolved persists non-credential resolved values on the conversation
// row for carry-forward on continuing turns.
func (r *Resolver) cacheResolved(ctx context.Context, conversationID string, cfg *ContextConfig, resolved map[string]any) error {
	conv, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	cached := map[string]any{}
	for name, value := range resolved {
		if spec, ok := cfg.Fields[name]; ok && spec.CredentialRef != "" {
			continue
		}
		cached[name] = value
	}
	conv.Metadata.ResolvedContext = cached
	return r.conversations.Update(ctx, conv)
}

func matchesType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}
