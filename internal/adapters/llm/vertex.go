package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

const DefaultVertexModel = "gemini-2.5-flash"

type VertexClient struct {
	client    *genai.Client
	modelName string
	retry     retrier
}

var _ domain.Completer = (*VertexClient)(nil)

// VertexConfig selects the project, region and model. Zero retry settings use the defaults.
type VertexConfig struct {
	ProjectID  string
	Location   string
	ModelName  string
	MaxRetries int
	Backoff    Backoff
}

// NewVertexClient creates a Completer backed by Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, &domain.ConfigError{Setting: "CHAT_GCP_PROJECT/CHAT_GCP_LOCATION", Reason: "must be set"}
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultVertexModel
	}
	if cfg.Backoff.Base == 0 && cfg.Backoff.Cap == 0 {
		cfg.Backoff = NewBackoff(DefaultBackoffBase, DefaultBackoffCap)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: cfg.ModelName,
		retry: retrier{
			provider:   "vertex",
			maxRetries: max(cfg.MaxRetries, 0),
			backoff:    cfg.Backoff,
		},
	}, nil
}

// Complete implements domain.Completer using Vertex AI.
func (v *VertexClient) Complete(ctx context.Context, history []domain.ChatMessage) (domain.Completion, error) {
	contents := toContents(history)

	return v.retry.do(ctx, func(ctx context.Context) attemptOutcome {
		res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, nil)
		if err != nil {
			return classifyVertexError(ctx, err)
		}
		// only the text; an empty candidate list is an empty reply
		return succeeded(domain.Completion{Content: res.Text()})
	})
}

func toContents(history []domain.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role
		switch m.Role {
		case domain.RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func classifyVertexError(ctx context.Context, err error) attemptOutcome {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		perr := &domain.ProviderError{
			Status:    apiErr.Code,
			Message:   apiErr.Message,
			Transient: IsTransientStatus(apiErr.Code),
			Err:       err,
		}
		if perr.Transient {
			return retryable(perr)
		}
		return terminal(perr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return terminal(ctxErr)
	}
	return retryable(&domain.ProviderError{Transient: true, Err: fmt.Errorf("vertex generate content: %w", err)})
}
