package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/http"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/llm"
	boltstore "github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/bolt"
	firestorestore "github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/firestore"
	memstore "github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/memory"
	redisstore "github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/redis"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/chatlog"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/conversation"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/config"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/observability"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logCloser := observability.Setup(observability.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFilePath,
	})
	defer logCloser.Close()

	logger := observability.WithFields("service", "chat-api")

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("error initializing LLM client: %v", err)
	}

	table, err := newTable(ctx, cfg)
	if err != nil {
		log.Fatalf("error initializing %s storage: %v", cfg.StorageBackend, err)
	}
	defer table.Close()

	// Conversation Service
	var opts []conversation.Option
	if cfg.SerializeSends {
		opts = append(opts, conversation.WithSerializedSends())
	}
	svc := conversation.NewService(completer, chatlog.NewStore(table), opts...)

	// HTTP server
	handler := httpadapter.NewServer(svc)

	addr := ":" + cfg.Port
	logger.Info("chat API listening",
		"addr", addr,
		"llm_provider", cfg.LLMProvider,
		"storage_backend", cfg.StorageBackend,
	)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server stopped", "error", err)
	}
}

func newCompleter(ctx context.Context, cfg *config.Config) (domain.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderMock:
		observability.Logger().Info("using mock LLM client")
		return llm.NewMockLLM(), nil

	case config.ProviderVertex:
		observability.Logger().Info("using Vertex LLM client", "project", cfg.GCPProjectID, "model", cfg.Vertex.Model)
		return llm.NewVertexClient(ctx, llm.VertexConfig{
			ProjectID:  cfg.GCPProjectID,
			Location:   cfg.Vertex.Location,
			ModelName:  cfg.Vertex.Model,
			MaxRetries: cfg.Retry.MaxRetries,
			Backoff:    llm.NewBackoff(cfg.Retry.BackoffBase, cfg.Retry.BackoffCap),
		})

	default:
		observability.Logger().Info("using Groq LLM client", "model", cfg.Groq.Model)
		return llm.NewGroqClient(cfg.Groq.APIKey,
			llm.WithURL(cfg.Groq.URL),
			llm.WithModel(cfg.Groq.Model),
			llm.WithTimeout(cfg.Groq.Timeout),
			llm.WithMaxRetries(cfg.Retry.MaxRetries),
			llm.WithBackoff(llm.NewBackoff(cfg.Retry.BackoffBase, cfg.Retry.BackoffCap)),
		)
	}
}

func newTable(ctx context.Context, cfg *config.Config) (domain.Table, error) {
	switch cfg.StorageBackend {
	case "bolt":
		observability.Logger().Info("using bbolt storage", "path", cfg.BoltPath)
		return boltstore.Open(cfg.BoltPath, cfg.Table)
	case "redis":
		observability.Logger().Info("using redis storage", "table", cfg.Table)
		return redisstore.Open(ctx, cfg.RedisURL, cfg.Table)
	case "firestore":
		observability.Logger().Info("using Firestore storage", "project", cfg.GCPProjectID, "collection", cfg.Table)
		return firestorestore.NewTable(ctx, cfg.GCPProjectID, cfg.Table)
	default:
		observability.Logger().Info("using in-memory storage")
		return memstore.NewTable(), nil
	}
}
