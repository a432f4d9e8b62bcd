// Command agentserver is the CRM agent's composition root: it wires the
// Mongo-backed cache and checkpoint stores, the CRM HTTP client and tool
// registry, a rate-limited LLM client, and the ReAct executor behind an
// Orchestrator, then exposes that Orchestrator over a small JSON HTTP API.
// The streaming endpoint publishes its events to a Pulse stream and answers
// the HTTP request with a single JSON body once the turn ends.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	sdkopenai "github.com/sashabaranov/go-openai"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"
	"goa.design/pulse/rmap"

	cachemongo "github.com/datapilot-ai/agentcore/features/cache/mongo"
	cacheclient "github.com/datapilot-ai/agentcore/features/cache/mongo/clients/mongo"
	checkpointmongo "github.com/datapilot-ai/agentcore/features/checkpoint/mongo"
	checkpointclient "github.com/datapilot-ai/agentcore/features/checkpoint/mongo/clients/mongo"
	crmhttp "github.com/datapilot-ai/agentcore/features/crm/http"
	"github.com/datapilot-ai/agentcore/features/model/anthropic"
	"github.com/datapilot-ai/agentcore/features/model/middleware"
	"github.com/datapilot-ai/agentcore/features/model/openai"
	pulsesink "github.com/datapilot-ai/agentcore/features/stream/pulse"
	pulseclient "github.com/datapilot-ai/agentcore/features/stream/pulse/clients/pulse"
	"github.com/datapilot-ai/agentcore/internal/config"
	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	agentmodel "github.com/datapilot-ai/agentcore/runtime/agent/model"
	"github.com/datapilot-ai/agentcore/runtime/agent/orchestrator"
	"github.com/datapilot-ai/agentcore/runtime/agent/telemetry"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools/crm"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx = log.Context(ctx, log.WithFormat(format))

	if err := run(ctx); err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewClueLogger()

	mongoClient, err := mongodriver.Connect(ctx, options.Client().ApplyURI(envOr("MONGO_URI", "mongodb://localhost:27017")))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoClient.Disconnect(ctx)

	redisClient := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	defer redisClient.Close()

	cacheStore, err := buildCacheStore(mongoClient)
	if err != nil {
		return fmt.Errorf("build cache store: %w", err)
	}

	checkpointStore, err := buildCheckpointStore(mongoClient)
	if err != nil {
		return fmt.Errorf("build checkpoint store: %w", err)
	}

	crmClient, err := crmhttp.New(crmhttp.Options{
		BaseURL: envOr("CRM_BASE_URL", ""),
		TokenForConnection: func(_ context.Context, connectionID string) (string, error) {
			token := os.Getenv("CRM_TOKEN_" + connectionID)
			if token == "" {
				return "", fmt.Errorf("no CRM token configured for connection %q", connectionID)
			}
			return token, nil
		},
	})
	if err != nil {
		return fmt.Errorf("build crm client: %w", err)
	}
	registry := crm.New(crmClient, cacheStore)

	modelClient, err := buildModelClient(ctx, redisClient, cfg)
	if err != nil {
		return fmt.Errorf("build model client: %w", err)
	}

	exec := executor.New(modelClient, registry, executor.Caps{
		ObjectLimit: cfg.MetadataMaxObjects,
		FieldLimit:  cfg.MetadataMaxFieldsPerObject,
		QueryLimit:  cfg.QueryDefaultLimit,
		QueryMax:    cfg.QueryMaxLimit,
	}, cfg.TaskTimeout, logger)
	exec.ModelName = cfg.LLMModelName
	exec.Temperature = float32(cfg.LLMTemperature)
	exec.MaxTokens = cfg.LLMMaxTokens

	orch := orchestrator.New(checkpointStore, exec, cfg.ReactMaxSteps, cfg.ReactHighConfidenceThreshold, logger)

	pulseCli, err := pulseclient.New(pulseclient.Options{Redis: redisClient})
	if err != nil {
		return fmt.Errorf("build pulse client: %w", err)
	}

	srv := &server{orch: orch, pulse: pulseCli, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/invoke", srv.handleInvoke)
	mux.HandleFunc("POST /v1/invoke/stream", srv.handleInvokeStream)

	httpSrv := &http.Server{Addr: envOr("LISTEN_ADDR", ":8080"), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Print(ctx, log.KV{K: "event", V: "agentserver listening"}, log.KV{K: "addr", V: httpSrv.Addr})
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func buildCacheStore(mongoClient *mongodriver.Client) (*cachemongo.Store, error) {
	cli, err := cacheclient.New(cacheclient.Options{
		Client:   mongoClient,
		Database: envOr("MONGO_DATABASE", "agentcore"),
	})
	if err != nil {
		return nil, err
	}
	return cachemongo.NewStore(cli)
}

func buildCheckpointStore(mongoClient *mongodriver.Client) (*checkpointmongo.Store, error) {
	cli, err := checkpointclient.New(checkpointclient.Options{
		Client:   mongoClient,
		Database: envOr("MONGO_DATABASE", "agentcore"),
	})
	if err != nil {
		return nil, err
	}
	return checkpointmongo.NewStore(cli)
}

// buildModelClient builds the model.Client named by LLM_PROVIDER and wraps it
// with the cluster-aware adaptive rate limiter. anthropic goes through the
// native Anthropic Messages adapter; openai, groq, and ollama all speak the
// OpenAI Chat Completions wire format, so those three go through the same
// adapter, with groq and ollama additionally requiring LLM_BASE_URL to point
// at their OpenAI-compatible endpoint instead of api.openai.com.
func buildModelClient(ctx context.Context, redisClient *redis.Client, cfg config.Config) (agentmodel.Client, error) {
	base, err := newProviderClient(cfg)
	if err != nil {
		return nil, err
	}

	rmapClient, err := rmap.Join(ctx, "agentserver-rate-limit", redisClient)
	if err != nil {
		return nil, fmt.Errorf("join rate limit rmap: %w", err)
	}
	limiter := middleware.NewAdaptiveRateLimiter(ctx, rmapClient, "llm-tpm", 60_000, 120_000)
	return limiter.Middleware()(base), nil
}

func newProviderClient(cfg config.Config) (agentmodel.Client, error) {
	if cfg.LLMProvider == config.LLMProviderAnthropic {
		return anthropic.NewFromAPIKey(cfg.LLMAPIKey, cfg.LLMModelName)
	}

	chatClient := sdkopenai.NewClient(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		oaiCfg := sdkopenai.DefaultConfig(cfg.LLMAPIKey)
		oaiCfg.BaseURL = cfg.LLMBaseURL
		chatClient = sdkopenai.NewClientWithConfig(oaiCfg)
	}
	return openai.New(openai.Options{
		Client:       chatClient,
		DefaultModel: cfg.LLMModelName,
		Temperature:  cfg.LLMTemperature,
		MaxTokens:    cfg.LLMMaxTokens,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type server struct {
	orch   *orchestrator.Orchestrator
	pulse  pulseclient.Client
	logger telemetry.Logger
}

type invokeRequest struct {
	UserInput      string `json:"user_input"`
	ConnectionID   string `json:"connection_id"`
	ConversationID string `json:"conversation_id"`
	NewThread      bool   `json:"new_thread"`
}

type invokeResponse struct {
	ConversationID     string `json:"conversation_id"`
	FinalText          string `json:"final_text,omitempty"`
	StructuredResponse any    `json:"structured_response,omitempty"`
}

func (s *server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.orch.Invoke(r.Context(), req.UserInput, req.ConnectionID, req.ConversationID, req.NewThread)
	if err != nil {
		s.logger.Error(r.Context(), "invoke failed", "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := invokeResponse{
		ConversationID:     result.State.Meta.ConversationID,
		FinalText:          result.FinalText,
		StructuredResponse: result.StructuredResponse,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handleInvokeStream(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sink, err := pulsesink.NewSink(pulsesink.Options{Client: s.pulse})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	state, err := s.orch.InvokeStream(r.Context(), req.UserInput, req.ConnectionID, req.ConversationID, req.NewThread, sink)
	if err != nil {
		s.logger.Error(r.Context(), "invoke stream failed", "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(invokeResponse{
		ConversationID:     state.Meta.ConversationID,
		FinalText:          state.Response.Content,
		StructuredResponse: state.StructuredResponse,
	})
}
