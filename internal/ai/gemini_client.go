package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"github.com/jamolinav/ai-assist-attorney/internal/config"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/internal/telemetry"
)

// Message is one turn of a chat history.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// ChatModel produces a completion for a system prompt plus a chat history.
type ChatModel interface {
	Chat(ctx context.Context, system string, turns []Message) (string, error)
}

// unavailableAnswer is returned when Gemini is degraded and the breaker
// is open. The caller treats it as a normal answer, not an error.
const unavailableAnswer = "El servicio de análisis no está disponible en este momento. Por favor intente nuevamente en unos minutos."

// GeminiClient wraps the Gemini API with a circuit breaker and a
// client-side rate limiter shared between chat and embedding calls.
type GeminiClient struct {
	client      *genai.Client
	chatModel   string
	embedModel  string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGeminiClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	rps := cfg.GeminiRPS
	if rps <= 0 {
		rps = 1
	}

	return &GeminiClient{
		client:      client,
		chatModel:   cfg.GeminiChatModel,
		embedModel:  cfg.GoogleEmbeddingsModel,
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 2),
	}, nil
}

// Chat sends the history to the chat model and returns the model's text.
// When the breaker is open a fixed degraded-service answer is returned
// instead of an error.
func (gc *GeminiClient) Chat(ctx context.Context, system string, turns []Message) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.chat")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.chatModel),
		attribute.Int("gemini.turns", len(turns)),
	)

	if len(turns) == 0 {
		return "", fmt.Errorf("empty chat history")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.chatModel)
		model.SetTemperature(0.2)
		if system != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(system)},
			}
		}

		session := model.StartChat()
		for _, turn := range turns[:len(turns)-1] {
			role := "user"
			if turn.Role == "model" {
				role = "model"
			}
			session.History = append(session.History, &genai.Content{
				Role:  role,
				Parts: []genai.Part{genai.Text(turn.Content)},
			})
		}

		resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
		if err != nil {
			return nil, err
		}
		return responseText(resp), nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return unavailableAnswer, nil
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(string), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
