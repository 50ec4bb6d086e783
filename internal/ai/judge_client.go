package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"soup-server/internal/config"
	"soup-server/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	judgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soup_server_judge_requests_total",
			Help: "Total number of requests to the judge model API.",
		},
		[]string{"model", "status"},
	)
	judgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soup_server_judge_request_duration_seconds",
			Help:    "Histogram of judge API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	judgePromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soup_server_judge_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	judgeCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soup_server_judge_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

// JudgeClient is the narrow contract the lifecycle engine depends on: one
// role-tagged prompt exchange returning the model's raw text.
//
// The returned text is untrusted; callers parse and validate it via
// internal/schemas before use. Transport failures (including an empty
// completion) surface as models.ErrJudgeUnavailable. The call is abortable
// through ctx; no retries happen at this layer.
type JudgeClient interface {
	Complete(ctx context.Context, systemPrompt string, userContent string) (string, error)
}

// NewJudgeClient создает реализацию клиента судьи по типу из конфига.
func NewJudgeClient(cfg *config.Config, logger *zap.Logger) (JudgeClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		logger.Info("OpenAI-совместимый клиент судьи создан",
			zap.String("baseURL", cfg.AIBaseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
		return &openAIJudgeClient{
			client:      client,
			model:       cfg.AIModel,
			temperature: float32(cfg.AITemperature),
			logger:      logger.Named("OpenAIJudge"),
		}, nil
	case "ollama":
		return newOllamaJudgeClient(cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}

// --- OpenAI-compatible implementation ---

type openAIJudgeClient struct {
	client      *openaigo.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

func (c *openAIJudgeClient) Complete(ctx context.Context, systemPrompt string, userContent string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: системный промт пуст", models.ErrJudgeUnavailable)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userContent != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userContent,
		})
	}

	startTime := time.Now()
	c.logger.Debug("Отправка запроса к судье",
		zap.String("model", c.model),
		zap.Int("system_bytes", len(systemPrompt)),
		zap.Int("user_bytes", len(userContent)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Ошибка от AI API", zap.Duration("duration", duration), zap.Error(err))
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", models.ErrJudgeUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI API вернул пустой ответ", zap.Duration("duration", duration))
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", models.ErrJudgeUnavailable)
	}

	judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	judgeRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		judgePromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.PromptTokens))
		judgeCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.CompletionTokens))
	}

	generatedText := resp.Choices[0].Message.Content
	c.logger.Debug("Ответ судьи получен",
		zap.Duration("duration", duration), zap.Int("length", len(generatedText)))
	return generatedText, nil
}

// --- Ollama implementation ---

type ollamaJudgeClient struct {
	client      *api.Client
	model       string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func newOllamaJudgeClient(cfg *config.Config, logger *zap.Logger) (JudgeClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	// api.NewClient требует URL без суффикса /v1
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")
	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	logger.Info("Ollama клиент судьи создан",
		zap.String("baseURL", ollamaBaseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))

	return &ollamaJudgeClient{
		client:      api.NewClient(parsedURL, httpClient),
		model:       cfg.AIModel,
		temperature: cfg.AITemperature,
		timeout:     cfg.AITimeout,
		logger:      logger.Named("OllamaJudge"),
	}, nil
}

func (c *ollamaJudgeClient) Complete(ctx context.Context, systemPrompt string, userContent string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: системный промт пуст", models.ErrJudgeUnavailable)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userContent != "" {
		messages = append(messages, api.Message{Role: "user", Content: userContent})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var generatedText string
	var promptTokens, completionTokens int

	err := c.client.Chat(requestCtx, req, func(resp api.ChatResponse) error {
		generatedText += resp.Message.Content
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
		}
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Ошибка от Ollama API", zap.Duration("duration", duration), zap.Error(err))
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", models.ErrJudgeUnavailable, err)
	}
	if generatedText == "" {
		c.logger.Warn("Ollama API вернул пустой ответ", zap.Duration("duration", duration))
		judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", models.ErrJudgeUnavailable)
	}

	judgeRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	judgeRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
	if promptTokens+completionTokens > 0 {
		judgePromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokens))
		judgeCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokens))
	}

	c.logger.Debug("Ответ судьи получен (ollama)",
		zap.Duration("duration", duration), zap.Int("length", len(generatedText)))
	return generatedText, nil
}
