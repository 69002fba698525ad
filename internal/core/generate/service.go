package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"meal2list/internal/core/ai"
	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

const systemPrompt = `You are a shopping list assistant. Given a recipe, extract the
ingredients as shopping list items. Respond with a single JSON object and
nothing else, in this exact shape:

{"recipe_name": "...", "items": [{"product_name": "...", "quantity": 1, "unit": "...", "category_id": "..."}]}

Rules:
- quantity is a number, never a string
- unit is a short measure like "pcs", "g", "kg", "ml", "l"
- category_id must be one of the ids from the category list below
- consolidate duplicate ingredients into one item
- skip water, ice and other tap ingredients

Categories:
%s`

// Record a successful generation audit entry
type Record struct {
	ID               string
	UserID           string
	Model            string
	GeneratedCount   int
	SourceTextHash   string
	SourceTextLength int
	Duration         time.Duration
}

// ErrorRecord a failed generation audit entry
type ErrorRecord struct {
	ID               string
	UserID           string
	Model            string
	SourceTextHash   string
	SourceTextLength int
	ErrorCode        string
	ErrorMessage     string
}

// AuditStore persists generation audit records. Audit writes are
// best-effort: a failed write is logged and never surfaces to the
// caller.
type AuditStore interface {
	RecordGeneration(ctx context.Context, rec Record) error
	RecordGenerationError(ctx context.Context, rec ErrorRecord) error
}

// Result the output of one generation run
type Result struct {
	GenerationID string                 `json:"generation_id"`
	RecipeName   string                 `json:"recipe_name"`
	Items        []common.CandidateItem `json:"items"`
}

// Service turns canonical recipe text into candidate shopping list
// items via the relay
type Service struct {
	config *config.Config
	relay  *ai.Client
	audit  AuditStore
	policy common.RetryPolicy
}

// NewService creates a generation service. audit may be nil.
func NewService(cfg *config.Config, relay *ai.Client, audit AuditStore) *Service {
	policy := common.DefaultRetryPolicy()
	policy.Retryable = func(err error) bool {
		switch common.CodeOf(err) {
		case common.ErrCodeRequestTimeout, common.ErrCodeNetworkError, common.ErrCodeAPIError:
			return true
		}
		return false
	}

	return &Service{
		config: cfg,
		relay:  relay,
		audit:  audit,
		policy: policy,
	}
}

// Generate runs one generation over the recipe text. Every run gets a
// fresh generation id and every item a fresh identifier, so repeated
// runs over the same text never collide in a review session.
func (s *Service) Generate(ctx context.Context, userID, recipeText string, categories []common.Category) (*Result, error) {
	text := strings.TrimSpace(recipeText)
	if text == "" {
		return nil, common.NewValidationError("recipe text is required")
	}
	if len(text) > common.MaxRecipeTextLength {
		return nil, common.NewValidationError(fmt.Sprintf("recipe text exceeds %d characters", common.MaxRecipeTextLength))
	}
	if len(categories) == 0 {
		return nil, common.ErrMisconfiguration.WithMessage("no categories available for generation")
	}

	model := s.config.Relay.TextModel
	start := time.Now()

	var raw string
	err := common.Retry(ctx, s.policy, "generation", func() error {
		var callErr error
		raw, callErr = s.relay.ChatCompletion(ctx, ai.Options{
			Model:       model,
			Temperature: 0.2,
		}, []ai.Message{
			ai.TextMessage("system", fmt.Sprintf(systemPrompt, categoryCatalog(categories))),
			ai.TextMessage("user", text),
		})
		return callErr
	})
	if err != nil {
		s.recordFailure(userID, model, text, err)
		return nil, err
	}

	result, err := s.parseResponse(raw)
	if err != nil {
		s.recordFailure(userID, model, text, err)
		return nil, err
	}

	result.GenerationID = common.GenerateUUID()
	for i := range result.Items {
		result.Items[i].ID = common.GenerateUUID()
		result.Items[i].Source = common.SourceAuto
	}

	s.recordSuccess(userID, model, text, result, time.Since(start))

	common.LogInfo("generation completed",
		zap.String("generation_id", result.GenerationID),
		zap.String("model", model),
		zap.Int("item_count", len(result.Items)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func categoryCatalog(categories []common.Category) string {
	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Name)
	}
	return b.String()
}

// parseResponse decodes the model output, tolerating prose around the
// JSON object and unquoted keys
func (s *Service) parseResponse(raw string) (*Result, error) {
	var payload struct {
		RecipeName string `json:"recipe_name"`
		Items      []struct {
			ProductName string  `json:"product_name"`
			Quantity    float64 `json:"quantity"`
			Unit        string  `json:"unit"`
			CategoryID  string  `json:"category_id"`
		} `json:"items"`
	}

	cleaned := common.ExtractJSONObject(raw)
	if err := common.ParseJSON(cleaned, &payload); err != nil {
		// some models emit unquoted keys, repair once and re-parse
		if err2 := common.ParseJSON(common.QuoteJSONKeys(cleaned), &payload); err2 != nil {
			common.LogWarn("unparseable generation output",
				zap.String("snippet", common.TruncateString(raw, 200)),
				zap.Error(err),
			)
			return nil, common.ErrParsing.WithMessage("model returned an unusable response").WithCause(err)
		}
	}

	result := &Result{RecipeName: strings.TrimSpace(payload.RecipeName)}
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.ProductName)
		if name == "" {
			continue
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit := strings.TrimSpace(it.Unit)
		if unit == "" {
			unit = "pcs"
		}
		result.Items = append(result.Items, common.CandidateItem{
			ProductName: name,
			Quantity:    qty,
			Unit:        unit,
			CategoryID:  it.CategoryID,
		})
	}

	if len(result.Items) == 0 {
		return nil, common.ErrParsing.WithMessage("model returned no usable items")
	}
	return result, nil
}

func (s *Service) recordSuccess(userID, model, text string, result *Result, duration time.Duration) {
	if s.audit == nil {
		return
	}
	rec := Record{
		ID:               result.GenerationID,
		UserID:           userID,
		Model:            model,
		GeneratedCount:   len(result.Items),
		SourceTextHash:   hashText(text),
		SourceTextLength: len(text),
		Duration:         duration,
	}
	if err := s.audit.RecordGeneration(context.Background(), rec); err != nil {
		common.LogWarn("failed to record generation", zap.Error(err))
	}
}

func (s *Service) recordFailure(userID, model, text string, genErr error) {
	if s.audit == nil {
		return
	}
	rec := ErrorRecord{
		ID:               common.GenerateUUID(),
		UserID:           userID,
		Model:            model,
		SourceTextHash:   hashText(text),
		SourceTextLength: len(text),
		ErrorCode:        common.CodeOf(genErr),
		ErrorMessage:     common.TruncateString(genErr.Error(), 500),
	}
	if err := s.audit.RecordGenerationError(context.Background(), rec); err != nil {
		common.LogWarn("failed to record generation error", zap.Error(err))
	}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
