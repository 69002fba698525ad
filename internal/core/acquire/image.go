package acquire

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"regexp"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"meal2list/internal/core/ai"
	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

// ocrSystemPrompt fixed instruction for the vision model
const ocrSystemPrompt = `You are an OCR assistant. Extract every piece of text visible in the
photographed recipe and return it as markdown-formatted plain text.
Preserve ingredient lists as bullet points and keep quantities exactly
as written. Return only the extracted text, no commentary.`

var supportedImageTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/webp": "webp",
}

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	jsSchemePattern  = regexp.MustCompile(`(?i)javascript:`)
	eventAttrPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// ImageUpload a recipe photo submitted for text extraction
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageAdapter extracts recipe text from a photographed recipe via
// the vision LLM relay.
type ImageAdapter struct {
	config *config.Config
	relay  *ai.Client
	policy common.RetryPolicy
}

// NewImageAdapter creates an OCR adapter
func NewImageAdapter(cfg *config.Config, relay *ai.Client) *ImageAdapter {
	policy := common.DefaultRetryPolicy()
	policy.Retryable = func(err error) bool {
		switch common.CodeOf(err) {
		case common.ErrCodeRequestTimeout, common.ErrCodeNetworkError, common.ErrCodeAPIError:
			return true
		}
		return false
	}

	return &ImageAdapter{
		config: cfg,
		relay:  relay,
		policy: policy,
	}
}

// ProduceRecipeText runs the OCR pipeline: local validation, base64
// encoding under its own deadline, the relay call with retries under
// the overall OCR deadline, and sanitization of the extracted text.
func (a *ImageAdapter) ProduceRecipeText(ctx context.Context, upload ImageUpload) (string, error) {
	format, err := a.validateUpload(upload)
	if err != nil {
		return "", err
	}

	encodeCtx, cancelEncode := context.WithTimeout(ctx, a.config.Image.EncodeTimeout)
	defer cancelEncode()
	dataURL, err := encodeDataURL(encodeCtx, upload.ContentType, upload.Data)
	if err != nil {
		return "", err
	}

	ocrCtx, cancelOCR := context.WithTimeout(ctx, a.config.Image.OCRTimeout)
	defer cancelOCR()

	var extracted string
	err = common.Retry(ocrCtx, a.policy, "ocr "+upload.Filename, func() error {
		content, callErr := a.relay.ChatCompletion(ocrCtx, ai.Options{
			Model:       a.config.Relay.VisionModel,
			Temperature: 0.1,
			MaxTokens:   a.config.Relay.MaxTokens,
		}, []ai.Message{
			ai.TextMessage("system", ocrSystemPrompt),
			ai.VisionMessage("Extract the recipe text from this image.", dataURL),
		})
		if callErr != nil {
			return callErr
		}
		extracted = content
		return nil
	})
	if err != nil {
		if ocrCtx.Err() != nil && ctx.Err() == nil {
			return "", common.ErrRequestTimeout.WithMessage("recipe photo processing timed out")
		}
		return "", err
	}

	sanitized := SanitizeExtractedText(extracted)
	if sanitized == "" {
		return "", common.ErrAPIError.WithMessage("no text could be extracted from the image")
	}

	common.LogInfo("image text extraction completed",
		zap.String("format", format),
		zap.Int("image_bytes", len(upload.Data)),
		zap.Int("text_length", len(sanitized)),
	)

	return sanitized, nil
}

// validateUpload checks MIME type, size, and that the payload really
// decodes as the declared image format.
func (a *ImageAdapter) validateUpload(upload ImageUpload) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if _, ok := supportedImageTypes[contentType]; !ok {
		return "", common.ErrInvalidFile.WithMessage(
			fmt.Sprintf("unsupported image type %q, use JPEG, PNG or WebP", upload.ContentType))
	}

	if int64(len(upload.Data)) > a.config.Image.MaxSizeBytes {
		return "", common.ErrInvalidFile.WithMessage(
			fmt.Sprintf("image exceeds the maximum size of %d bytes", a.config.Image.MaxSizeBytes))
	}
	if len(upload.Data) == 0 {
		return "", common.ErrInvalidFile.WithMessage("image file is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return "", common.ErrInvalidFile.WithMessage("file is not a valid image").WithCause(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", common.ErrInvalidFile.WithMessage("image has no pixels")
	}

	return format, nil
}

// encodeDataURL converts the image to a base64 data URL under its own
// timeout. Encoding is CPU-bound but large files still deserve a cap.
func encodeDataURL(ctx context.Context, contentType string, data []byte) (string, error) {
	done := make(chan string, 1)
	go func() {
		done <- fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	}()

	select {
	case <-ctx.Done():
		return "", common.ErrRequestTimeout.WithMessage("image encoding timed out")
	case encoded := <-done:
		return encoded, nil
	}
}

// SanitizeExtractedText strips markup and script-like fragments from
// model output and caps its length.
func SanitizeExtractedText(text string) string {
	cleaned := htmlTagPattern.ReplaceAllString(text, "")
	cleaned = jsSchemePattern.ReplaceAllString(cleaned, "")
	cleaned = eventAttrPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	return common.ClampString(cleaned, common.MaxSanitizedTextLength)
}
