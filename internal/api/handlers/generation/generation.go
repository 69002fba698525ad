package generation

import (
	"io"
	"net/http"

	"meal2list/internal/api/handlers"
	"meal2list/internal/core/acquire"
	"meal2list/internal/core/commit"
	"meal2list/internal/core/generate"
	"meal2list/internal/core/review"
	"meal2list/internal/core/session"
	"meal2list/internal/pkg/common"
	"meal2list/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler drives the full list-generation workflow: source
// selection, content acquisition, generation, review and commit
type Handler struct {
	sessions  *session.Manager
	text      *acquire.TextAdapter
	scraper   *acquire.ScrapeAdapter
	images    *acquire.ImageAdapter
	generator *generate.Service
	store     *storage.Store
	committer *commit.Pipeline
}

// NewHandler creates the generation handler
func NewHandler(
	sessions *session.Manager,
	text *acquire.TextAdapter,
	scraper *acquire.ScrapeAdapter,
	images *acquire.ImageAdapter,
	generator *generate.Service,
	store *storage.Store,
	committer *commit.Pipeline,
) *Handler {
	return &Handler{
		sessions:  sessions,
		text:      text,
		scraper:   scraper,
		images:    images,
		generator: generator,
		store:     store,
		committer: committer,
	}
}

func (h *Handler) loadSession(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"), handlers.UserID(c))
	if err != nil {
		handlers.WriteError(c, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) loadEngine(c *gin.Context) (*review.Engine, bool) {
	categories, err := h.store.GetCategories(c.Request.Context())
	if err != nil {
		handlers.WriteError(c, err)
		return nil, false
	}
	engine, err := review.NewEngine(categories)
	if err != nil {
		handlers.WriteError(c, err)
		return nil, false
	}
	return engine, true
}

// CreateSession opens a new workflow session
func (h *Handler) CreateSession(c *gin.Context) {
	sess := h.sessions.Create(handlers.UserID(c))
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GetSession returns the session state
func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

type selectSourceRequest struct {
	Source string `json:"source"`
}

// SelectSource switches the active content source
func (h *Handler) SelectSource(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req selectSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}
	if err := sess.SelectSource(acquire.SourceType(req.Source)); err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

type textContentRequest struct {
	Text string `json:"text"`
}

// PutText stores pasted recipe text as the session content
func (h *Handler) PutText(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req textContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}

	text, err := h.text.ProduceRecipeText(c.Request.Context(), req.Text)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	if err := sess.SetContent(acquire.SourceText, text); err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// Scrape fetches a recipe page and stores its extracted content
func (h *Handler) Scrape(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}

	result, err := h.scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	// clamp, never annotate: the stored text must stay generatable
	text := common.ClampString(result.Content, common.MaxRecipeTextLength)
	if err := sess.SetContent(acquire.SourceScraping, text); err != nil {
		handlers.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": sess.Snapshot(),
		"scrape": gin.H{
			"url":         result.URL,
			"title":       result.Title,
			"token_count": result.TokenCount,
			"scraped_at":  result.ScrapedAt,
		},
	})
}

// UploadImage extracts recipe text from a photo and stores it
func (h *Handler) UploadImage(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		handlers.WriteError(c, common.NewValidationError("image file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.WriteError(c, common.ErrInvalidFile.WithMessage("could not read uploaded file").WithCause(err))
		return
	}

	text, err := h.images.ProduceRecipeText(c.Request.Context(), acquire.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	if err := sess.SetContent(acquire.SourceImage, text); err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":        sess.Snapshot(),
		"extracted_text": text,
	})
}

// Generate runs the generation pipeline over the session content
func (h *Handler) Generate(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}

	text, err := sess.BeginGeneration()
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	// one category fetch feeds both the prompt and the review engine
	categories, err := h.store.GetCategories(c.Request.Context())
	if err != nil {
		sess.FailGeneration(err)
		handlers.WriteError(c, err)
		return
	}
	engine, err := review.NewEngine(categories)
	if err != nil {
		sess.FailGeneration(err)
		handlers.WriteError(c, err)
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), sess.UserID, text, categories)
	if err != nil {
		sess.FailGeneration(err)
		handlers.WriteError(c, err)
		return
	}

	sess.CompleteGeneration(result.GenerationID, result.RecipeName, engine.Ingest(result.Items))

	common.LogInfo("generation adopted into session",
		zap.String("session_id", sess.ID),
		zap.String("generation_id", result.GenerationID),
		zap.Int("item_count", len(result.Items)),
	)
	c.JSON(http.StatusOK, sess.Snapshot())
}

func sortParams(c *gin.Context) (review.SortField, review.SortDirection, error) {
	field := review.SortField(c.DefaultQuery("sort_by", string(review.SortByCategory)))
	dir := review.SortDirection(c.DefaultQuery("direction", string(review.SortAsc)))
	if !field.Valid() {
		return "", "", common.NewValidationError("unknown sort field")
	}
	if !dir.Valid() {
		return "", "", common.NewValidationError("unknown sort direction")
	}
	return field, dir, nil
}

// GetItems returns the review snapshot sorted for display
func (h *Handler) GetItems(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	field, dir, err := sortParams(c)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": engine.Sort(sess.Items(), field, dir)})
}

// GetGroupedItems returns the review snapshot bucketed by category
func (h *Handler) GetGroupedItems(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	field, dir, err := sortParams(c)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	groups := engine.GroupByCategory(sess.Items(), field, dir)
	if groups == nil {
		groups = []review.CategoryGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// ToggleItem flips one item's inclusion
func (h *Handler) ToggleItem(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	sess.SetItems(engine.ToggleInclusion(sess.Items(), c.Param("itemId")))
	c.JSON(http.StatusOK, sess.Snapshot())
}

// ToggleAll includes or excludes the whole snapshot
func (h *Handler) ToggleAll(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	sess.SetItems(engine.ToggleAll(sess.Items()))
	c.JSON(http.StatusOK, sess.Snapshot())
}

// BeginEdit opens an edit scope on one item
func (h *Handler) BeginEdit(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	sess.SetItems(engine.BeginEdit(sess.Items(), c.Param("itemId")))
	c.JSON(http.StatusOK, sess.Snapshot())
}

// UpdateDraft replaces the open draft of a mid-edit item
func (h *Handler) UpdateDraft(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	var draft review.EditDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}

	sess.SetItems(engine.UpdateDraft(sess.Items(), c.Param("itemId"), draft))
	c.JSON(http.StatusOK, sess.Snapshot())
}

// CommitEdit applies the draft when it is valid
func (h *Handler) CommitEdit(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	next, applied := engine.CommitEdit(sess.Items(), c.Param("itemId"))
	if !applied {
		handlers.WriteError(c, common.NewValidationError("all item fields are required to save an edit"))
		return
	}
	sess.SetItems(next)
	c.JSON(http.StatusOK, sess.Snapshot())
}

// CancelEdit discards the draft
func (h *Handler) CancelEdit(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	sess.SetItems(engine.CancelEdit(sess.Items(), c.Param("itemId")))
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Validate reports what currently blocks a commit
func (h *Handler) Validate(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	errs := engine.Validate(sess.Items())
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

type commitRequest struct {
	ListID      string `json:"list_id"`
	NewListName string `json:"new_list_name"`
}

// Commit persists the confirmed selection onto a shopping list
func (h *Handler) Commit(c *gin.Context) {
	sess, ok := h.loadSession(c)
	if !ok {
		return
	}
	engine, ok := h.loadEngine(c)
	if !ok {
		return
	}

	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}
	if (req.ListID == "") == (req.NewListName == "") {
		handlers.WriteError(c, common.NewValidationError("exactly one of list_id or new_list_name is required"))
		return
	}

	items := sess.Items()
	if errs := engine.Validate(items); len(errs) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":   common.ErrCodeValidation,
			"errors": errs,
		})
		return
	}

	ctx := c.Request.Context()
	userID := handlers.UserID(c)

	listID := req.ListID
	if listID == "" {
		list, err := h.store.CreateShoppingList(ctx, userID, req.NewListName)
		if err != nil {
			handlers.WriteError(c, err)
			return
		}
		listID = list.ID
	}

	rows, err := h.committer.Commit(ctx, userID, listID, sess.GenerationID(), engine.IncludedItems(items))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	sess.FinishCommit()
	c.JSON(http.StatusCreated, gin.H{
		"list_id": listID,
		"added":   len(rows),
		"items":   rows,
	})
}
