package list

import (
	"net/http"

	"meal2list/internal/api/handlers"
	"meal2list/internal/pkg/common"
	"meal2list/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler shopping list and category endpoints
type Handler struct {
	store *storage.Store
}

// NewHandler creates the list handler
func NewHandler(store *storage.Store) *Handler {
	return &Handler{store: store}
}

type createListRequest struct {
	Name string `json:"name"`
}

// GetCategories returns the category catalog
func (h *Handler) GetCategories(c *gin.Context) {
	categories, err := h.store.GetCategories(c.Request.Context())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetLists returns the caller's shopping lists
func (h *Handler) GetLists(c *gin.Context) {
	lists, err := h.store.GetShoppingLists(c.Request.Context(), handlers.UserID(c))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	if lists == nil {
		lists = []common.ShoppingList{}
	}
	c.JSON(http.StatusOK, gin.H{"lists": lists})
}

// CreateList creates an empty shopping list
func (h *Handler) CreateList(c *gin.Context) {
	var req createListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.WriteError(c, common.NewValidationError("invalid request body"))
		return
	}

	list, err := h.store.CreateShoppingList(c.Request.Context(), handlers.UserID(c), req.Name)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

// DeleteList removes the caller's list and its items
func (h *Handler) DeleteList(c *gin.Context) {
	err := h.store.DeleteShoppingList(c.Request.Context(), c.Param("id"), handlers.UserID(c))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetListItems returns the items of one of the caller's lists
func (h *Handler) GetListItems(c *gin.Context) {
	ctx := c.Request.Context()
	listID := c.Param("id")

	if err := h.store.VerifyListOwnership(ctx, listID, handlers.UserID(c)); err != nil {
		handlers.WriteError(c, err)
		return
	}

	items, err := h.store.GetListItems(ctx, listID)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	if items == nil {
		items = []common.ShoppingListItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
