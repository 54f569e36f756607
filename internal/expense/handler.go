package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forkthebill/backend/pkg/money"
	"github.com/forkthebill/backend/pkg/response"
)

const maxUploadBytes = 10 << 20 // 10MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Handler handles HTTP requests for expense operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new expense handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Post("/upload", h.CreateFromReceipt)
	r.Get("/{slug}", h.Get)
	r.Put("/{slug}", h.Replace)
	r.Patch("/{slug}", h.UpdateAdjustments)

	r.Post("/{slug}/items", h.AddItem)
	r.Post("/{slug}/items/{itemId}/claim", h.ClaimItem)
	r.Delete("/{slug}/items/{itemId}/claim/{personId}", h.UnclaimItem)

	r.Post("/{slug}/people", h.AddPerson)
	r.Put("/{slug}/people/{personId}/finish", h.MarkFinished)
	r.Put("/{slug}/people/{personId}/pending", h.MarkPending)

	return r
}

// Create handles POST /expense
// @Summary      Create an expense
// @Description  Create an expense from a payer, line items and adjustments; splits are computed immediately
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        request body CreateExpenseRequest true "Expense creation request"
// @Success      201 {object} ExpenseResponse
// @Failure      400 {object} response.APIError
// @Router       /expense [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.CreateExpense(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, e.ToResponse())
}

// CreateFromReceipt handles POST /expense/upload
// @Summary      Create an expense from a receipt image
// @Description  Multipart upload ("bill" image + "payerName"); line items are extracted by the receipt service
// @Tags         expenses
// @Accept       multipart/form-data
// @Produce      json
// @Param        bill formData file true "Receipt image (max 10MB)"
// @Param        payerName formData string true "Payer display name"
// @Success      201 {object} ExpenseResponse
// @Failure      400 {object} response.APIError
// @Router       /expense/upload [post]
func (h *Handler) CreateFromReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.BadRequest(w, r, fmt.Sprintf("failed to parse multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("bill")
	if err != nil {
		response.BadRequest(w, r, "receipt image file \"bill\" is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		response.BadRequest(w, r, "receipt image too large (max 10MB)")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !allowedImageTypes[contentType] {
		response.BadRequest(w, r, fmt.Sprintf("invalid image type: %s", contentType))
		return
	}

	payerName := r.FormValue("payerName")
	image, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(w, r, "failed to read receipt image")
		return
	}

	e, err := h.service.CreateFromReceipt(r.Context(), image, contentType, payerName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, e.ToResponse())
}

// Get handles GET /expense/{slug}
// @Summary      Fetch an expense
// @Tags         expenses
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.GetExpense(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// Replace handles PUT /expense/{slug}
// @Summary      Replace items, people and adjustments
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        request body CreateExpenseRequest true "Full expense payload"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug} [put]
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.ReplaceExpense(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// UpdateAdjustments handles PATCH /expense/{slug}
// @Summary      Update tax, service charge or discount
// @Description  Omitted fields keep their previous values; every person's shares are recomputed
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        request body UpdateAdjustmentsRequest true "Adjustment amounts"
// @Success      200 {object} ExpenseResponse
// @Failure      400 {object} response.APIError
// @Router       /expense/{slug} [patch]
func (h *Handler) UpdateAdjustments(w http.ResponseWriter, r *http.Request) {
	var req UpdateAdjustmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.UpdateAdjustments(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// AddItem handles POST /expense/{slug}/items
// @Summary      Add an item
// @Description  Splits price into quantity equal units, all unclaimed
// @Tags         items
// @Accept       json
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        request body AddItemRequest true "Item to add"
// @Success      200 {object} ExpenseResponse
// @Failure      400 {object} response.APIError
// @Router       /expense/{slug}/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.AddItem(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// ClaimItem handles POST /expense/{slug}/items/{itemId}/claim
// @Summary      Claim an item
// @Description  Adds the person to the item's claimant set; an unknown name creates the person first
// @Tags         items
// @Accept       json
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        itemId path string true "Item ID"
// @Param        request body ClaimItemRequest true "Claimant (personId or name)"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug}/items/{itemId}/claim [post]
func (h *Handler) ClaimItem(w http.ResponseWriter, r *http.Request) {
	var req ClaimItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.ClaimItem(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "itemId"),
		PersonIdentity{ID: req.PersonID, Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// UnclaimItem handles DELETE /expense/{slug}/items/{itemId}/claim/{personId}
// @Summary      Unclaim an item
// @Description  Removes the person's claim; unclaiming an unclaimed item is a no-op
// @Tags         items
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        itemId path string true "Item ID"
// @Param        personId path string true "Person ID"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug}/items/{itemId}/claim/{personId} [delete]
func (h *Handler) UnclaimItem(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.UnclaimItem(r.Context(), chi.URLParam(r, "slug"),
		chi.URLParam(r, "itemId"), chi.URLParam(r, "personId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// AddPerson handles POST /expense/{slug}/people
// @Summary      Add a person
// @Tags         people
// @Accept       json
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        request body AddPersonRequest true "Person to add"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug}/people [post]
func (h *Handler) AddPerson(w http.ResponseWriter, r *http.Request) {
	var req AddPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return
	}

	e, err := h.service.AddPerson(r.Context(), chi.URLParam(r, "slug"), req.Name, req.IsFinished)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

// MarkFinished handles PUT /expense/{slug}/people/{personId}/finish
// @Summary      Mark a person finished
// @Tags         people
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        personId path string true "Person ID"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug}/people/{personId}/finish [put]
func (h *Handler) MarkFinished(w http.ResponseWriter, r *http.Request) {
	h.setFinished(w, r, true)
}

// MarkPending handles PUT /expense/{slug}/people/{personId}/pending
// @Summary      Mark a person pending
// @Tags         people
// @Produce      json
// @Param        slug path string true "Expense slug"
// @Param        personId path string true "Person ID"
// @Success      200 {object} ExpenseResponse
// @Failure      404 {object} response.APIError
// @Router       /expense/{slug}/people/{personId}/pending [put]
func (h *Handler) MarkPending(w http.ResponseWriter, r *http.Request) {
	h.setFinished(w, r, false)
}

func (h *Handler) setFinished(w http.ResponseWriter, r *http.Request, finished bool) {
	e, err := h.service.SetFinished(r.Context(), chi.URLParam(r, "slug"),
		PersonIdentity{ID: chi.URLParam(r, "personId")}, finished)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e.ToResponse())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrExpenseNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrPersonNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidParts),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrEmptyName):
		response.BadRequest(w, r, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, r, err.Error())
	default:
		response.InternalError(w, r, "internal error")
	}
}
