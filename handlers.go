package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultPageSize = 10

// Handler struct to encapsulate HTTP handling logic
type Handler struct {
	store    Store
	notifier *Notifier
}

func NewHandler(store Store, notifier *Notifier) *Handler {
	return &Handler{store: store, notifier: notifier}
}

func RegisterRouters(mux *chi.Mux, handler *Handler) {
	mux.Use(middleware.Logger)

	mux.Post("/register", handler.Register)
	mux.Post("/login", handler.Login)

	mux.Group(func(r chi.Router) {
		r.Use(RequireAuth(handler.store))

		r.Get("/user", handler.CurrentUser)
		r.Post("/logout", handler.Logout)

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", handler.ListExpenses)
			r.Post("/", handler.CreateExpense)
			r.Get("/{id}", handler.ShowExpense)
			r.Put("/{id}", handler.UpdateExpense)
			r.Patch("/{id}", handler.UpdateExpense)
			r.Delete("/{id}", handler.DeleteExpense)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func respondValidationErrors(w http.ResponseWriter, errs Errors) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  errs,
	})
}

// decodePayload reads the JSON body into a generic map so the declarative
// validator can inspect it. Numbers are kept as json.Number to avoid
// premature float conversion. An empty body decodes to an empty map and is
// left for the required-field rules to reject.
func decodePayload(r *http.Request) (map[string]any, error) {
	payload := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return payload, nil
}

func payloadString(payload map[string]any, field string) string {
	s, _ := payload[field].(string)
	return s
}

func payloadNumber(payload map[string]any, field string) float64 {
	switch n := payload[field].(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	}
	return 0
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	errs := Validate(payload, registerRules)

	if password, ok := payload["password"].(string); ok && password != "" {
		if confirmation := payloadString(payload, "password_confirmation"); confirmation != password {
			errs.Add("password", "The password confirmation does not match.")
		}
	}

	email := payloadString(payload, "email")
	if len(errs["email"]) == 0 {
		_, err := h.store.GetUserByEmail(email)
		switch {
		case err == nil:
			errs.Add("email", "The email has already been taken.")
		case !errors.Is(err, ErrNotFound):
			respondMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	if errs.Any() {
		respondValidationErrors(w, errs)
		return
	}

	hash, err := HashPassword(payloadString(payload, "password"))
	if err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.store.CreateUser(payloadString(payload, "name"), email, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			errs.Add("email", "The email has already been taken.")
			respondValidationErrors(w, errs)
			return
		}
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, PresentUser(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if errs := Validate(payload, loginRules); errs.Any() {
		respondValidationErrors(w, errs)
		return
	}

	// The same response for an unknown email and a wrong password, so the
	// endpoint never reveals whether an email is registered.
	user, err := h.store.GetUserByEmail(payloadString(payload, "email"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !CheckPassword(user.PasswordHash, payloadString(payload, "password")) {
		respondMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := GenerateToken()
	if err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.store.CreateToken(Token{Token: token, UserID: user.ID}); err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]UserResource{"user": PresentUser(user)})
}

// Logout revokes every token the caller holds, not just the one presented.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if err := h.store.DeleteUserTokens(user.ID); err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if !Can(user, ActionListOwn, nil) {
		respondMessage(w, http.StatusForbidden, "This action is unauthorized.")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	expenses, total, err := h.store.ListExpenses(user.ID, limit, (page-1)*limit)
	if err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, PresentExpensePage(expenses, page, limit, total))
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if !Can(user, ActionCreate, nil) {
		respondMessage(w, http.StatusForbidden, "This action is unauthorized.")
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if errs := Validate(payload, expenseRules); errs.Any() {
		respondValidationErrors(w, errs)
		return
	}

	expense := expenseFromPayload(payload)
	// Ownership comes from the authenticated identity; any client-supplied
	// user_id is ignored.
	expense.UserID = user.ID

	created, err := h.store.CreateExpense(expense)
	if err != nil {
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.notifier.Dispatch(Notification{
		UserID:      created.UserID,
		ExpenseID:   created.ID,
		Description: created.Description,
		Value:       float64(created.Value) / 100.0,
		Date:        created.Date.Format(dateLayout),
	})

	respondJSON(w, http.StatusCreated, PresentExpense(created))
}

func (h *Handler) ShowExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	expense, found := h.resolveExpense(w, r)
	if !found {
		return
	}

	if !Can(user, ActionView, &expense) {
		respondMessage(w, http.StatusForbidden, "This action is unauthorized.")
		return
	}

	respondJSON(w, http.StatusOK, PresentExpense(expense))
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	expense, found := h.resolveExpense(w, r)
	if !found {
		return
	}

	if !Can(user, ActionUpdate, &expense) {
		respondMessage(w, http.StatusForbidden, "This action is unauthorized.")
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if errs := Validate(payload, expenseRules); errs.Any() {
		respondValidationErrors(w, errs)
		return
	}

	fields := expenseFromPayload(payload)
	expense.Description = fields.Description
	expense.Date = fields.Date
	expense.Value = fields.Value

	updated, err := h.store.UpdateExpense(expense)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondMessage(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, PresentExpense(updated))
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	expense, found := h.resolveExpense(w, r)
	if !found {
		return
	}

	if !Can(user, ActionDelete, &expense) {
		respondMessage(w, http.StatusForbidden, "This action is unauthorized.")
		return
	}

	if err := h.store.DeleteExpense(expense.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondMessage(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveExpense loads the expense named in the URL. A malformed or unknown
// id yields 404; a foreign but existing record is left for the policy check
// so it is denied with 403 rather than hidden behind 404.
func (h *Handler) resolveExpense(w http.ResponseWriter, r *http.Request) (Expense, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondMessage(w, http.StatusNotFound, "Expense not found")
		return Expense{}, false
	}

	expense, err := h.store.GetExpense(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondMessage(w, http.StatusNotFound, "Expense not found")
			return Expense{}, false
		}
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return Expense{}, false
	}

	return expense, true
}

// expenseFromPayload extracts the validated fields. The value is truncated
// toward zero to whole minor units, the way an integer column would store it.
func expenseFromPayload(payload map[string]any) Expense {
	date, _ := time.Parse(dateLayout, payloadString(payload, "date"))
	return Expense{
		Description: payloadString(payload, "description"),
		Date:        date,
		Value:       int64(payloadNumber(payload, "value")),
	}
}
