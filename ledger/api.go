package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alovak/cardledger/ledger/models"
	"github.com/go-chi/chi/v5"
)

// API is the HTTP surface over the ledger service.
type API struct {
	svc *Service
}

func NewAPI(svc *Service) *API {
	return &API{svc: svc}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/card-users", func(r chi.Router) {
		r.Get("/", a.listUsers)
		r.Post("/", a.createUser)
		r.Route("/{iin}", func(r chi.Router) {
			r.Get("/", a.getUser)
			r.Put("/", a.updateUser)
			r.Delete("/", a.deleteUser)
		})
	})
	r.Route("/cards", func(r chi.Router) {
		r.Get("/", a.listCards)
		r.Post("/", a.issueCard)
		r.Post("/deposit", a.deposit)
		r.Post("/withdraw", a.withdraw)
		r.Post("/transfer", a.transfer)
		r.Route("/{pan}", func(r chi.Router) {
			r.Get("/", a.getCard)
			r.Put("/", a.updateCard)
			r.Delete("/", a.deleteCard)
		})
	})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var user models.CardUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := a.svc.RegisterUser(r.Context(), &user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.GetUser(r.Context(), chi.URLParam(r, "iin"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []*models.CardUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var user models.CardUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user.IIN = chi.URLParam(r, "iin")
	changed, err := a.svc.UpdateUser(r.Context(), &user)
	if err != nil {
		writeError(w, err)
		return
	}
	if !changed {
		http.Error(w, "card user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, &user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.svc.RemoveUser(r.Context(), chi.URLParam(r, "iin"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, "card user not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) issueCard(w http.ResponseWriter, r *http.Request) {
	var req models.IssueCard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card, err := a.svc.IssueCard(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := a.svc.GetCard(r.Context(), chi.URLParam(r, "pan"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.svc.ListCards(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) {
	var card models.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card.PAN = chi.URLParam(r, "pan")
	changed, err := a.svc.UpdateCard(r.Context(), &card)
	if err != nil {
		writeError(w, err)
		return
	}
	if !changed {
		http.Error(w, "card not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, &card)
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.svc.RemoveCard(r.Context(), chi.URLParam(r, "pan"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, "card not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req models.MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.svc.Deposit(r.Context(), req.PAN, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req models.MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.svc.Withdraw(r.Context(), req.PAN, req.CVV, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, err := a.svc.Transfer(r.Context(), req.FromPAN, req.ToPAN, req.Amount)
	resp := struct {
		Status models.TransferStatus `json:"status"`
		Error  string                `json:"error,omitempty"`
	}{Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	switch status {
	case models.TransferCompleted:
		writeJSON(w, http.StatusOK, resp)
	case models.TransferPartiallyApplied:
		// Not a plain failure: funds left the source. The caller gets the
		// full picture for reconciliation.
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeJSON(w, statusForError(err), resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrAmbiguousName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
