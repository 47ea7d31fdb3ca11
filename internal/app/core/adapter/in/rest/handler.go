package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// Ledger 是 Handler 需要的核心操作
type Ledger interface {
	ApplyTransaction(ctx context.Context, customerID, amount int64, kind domain.TransactionKind, description string) (domain.BalanceSnapshot, error)
	Statement(ctx context.Context, customerID int64) (domain.Statement, error)
}

// Handler 把帳本操作以 HTTP 對外
type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// TransactionRequest POST /clientes/{id}/transacoes 的 body
// valor 保留原始 JSON，拒絕小數與字串
type TransactionRequest struct {
	Valor     json.RawMessage `json:"valor"`
	Tipo      string          `json:"tipo"`
	Descricao string          `json:"descricao"`
}

type TransactionResponse struct {
	Limite int64 `json:"limite"`
	Saldo  int64 `json:"saldo"`
}

type StatementResponse struct {
	Saldo             StatementBalance       `json:"saldo"`
	UltimasTransacoes []StatementTransaction `json:"ultimas_transacoes"`
}

type StatementBalance struct {
	Total       int64     `json:"total"`
	DataExtrato time.Time `json:"data_extrato"`
	Limite      int64     `json:"limite"`
}

type StatementTransaction struct {
	Valor       int64     `json:"valor"`
	Tipo        string    `json:"tipo"`
	Descricao   string    `json:"descricao"`
	RealizadaEm time.Time `json:"realizada_em"`
}

// PostTransaction 處理 POST /clientes/{id}/transacoes
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathCustomerID(w, r)
	if !ok {
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseValor(req.Valor)
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}

	snapshot, err := h.ledger.ApplyTransaction(r.Context(), customerID, amount, domain.TransactionKind(req.Tipo), req.Descricao)
	if err != nil {
		h.respondDomainError(w, err, customerID)
		return
	}

	respondJSON(w, http.StatusOK, TransactionResponse{
		Limite: snapshot.Limit,
		Saldo:  snapshot.Value,
	})
}

// GetStatement 處理 GET /clientes/{id}/extrato
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathCustomerID(w, r)
	if !ok {
		return
	}

	statement, err := h.ledger.Statement(r.Context(), customerID)
	if err != nil {
		h.respondDomainError(w, err, customerID)
		return
	}

	resp := StatementResponse{
		Saldo: StatementBalance{
			Total:       statement.Balance.Value,
			DataExtrato: statement.Balance.AsOf,
			Limite:      statement.Balance.Limit,
		},
		UltimasTransacoes: make([]StatementTransaction, 0, len(statement.Transactions)),
	}
	for _, tran := range statement.Transactions {
		resp.UltimasTransacoes = append(resp.UltimasTransacoes, StatementTransaction{
			Valor:       tran.Amount,
			Tipo:        string(tran.Kind),
			Descricao:   tran.Description,
			RealizadaEm: tran.OccurredAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondDomainError 把 domain error 對應到 HTTP status
func (h *Handler) respondDomainError(w http.ResponseWriter, err error, customerID int64) {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientLimit):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Int64("customer_id", customerID).Msg("internal error")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathCustomerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return 0, false
	}
	return id, true
}

// parseValor 只接受 JSON 整數
func parseValor(raw json.RawMessage) (int64, error) {
	return strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
