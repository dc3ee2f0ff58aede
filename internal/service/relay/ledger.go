package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"agentsend/internal/ledger"
	"agentsend/internal/model"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
)

type (
	// LedgerManager hosts one simulated ledger per identity on the relay,
	// serving the on-chain transfer network interface for Chain clients.
	LedgerManager struct {
		kv           storage.KV
		confirmDelay time.Duration

		mu      sync.Mutex
		ledgers map[string]*ledger.Simulated
	}
)

func NewLedgerManager(kv storage.KV, confirmDelay time.Duration) *LedgerManager {
	return &LedgerManager{
		kv:           kv,
		confirmDelay: confirmDelay,
		ledgers:      make(map[string]*ledger.Simulated),
	}
}

func (m *LedgerManager) ForIdentity(r *http.Request) (*ledger.Simulated, error) {
	identity := strings.ToLower(mux.Vars(r)["identity"])
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[identity]; ok {
		return l, nil
	}
	l := ledger.NewSimulated(m.kv, ledger.SimulatedOptions{
		Identity:     identity,
		ConfirmDelay: m.confirmDelay,
	})
	if err := l.Init(r.Context()); err != nil {
		return nil, err
	}
	m.ledgers[identity] = l
	return l, nil
}

func (m *LedgerManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.ledgers {
		l.Close()
	}
}

func (s *HttpServer) registerLedgerRoutes(r *mux.Router) {
	r.HandleFunc("/ledger/{identity}/fund", s.HandleFund()).Methods(http.MethodPost)
	r.HandleFunc("/ledger/{identity}/transfer", s.HandleTransfer()).Methods(http.MethodPost)
	r.HandleFunc("/ledger/{identity}/rollover", s.HandleRollover()).Methods(http.MethodPost)
	r.HandleFunc("/ledger/{identity}/balance", s.HandleBalance()).Methods(http.MethodGet)
	r.HandleFunc("/ledger/{identity}/transfers", s.HandleTransfers()).Methods(http.MethodGet)
}

func (s *HttpServer) HandleFund() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.ledgers.ForIdentity(r)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		var req model.FundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		txRef, err := l.Fund(r.Context(), req.Amount)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, model.TxResponse{TxRef: txRef})
	}
}

func (s *HttpServer) HandleTransfer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.ledgers.ForIdentity(r)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		var req model.TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		txRef, err := l.Transfer(r.Context(), req.Recipient, req.Amount, req.PayloadRef)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, model.TxResponse{TxRef: txRef})
	}
}

func (s *HttpServer) HandleRollover() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.ledgers.ForIdentity(r)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		txRef, err := l.Rollover(r.Context())
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, model.TxResponse{TxRef: txRef})
	}
}

func (s *HttpServer) HandleBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.ledgers.ForIdentity(r)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, l.Balance())
	}
}

func (s *HttpServer) HandleTransfers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.ledgers.ForIdentity(r)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		history := l.History()
		if history == nil {
			history = []model.TransferRecord{}
		}
		writeJSON(w, history)
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, ledger.ErrNoPendingBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNotInitialized):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, ledger.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("ledger operation failed", zap.Error(err))
		http.Error(w, "ledger operation failed", http.StatusInternalServerError)
	}
}
