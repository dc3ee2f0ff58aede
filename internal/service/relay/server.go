package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agentsend/internal/model"
	accountRepo "agentsend/internal/repository/account"
	"agentsend/internal/utils/log"
)

type (
	// Queue holds relay messages for recipients that are offline.
	// Satisfied by redis.QueueService.
	Queue interface {
		RPush(ctx context.Context, key string, value ...any) error
		LRange(ctx context.Context, key string) ([]string, error)
		Del(ctx context.Context, key string) error
	}

	HttpServer struct {
		mu          sync.Mutex
		mapper      map[string]*websocket.Conn
		accountRepo *accountRepo.AccountRepo
		queue       Queue
		ledgers     *LedgerManager
	}
)

func NewHttpServer(accounts *accountRepo.AccountRepo, queue Queue, ledgers *LedgerManager) *HttpServer {
	return &HttpServer{
		mapper:      make(map[string]*websocket.Conn),
		accountRepo: accounts,
		queue:       queue,
		ledgers:     ledgers,
	}
}

// connFor returns the live websocket for identity, if any.
func (s *HttpServer) connFor(identity string) (*websocket.Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.mapper[identity]
	return conn, ok
}

func (s *HttpServer) Run(addr string) error {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	r.HandleFunc("/init", s.HandleInitWS()).Methods(http.MethodGet)
	r.HandleFunc("/keys/{identity}", s.GetPublicKey()).Methods(http.MethodGet)
	r.HandleFunc("/keys/{identity}", s.PublishPublicKey()).Methods(http.MethodPost)
	s.registerLedgerRoutes(r)

	log.Info("relay listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, r)
}

func (s *HttpServer) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"service":   "agentsend-relay",
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func (s *HttpServer) HandleInitWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("identity")
		if identity == "" {
			http.Error(w, "identity cannot be empty", http.StatusBadRequest)
			return
		}

		if _, ok := s.connFor(identity); ok {
			http.Error(w, "duplicated identity", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		if _, ok := s.mapper[identity]; ok {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.mapper[identity] = conn
		s.mu.Unlock()
		go s.processWSMessage(identity, conn)
		if err := s.ForwardQueuedMessages(identity); err != nil {
			log.Error("forward queued messages failed", zap.Error(err))
		}
	}
}

func (s *HttpServer) processWSMessage(identity string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("worker web socket closed", zap.Error(err))
			s.mu.Lock()
			delete(s.mapper, identity)
			s.mu.Unlock()
			conn.Close()
			break
		}

		var message model.RelayMessage
		err = json.Unmarshal(data, &message)
		if err != nil {
			log.Error("Unmarshal relay message failed", zap.Error(err))
			continue
		}

		if conn, ok := s.connFor(message.To); ok {
			conn.WriteMessage(websocket.TextMessage, data)
		} else {
			if err := s.QueueMessages(context.TODO(), message.To, []*model.RelayMessage{&message}); err != nil {
				log.Error("QueueMessages failed", zap.Error(err))
			}
		}
	}
}

func (s *HttpServer) GetPublicKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		vars := mux.Vars(r)
		identity := vars["identity"]

		acc, err := s.accountRepo.GetByIdentity(ctx, identity)
		if err != nil {
			log.Error("Get public key failed", zap.Error(err))
			http.Error(w, "Get public key failed", http.StatusInternalServerError)
			return
		}

		if acc == nil {
			http.Error(w, "account has not published a key", http.StatusNotFound)
			return
		}

		writeJSON(w, model.PublicKeyResponse{
			Identity:  acc.Identity,
			PublicKey: acc.PublicKey,
		})
	}
}

func (s *HttpServer) PublishPublicKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		vars := mux.Vars(r)
		identity := vars["identity"]

		var req model.PublicKeyResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if _, err := model.ParsePublicKey(req.PublicKey); err != nil {
			http.Error(w, "invalid public key", http.StatusBadRequest)
			return
		}

		if err := s.accountRepo.Upsert(ctx, identity, req.PublicKey); err != nil {
			log.Error("Publish public key failed", zap.Error(err))
			http.Error(w, "Publish public key failed", http.StatusInternalServerError)
			return
		}

		log.Info("public key published", zap.String("identity", identity))
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) ForwardQueuedMessages(identity string) error {
	messages, err := s.DequeueMessages(context.TODO(), identity)
	if err != nil {
		log.Error("ForwardQueuedMessages failed: ", zap.Error(err))
		return err
	}

	conn, ok := s.connFor(identity)
	if !ok {
		return nil
	}
	for _, message := range messages {
		conn.WriteJSON(&message)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func queueKey(to string) string {
	return fmt.Sprintf("to: %s", to)
}
