package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"evmsend/pkg/events"
	"evmsend/pkg/models"
	"evmsend/pkg/transfer"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DefaultHistoryLimit is the page size of GET /api/history.
const DefaultHistoryLimit = 20

// Form is the transfer form driven by the API.
type Form interface {
	UpdateRecipient(string)
	UpdateAmount(string)
	Snapshot() transfer.Status
	Submit(ctx context.Context) transfer.Result
}

// HistorySource lists recorded transfers, newest first.
type HistorySource interface {
	Recent(ctx context.Context, n int) ([]models.TransferRecord, error)
}

type Config struct {
	Hub  *events.Hub
	Form Form
	// History may be nil, in which case /api/history is empty.
	History HistorySource
	// Session describes the connected wallet for status responses.
	Session func() events.SessionInfo
}

type Server struct {
	hub     *events.Hub
	form    Form
	history HistorySource
	session func() events.SessionInfo

	sendMu  sync.Mutex
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(cfg Config) *Server {
	s := &Server{
		hub:     cfg.Hub,
		form:    cfg.Form,
		history: cfg.History,
		session: cfg.Session,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	if s.hub == nil {
		s.hub = events.NewHub()
	}
	if s.session == nil {
		s.session = func() events.SessionInfo { return events.SessionInfo{} }
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/send", s.handleSend)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Start serves the API until ctx ends.
func (s *Server) Start(ctx context.Context, port int) error {
	s.listenToHub(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("API Server listening on :%d\n", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) statusPayload() map[string]interface{} {
	return map[string]interface{}{
		"form":    s.form.Snapshot(),
		"session": s.session(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusPayload())
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Confirm   bool   `json:"confirm"`
}

type sendResponse struct {
	State       transfer.State `json:"state"`
	TxHash      string         `json:"tx_hash,omitempty"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Network     string         `json:"network,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Amount      string         `json:"amount,omitempty"`
	Recipient   string         `json:"recipient,omitempty"`
	From        string         `json:"from,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Inputs and submission must not interleave with another request.
	if !s.sendMu.TryLock() {
		writeJSON(w, http.StatusConflict, sendResponse{State: s.form.Snapshot().State, Error: transfer.ErrBusy.Error()})
		return
	}
	defer s.sendMu.Unlock()

	s.form.UpdateRecipient(req.Recipient)
	s.form.UpdateAmount(req.Amount)
	// A client that disconnects must not abandon a broadcast transfer.
	ctx := WithConfirmation(context.WithoutCancel(r.Context()), req.Confirm)
	res := s.form.Submit(ctx)
	s.hub.PublishResult(res)

	resp := sendResponse{
		State:       res.State,
		TxHash:      res.TxHash,
		ExplorerURL: res.ExplorerURL,
		Network:     res.Network.Name,
		Currency:    res.Network.Currency,
		Amount:      res.Amount,
		Recipient:   res.Recipient,
		From:        res.From,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, statusFor(res.Err), resp)
}

func statusFor(err error) int {
	var se *transfer.SubmissionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, transfer.ErrInvalidRecipient), errors.Is(err, transfer.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrWalletNotConnected), errors.Is(err, transfer.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, transfer.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, transfer.ErrDeclined):
		return http.StatusPreconditionFailed
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	records := []models.TransferRecord{}
	if s.history != nil {
		recent, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if recent != nil {
			records = recent
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": records})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.statusPayload(),
	})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// listenToHub subscribes before returning and forwards events to websocket
// clients until ctx ends.
func (s *Server) listenToHub(ctx context.Context) {
	sub := s.hub.Subscribe()
	go s.forward(ctx, sub)
}

func (s *Server) forward(ctx context.Context, sub events.Subscriber) {
	defer s.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		}
	}
}

func (s *Server) broadcast(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
