package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evmsend/pkg/events"
	"evmsend/pkg/models"
	"evmsend/pkg/transfer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type stubSession struct{ signer transfer.Signer }

func (s stubSession) Signer() transfer.Signer { return s.signer }

type stubSigner struct{ sent []transfer.Request }

func (s *stubSigner) Address() common.Address {
	return common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}
func (s *stubSigner) Provider() transfer.Provider { return s }
func (s *stubSigner) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(5), nil
}
func (s *stubSigner) SendTransaction(_ context.Context, req transfer.Request) (transfer.Pending, error) {
	s.sent = append(s.sent, req)
	return stubPending{}, nil
}

type stubPending struct{}

func (stubPending) Hash() common.Hash          { return common.HexToHash("0xabc") }
func (stubPending) Wait(context.Context) error { return nil }

// slowSigner broadcasts a transfer that is included after delay.
type slowSigner struct {
	stubSigner
	delay time.Duration
}

func (s *slowSigner) SendTransaction(_ context.Context, req transfer.Request) (transfer.Pending, error) {
	s.sent = append(s.sent, req)
	return slowPending{delay: s.delay}, nil
}

type slowPending struct{ delay time.Duration }

func (slowPending) Hash() common.Hash { return common.HexToHash("0xabc") }
func (p slowPending) Wait(ctx context.Context) error {
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type stubHistory []models.TransferRecord

func (h stubHistory) Recent(_ context.Context, n int) ([]models.TransferRecord, error) {
	if n > 0 && n < len(h) {
		return h[:n], nil
	}
	return h, nil
}

func newTestServer(t *testing.T, signer transfer.Signer, autoConfirm bool) (*Server, *events.Hub) {
	t.Helper()
	hub := events.NewHub()
	form := transfer.NewForm(stubSession{signer: signer}, NewInteractor(hub, autoConfirm), transfer.Options{
		RequireConfirmation: true,
		OnChange:            hub.StateObserver(),
	})
	s := NewServer(Config{
		Hub:  hub,
		Form: form,
		History: stubHistory{
			{Hash: "0x2", Amount: "2"},
			{Hash: "0x1", Amount: "1"},
		},
		Session: func() events.SessionInfo {
			return events.SessionInfo{Address: "0xf39F", Chain: "Goerli", ChainID: 5}
		},
	})
	return s, hub
}

func postSend(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, sendResponse) {
	t.Helper()
	req, _ := http.NewRequest("POST", "/api/send", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	var resp sendResponse
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	}
	return rr, resp
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, &stubSigner{}, false)

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "idle", resp["form"]["state"])
	assert.Equal(t, "Goerli", resp["session"]["chain"])
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name        string
		signer      transfer.Signer
		autoConfirm bool
		body        string
		wantCode    int
		wantState   string
		wantError   string
		wantSent    int
	}{
		{
			name:      "Confirmed",
			signer:    &stubSigner{},
			body:      `{"recipient":"` + recipient + `","amount":"0.5","confirm":true}`,
			wantCode:  http.StatusOK,
			wantState: "succeeded",
			wantSent:  1,
		},
		{
			name:        "Auto Confirm",
			signer:      &stubSigner{},
			autoConfirm: true,
			body:        `{"recipient":"` + recipient + `","amount":"1"}`,
			wantCode:    http.StatusOK,
			wantState:   "succeeded",
			wantSent:    1,
		},
		{
			name:      "Not Confirmed",
			signer:    &stubSigner{},
			body:      `{"recipient":"` + recipient + `","amount":"1"}`,
			wantCode:  http.StatusPreconditionFailed,
			wantState: "idle",
			wantError: "declined",
		},
		{
			name:      "Invalid Amount",
			signer:    &stubSigner{},
			body:      `{"recipient":"` + recipient + `","amount":"-1","confirm":true}`,
			wantCode:  http.StatusBadRequest,
			wantState: "failed",
			wantError: "invalid amount",
		},
		{
			name:      "No Wallet",
			body:      `{"recipient":"` + recipient + `","amount":"1","confirm":true}`,
			wantCode:  http.StatusServiceUnavailable,
			wantState: "failed",
			wantError: "wallet not connected",
		},
		{
			name:     "Bad Body",
			signer:   &stubSigner{},
			body:     `{"recipient":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.signer, tt.autoConfirm)
			rr, resp := postSend(t, s, tt.body)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, resp.State.String())
			}
			if tt.wantError != "" {
				assert.Contains(t, resp.Error, tt.wantError)
			}
			if stub, ok := tt.signer.(*stubSigner); ok {
				assert.Len(t, stub.sent, tt.wantSent)
			}
		})
	}
}

func TestHandleSend_Success(t *testing.T) {
	signer := &stubSigner{}
	s, hub := newTestServer(t, signer, false)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	rr, resp := postSend(t, s, `{"recipient":"`+recipient+`","amount":"0.5","confirm":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, common.HexToHash("0xabc").Hex(), resp.TxHash)
	assert.Equal(t, "https://goerli.etherscan.io/tx/"+resp.TxHash, resp.ExplorerURL)
	assert.Equal(t, "Goerli Testnet", resp.Network)
	assert.Equal(t, "ETH", resp.Currency)
	require.Len(t, signer.sent, 1)
	assert.Equal(t, "500000000000000000", signer.sent[0].Value.String())

	var seen []events.EventType
	for len(sub) > 0 {
		seen = append(seen, (<-sub).Type)
	}
	assert.Contains(t, seen, events.EventStateChanged)
	assert.Contains(t, seen, events.EventNotification)
	assert.Contains(t, seen, events.EventTransferSucceeded)
}

func TestHandleSend_ClientGoneDuringWait(t *testing.T) {
	signer := &slowSigner{delay: 300 * time.Millisecond}
	s, hub := newTestServer(t, signer, false)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	body := `{"recipient":"` + recipient + `","amount":"1","confirm":true}`
	req, _ := http.NewRequestWithContext(ctx, "POST", "/api/send", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp sendResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, transfer.StateSucceeded, resp.State)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), resp.TxHash)
	assert.Len(t, signer.sent, 1)
	assert.Equal(t, transfer.StateSucceeded, s.form.Snapshot().State)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == events.EventTransferSucceeded {
				return
			}
		case <-deadline:
			t.Fatal("transfer_succeeded was not published")
		}
	}
}

func TestHandleSend_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &stubSigner{}, false)
	req, _ := http.NewRequest("GET", "/api/send", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(transfer.ErrBusy))
	assert.Equal(t, http.StatusBadGateway, statusFor(&transfer.SubmissionError{Op: transfer.OpSend, Err: assert.AnError}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(transfer.ErrProviderUnavailable))
}

func TestHandleHistory(t *testing.T) {
	s, _ := newTestServer(t, &stubSigner{}, false)

	req, _ := http.NewRequest("GET", "/api/history?limit=1", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Transfers []models.TransferRecord `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Transfers, 1)
	assert.Equal(t, "0x2", resp.Transfers[0].Hash)

	req, _ = http.NewRequest("GET", "/api/history?limit=abc", nil)
	rr = httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleHistory_NoStore(t *testing.T) {
	s := NewServer(Config{Form: transfer.NewForm(nil, nil, transfer.Options{})})

	req, _ := http.NewRequest("GET", "/api/history", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"transfers":[]}`, rr.Body.String())
}

func TestHandleWS(t *testing.T) {
	s, hub := newTestServer(t, &stubSigner{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.listenToHub(ctx)

	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	assert.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])

	hub.Publish(events.Event{Type: events.EventNotification, Data: transfer.Notification{Title: "Success"}})
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string                `json:"type"`
		Data transfer.Notification `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, "Success", ev.Data.Title)
}
