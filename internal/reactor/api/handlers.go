// Package api exposes the reactor's HTTP surface: read submission, auth,
// dashboard streaming, and the agent control/data planes.
package api

import (
	"encoding/gob"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Liyixin95/polars/internal/reactor/hub"
	"github.com/Liyixin95/polars/internal/reactor/store"
	"github.com/Liyixin95/polars/internal/security"
	"github.com/Liyixin95/polars/internal/worker"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS middleware
	},
}

const sessionTTL = 24 * time.Hour

type Handler struct {
	Store      *store.Store
	Hub        *hub.Hub
	Pool       *worker.Pool
	APISecret  string
	JWTSecret  string
	JobTimeout time.Duration
}

func NewHandler(s *store.Store, h *hub.Hub, pool *worker.Pool, apiSecret, jwtSecret string, jobTimeout time.Duration) *Handler {
	return &Handler{
		Store:      s,
		Hub:        h,
		Pool:       pool,
		APISecret:  apiSecret,
		JWTSecret:  jwtSecret,
		JobTimeout: jobTimeout,
	}
}

// --- Read Submission ---

type ReadRequest struct {
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
	BatchSize  int            `json:"batch_size,omitempty"`
	Email      string         `json:"email"`
	Format     string         `json:"format,omitempty"`
}

// HandleRead accepts an HMAC-signed read submission and queues it on the
// worker pool. The response is immediate; completion arrives by email and
// on the dashboard stream.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := security.VerifyHMAC(
		h.APISecret, r.Method, r.URL.Path, string(body),
		r.Header.Get("X-Timestamp"), r.Header.Get("X-Signature"),
	); err != nil {
		slog.Warn("Rejected unsigned read submission", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ReadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := security.ValidateQuery(req.Query); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := security.ValidateEmail(req.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.BatchSize < 0 {
		http.Error(w, "batch_size must not be negative", http.StatusBadRequest)
		return
	}

	job := worker.NewReadJob(req.Query, req.Email, req.Format, req.BatchSize, h.JobTimeout)
	job.Parameters = req.Parameters

	if !h.Pool.Submit(job) {
		http.Error(w, "Queue full, try again later", http.StatusServiceUnavailable)
		return
	}

	h.Hub.Broadcast(hub.ReadUpdate{
		Type:   "job_start",
		JobID:  job.ID,
		Status: string(job.Status),
	})

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

// --- Auth Handlers ---

type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := security.ValidateEmail(req.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateUser(req.Email, req.Password); err != nil {
		slog.Error("Register failed", "error", err)
		http.Error(w, "Email already exists or DB error", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "User created"})
}

// HandleLogin verifies credentials and issues a session JWT.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.Store.AuthenticateUser(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := security.IssueToken(h.JWTSecret, user.ID, user.Email, sessionTTL)
	if err != nil {
		slog.Error("Token issuance failed", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{"token": token, "user": user})
}

// session resolves the Bearer token on a request, or writes a 401.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *security.SessionClaims {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		http.Error(w, "Missing session token", http.StatusUnauthorized)
		return nil
	}
	claims, err := security.VerifyToken(h.JWTSecret, auth[len(prefix):])
	if err != nil {
		http.Error(w, "Invalid session token", http.StatusUnauthorized)
		return nil
	}
	return claims
}

// --- API Key Handlers ---

type CreateKeyRequest struct {
	Type string `json:"type"` // "live" or "test"
}

func (h *Handler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := h.session(w, r)
	if claims == nil {
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Type != "live" && req.Type != "test" {
		http.Error(w, "Key type must be 'live' or 'test'", http.StatusBadRequest)
		return
	}

	key, err := h.Store.CreateAPIKey(claims.UserID, req.Type)
	if err != nil {
		slog.Error("Create key failed", "error", err)
		http.Error(w, "Failed to create key", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"key": key, "type": req.Type})
}

func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := h.session(w, r)
	if claims == nil {
		return
	}

	keys, err := h.Store.ListAPIKeys(claims.UserID)
	if err != nil {
		slog.Error("List keys failed", "error", err)
		http.Error(w, "Failed to list keys", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(keys)
}

// --- Dashboard Handler ---

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Dashboard upgrade failed", "error", err)
		return
	}

	h.Hub.Register(conn)

	// Keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.Hub.Unregister(conn)
			break
		}
	}
}

// --- Agent Handlers ---

type JobCommand struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	BatchSize int    `json:"batch_size"`
}

// HandleControl holds the agent's command channel. Test keys are sandboxed
// onto the fixture table with small batches.
func (h *Handler) HandleControl(w http.ResponseWriter, r *http.Request) {
	agentKeyRaw := r.Header.Get("X-Agent-Key")
	if agentKeyRaw == "" {
		http.Error(w, "Missing Agent Key", http.StatusUnauthorized)
		return
	}

	apiKey, err := h.Store.VerifyAPIKey(agentKeyRaw)
	if err != nil {
		slog.Warn("Invalid agent key", "error", err)
		http.Error(w, "Invalid Agent Key", http.StatusUnauthorized)
		return
	}

	slog.Info("Agent connected (control)", "key_id", apiKey.ID, "type", apiKey.Type)
	h.Hub.UpdateAgentCount(1)
	defer h.Hub.UpdateAgentCount(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	isSandbox := apiKey.Type == "test"

	go func() {
		delay := 5 * time.Second
		if isSandbox {
			delay = 2 * time.Second
		}
		time.Sleep(delay)

		job := JobCommand{
			ID:        "job_" + apiKey.Type + "_" + time.Now().Format("150405"),
			Query:     "SELECT id, name, value FROM test_data ORDER BY id",
			BatchSize: 100,
		}
		if isSandbox {
			job.BatchSize = 2
		}

		payload, _ := json.Marshal(job)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Error("Failed to send job", "error", err)
			return
		}
		slog.Info("Dispatched read job", "id", job.ID, "sandbox", isSandbox)

		h.Hub.Broadcast(hub.ReadUpdate{
			Type:   "job_start",
			JobID:  job.ID,
			Status: "dispatched",
		})
	}()

	for {
		if _, _, err := conn.NextReader(); err != nil {
			slog.Info("Agent disconnected (control)")
			break
		}
	}
}

// HandleData receives one job's result stream: a gob-encoded column header
// followed by one gob-encoded row batch per message group.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	slog.Info("Agent connected (data stream)", "job_id", jobID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	dec := gob.NewDecoder(&WSReader{Conn: conn})

	var columns []string
	if err := dec.Decode(&columns); err != nil {
		slog.Error("Failed to decode columns", "error", err)
		return
	}
	slog.Info("Received schema", "job_id", jobID, "columns", columns)

	rowCount := 0
	batchCount := 0
	for {
		var rows [][]any
		if err := dec.Decode(&rows); err != nil {
			if err.Error() == "EOF" {
				break
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			slog.Info("Stream ended", "job_id", jobID, "reason", err)
			break
		}
		batchCount++
		rowCount += len(rows)

		h.Hub.Broadcast(hub.ReadUpdate{
			Type:  "batch",
			JobID: jobID,
			Rows:  rowCount,
			Batch: batchCount,
		})
	}

	slog.Info("Data stream complete", "job_id", jobID, "total_rows", rowCount, "batches", batchCount)
	h.Hub.Broadcast(hub.ReadUpdate{
		Type:   "job_complete",
		JobID:  jobID,
		Rows:   rowCount,
		Batch:  batchCount,
		Status: "completed " + strconv.Itoa(batchCount) + " batches",
	})
}

// WSReader adapts a websocket message stream to io.Reader for gob.
type WSReader struct {
	Conn   *websocket.Conn
	reader io.Reader
}

func (r *WSReader) Read(p []byte) (n int, err error) {
	if r.reader == nil {
		_, reader, err := r.Conn.NextReader()
		if err != nil {
			return 0, err
		}
		r.reader = reader
	}

	n, err = r.reader.Read(p)
	if err == io.EOF {
		r.reader = nil
		return r.Read(p) // Try next message
	}
	return n, err
}
