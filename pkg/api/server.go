package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/pairswap/settle/pkg/swap"
)

// Server exposes the settlement engine over REST and streams its records
// over WebSocket
type Server struct {
	engine *swap.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(engine *swap.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		log:    logger.Sugar(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Settlement operations
	api.HandleFunc("/swap", s.handleSwap).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/orders/invalidate", s.handleInvalidate).Methods("POST")

	// Delegation operations
	api.HandleFunc("/delegates/authorize", s.handleAuthorize).Methods("POST")
	api.HandleFunc("/delegates/revoke", s.handleRevoke).Methods("POST")

	// Read surface
	api.HandleFunc("/orders/{wallet}/{nonce}/status", s.handleGetStatus).Methods("GET")
	api.HandleFunc("/wallets/{wallet}/watermark", s.handleGetWatermark).Methods("GET")
	api.HandleFunc("/delegates/{approver}/{delegate}", s.handleGetDelegate).Methods("GET")

	// WebSocket record stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the event pump and serves until the listener fails
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	go s.pumpEvents()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// pumpEvents forwards engine records to WebSocket subscribers
func (s *Server) pumpEvents() {
	for ev := range s.engine.Events() {
		s.hub.Broadcast(ev)
	}
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}
	order, err := req.Order.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	record, err := s.engine.Swap(caller, order)
	if err != nil {
		respondError(w, swapErrorStatus(err), "swap rejected", err.Error())
		return
	}
	respondJSON(w, record)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}

	records, err := s.engine.Cancel(caller, req.Nonces)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cancel failed", err.Error())
		return
	}
	if records == nil {
		records = []swap.CancelRecord{}
	}
	respondJSON(w, records)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}

	record, err := s.engine.Invalidate(caller, req.MinNonce)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "invalidate failed", err.Error())
		return
	}
	respondJSON(w, record)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}
	delegate, ok := parseAddress(req.Delegate)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid delegate address", req.Delegate)
		return
	}

	record, err := s.engine.Authorize(caller, delegate, req.Expiry)
	if err != nil {
		respondError(w, swapErrorStatus(err), "authorize rejected", err.Error())
		return
	}
	respondJSON(w, record)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}
	delegate, ok := parseAddress(req.Delegate)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid delegate address", req.Delegate)
		return
	}

	record, err := s.engine.Revoke(caller, delegate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "revoke failed", err.Error())
		return
	}
	respondJSON(w, record)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wallet, ok := parseAddress(vars["wallet"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid wallet address", vars["wallet"])
		return
	}
	nonce, err := strconv.ParseUint(vars["nonce"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid nonce", vars["nonce"])
		return
	}

	status, err := s.engine.Status(wallet, nonce)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "status read failed", err.Error())
		return
	}
	respondJSON(w, StatusResponse{Wallet: wallet.Hex(), Nonce: nonce, Status: status.String()})
}

func (s *Server) handleGetWatermark(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wallet, ok := parseAddress(vars["wallet"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid wallet address", vars["wallet"])
		return
	}

	mark, err := s.engine.Watermark(wallet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "watermark read failed", err.Error())
		return
	}
	respondJSON(w, WatermarkResponse{Wallet: wallet.Hex(), MinNonce: mark})
}

func (s *Server) handleGetDelegate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	approver, ok := parseAddress(vars["approver"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid approver address", vars["approver"])
		return
	}
	delegate, ok := parseAddress(vars["delegate"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid delegate address", vars["delegate"])
		return
	}

	expiry, err := s.engine.DelegateExpiry(approver, delegate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delegation read failed", err.Error())
		return
	}
	authorized, err := s.engine.IsAuthorized(approver, delegate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delegation read failed", err.Error())
		return
	}
	respondJSON(w, DelegateResponse{
		Approver:   approver.Hex(),
		Delegate:   delegate.Hex(),
		Expiry:     expiry,
		Authorized: authorized,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// swapErrorStatus maps the engine's rejection taxonomy onto HTTP codes
func swapErrorStatus(err error) int {
	switch {
	case errors.Is(err, swap.ErrOrderExpired),
		errors.Is(err, swap.ErrInvalidAuthDelegate),
		errors.Is(err, swap.ErrInvalidAuthExpiry):
		return http.StatusBadRequest
	case errors.Is(err, swap.ErrOrderAlreadyTaken),
		errors.Is(err, swap.ErrOrderAlreadyCanceled),
		errors.Is(err, swap.ErrNonceTooLow):
		return http.StatusConflict
	case errors.Is(err, swap.ErrSenderUnauthorized),
		errors.Is(err, swap.ErrSignerUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, swap.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, swap.ErrKindNotRegistered),
		errors.Is(err, swap.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Error:   error,
		Message: message,
	})
}
