package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"liuproxy_checker/internal/shared/globalstate"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/dispatcher"
	"liuproxy_checker/proxypool/model"
)

// CheckerController defines the interface that the web handler uses to interact with the proxy manager.
// This decouples the web package from the proxypool package.
type CheckerController interface {
	ListProxies() []model.ProxyDescriptor
	AddProxy(host, port, kind string) (model.ProxyDescriptor, bool)
	DeleteProxies(ids []string) int
	StartRun() (*dispatcher.Run, error)
	Status() globalstate.RunStatus
}

// RowSource provides the current results table.
type RowSource interface {
	Rows() []Row
}

type Handler struct {
	controller CheckerController
	rows       RowSource
}

func NewHandler(controller CheckerController, rows RowSource) *Handler {
	return &Handler{
		controller: controller,
		rows:       rows,
	}
}

// addProxyRequest 的 port 同时接受数字和字符串形式。
type addProxyRequest struct {
	Host string      `json:"host"`
	Port json.Number `json:"port"`
	Kind string      `json:"kind"`
}

type deleteProxiesRequest struct {
	IDs []string `json:"ids"`
}

// HandleProxies 处理 GET/POST /api/proxies 请求
func (h *Handler) HandleProxies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.controller.ListProxies())
	case http.MethodPost:
		h.addProxy(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) addProxy(w http.ResponseWriter, r *http.Request) {
	var req addProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	d, ok := h.controller.AddProxy(strings.TrimSpace(req.Host), req.Port.String(), req.Kind)
	if !ok {
		http.Error(w, "Invalid proxy: host, port and kind are required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleDeleteProxies 处理 POST /api/proxies/delete 请求
func (h *Handler) HandleDeleteProxies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req deleteProxiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	n := h.controller.DeleteProxies(req.IDs)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// HandleRun 处理 POST /api/run 请求，立即返回，验证在后台进行。
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, err := h.controller.StartRun()
	if errors.Is(err, dispatcher.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("[Handler] Failed to start validation run")
		http.Error(w, "Failed to start run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Info().Str("run_id", run.ID).Int("total", run.Total()).Msg("[Handler] Validation run started.")
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": run.ID,
		"total":  run.Total(),
	})
}

// HandleRows 处理 GET /api/rows 请求
func (h *Handler) HandleRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.rows.Rows())
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		GlobalStatus string                `json:"globalStatus"`
		Run          globalstate.RunStatus `json:"run"`
	}
	st := h.controller.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		GlobalStatus: st.String(),
		Run:          st,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("[Handler] Failed to write JSON response")
	}
}
