// Package handler содержит HTTP-обработчики локальной поверхности консоли.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/workspace-africa/partner-console/internal/dashboard"
	"github.com/workspace-africa/partner-console/internal/model"
	"github.com/workspace-africa/partner-console/internal/portal"
	"github.com/workspace-africa/partner-console/internal/scaninput"
	"github.com/workspace-africa/partner-console/internal/service"
	"github.com/workspace-africa/partner-console/internal/session"
	"github.com/workspace-africa/partner-console/internal/validator"
)

// Service определяет контракт прикладной логики, используемой обработчиками.
type Service interface {
	Login(ctx context.Context, identifier, secret string) (model.Role, error)
	Signup(ctx context.Context, name, email, secret string) error
	Logout() error
	CurrentRole() (model.Role, bool)
	StartScanner(ctx context.Context) error
	StopScanner() error
	SubmitManual(value string) error
	SubmitCameraDecode(value string) error
	ResetScanner() error
	ScannerState() (validator.Snapshot, error)
	SpaceInfo(ctx context.Context) (*model.ManagedSpace, error)
	Dashboard(ctx context.Context, from, to time.Time) (*dashboard.Summary, error)
}

// Handler реализует HTTP-обработчики консоли партнёра.
type Handler struct {
	service Service
	guard   *session.Guard
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, guard *session.Guard, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		guard:   guard,
		logger:  logger,
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Login выполняет вход оператора.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Identifier == "" || req.Secret == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role, err := h.service.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, portal.ErrInvalidCredentials):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, service.ErrRoleDenied):
			http.Error(w, "account has no partner access", http.StatusForbidden)
		case errors.Is(err, portal.ErrUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("login error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]string{"role": string(role)})
}

type signupRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// Signup создаёт заявку на партнёрский аккаунт.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Secret == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.Signup(r.Context(), req.Name, req.Email, req.Secret); err != nil {
		var be *portal.BusinessError
		switch {
		case errors.As(err, &be):
			http.Error(w, be.Message, http.StatusBadRequest)
		case errors.Is(err, portal.ErrUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("signup error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию оператора. Повторный выход безопасен.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(); err != nil {
		h.logger.Error("logout error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Session возвращает роль текущей сессии.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	role, ok := h.service.CurrentRole()
	if !ok {
		session.WriteRedirect(w)
		return
	}
	writeJSON(w, map[string]string{"role": string(role)})
}

// Space возвращает пространство, закреплённое за оператором.
func (h *Handler) Space(w http.ResponseWriter, r *http.Request) {
	space, err := h.service.SpaceInfo(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "space info error")
		return
	}
	writeJSON(w, space)
}

// Dashboard возвращает сводку посещений за период. Без параметров период —
// текущий месяц.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	summary, err := h.service.Dashboard(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, err, "dashboard error")
		return
	}
	writeJSON(w, summary)
}

// StartScanner открывает сеанс сканирования.
func (h *Handler) StartScanner(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StartScanner(r.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrScannerActive):
			http.Error(w, "scanner already active", http.StatusConflict)
		case errors.Is(err, service.ErrNoSpace):
			http.Error(w, "no managed space assigned", http.StatusConflict)
		default:
			h.writeServiceError(w, err, "start scanner error")
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StopScanner закрывает сеанс сканирования.
func (h *Handler) StopScanner(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StopScanner(); err != nil {
		h.logger.Error("stop scanner error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type manualCodeRequest struct {
	Code string `json:"code"`
}

// SubmitCode принимает код, введённый оператором вручную. Код неверного
// формата отклоняется до каких-либо сетевых вызовов.
func (h *Handler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req manualCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitManual(req.Code); err != nil {
		switch {
		case errors.Is(err, scaninput.ErrInvalidFormat):
			http.Error(w, "code must be exactly six digits", http.StatusUnprocessableEntity)
		case errors.Is(err, scaninput.ErrBusy):
			http.Error(w, "validation in progress", http.StatusConflict)
		case errors.Is(err, service.ErrScannerInactive):
			http.Error(w, "scanner session not active", http.StatusConflict)
		default:
			h.logger.Error("submit code error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type cameraDecodeRequest struct {
	Value string `json:"value"`
}

// SubmitDecode принимает очередное значение, распознанное камерой.
// Повторы и шум отбрасываются молча, поэтому ответ всегда 202.
func (h *Handler) SubmitDecode(w http.ResponseWriter, r *http.Request) {
	var req cameraDecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitCameraDecode(req.Value); err != nil {
		if errors.Is(err, service.ErrScannerInactive) {
			http.Error(w, "scanner session not active", http.StatusConflict)
			return
		}
		h.logger.Error("submit decode error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ResetScanner — действие «сканировать следующего».
func (h *Handler) ResetScanner(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetScanner(); err != nil {
		if errors.Is(err, service.ErrScannerInactive) {
			http.Error(w, "scanner session not active", http.StatusConflict)
			return
		}
		h.logger.Error("reset scanner error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ScannerState возвращает наблюдаемое состояние автомата проверки.
func (h *Handler) ScannerState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ScannerState()
	if err != nil {
		if errors.Is(err, service.ErrScannerInactive) {
			http.Error(w, "scanner session not active", http.StatusConflict)
			return
		}
		h.logger.Error("scanner state error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snap)
}

// writeServiceError транслирует общие ошибки сервиса в HTTP-статусы.
// Истёкшая сессия всегда превращается в указание перейти на точку входа.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		session.WriteRedirect(w)
	case errors.Is(err, portal.ErrUnavailable):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// parseWindow читает границы периода из запроса. Пустые параметры дают
// период с начала текущего месяца по настоящий момент.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")

	if fromParam == "" && toParam == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, now, nil
	}

	var from, to time.Time
	var err error
	if fromParam != "" {
		if from, err = parseTimeParam(fromParam); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toParam != "" {
		if to, err = parseTimeParam(toParam); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", value)
}
