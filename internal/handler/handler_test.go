package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/workspace-africa/partner-console/internal/credential"
	"github.com/workspace-africa/partner-console/internal/dashboard"
	"github.com/workspace-africa/partner-console/internal/model"
	"github.com/workspace-africa/partner-console/internal/portal"
	"github.com/workspace-africa/partner-console/internal/scaninput"
	"github.com/workspace-africa/partner-console/internal/service"
	"github.com/workspace-africa/partner-console/internal/session"
	"github.com/workspace-africa/partner-console/internal/validator"
)

type stubService struct {
	loginRole model.Role
	loginErr  error

	signupErr error

	currentRole model.Role
	hasRole     bool

	startErr  error
	submitErr error
	decodeErr error
	resetErr  error

	snapshot    validator.Snapshot
	snapshotErr error

	space    *model.ManagedSpace
	spaceErr error

	summary      *dashboard.Summary
	dashboardErr error
}

func (s *stubService) Login(ctx context.Context, identifier, secret string) (model.Role, error) {
	return s.loginRole, s.loginErr
}

func (s *stubService) Signup(ctx context.Context, name, email, secret string) error {
	return s.signupErr
}

func (s *stubService) Logout() error { return nil }

func (s *stubService) CurrentRole() (model.Role, bool) {
	return s.currentRole, s.hasRole
}

func (s *stubService) StartScanner(ctx context.Context) error { return s.startErr }
func (s *stubService) StopScanner() error                     { return nil }
func (s *stubService) SubmitManual(value string) error        { return s.submitErr }
func (s *stubService) SubmitCameraDecode(value string) error  { return s.decodeErr }
func (s *stubService) ResetScanner() error                    { return s.resetErr }

func (s *stubService) ScannerState() (validator.Snapshot, error) {
	return s.snapshot, s.snapshotErr
}

func (s *stubService) SpaceInfo(ctx context.Context) (*model.ManagedSpace, error) {
	return s.space, s.spaceErr
}

func (s *stubService) Dashboard(ctx context.Context, from, to time.Time) (*dashboard.Summary, error) {
	return s.summary, s.dashboardErr
}

func newTestHandler(t *testing.T, svc Service) (*Handler, *credential.Store) {
	t.Helper()

	store, err := credential.NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	return NewHandler(svc, session.NewGuard(store), zap.NewNop()), store
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		loginRole  model.Role
		loginErr   error
		wantStatus int
	}{
		{
			name:       "success",
			body:       loginRequest{Identifier: "p@example.com", Secret: "s"},
			loginRole:  model.RolePartner,
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty fields",
			body:       loginRequest{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid credentials",
			body:       loginRequest{Identifier: "p@example.com", Secret: "wrong"},
			loginErr:   portal.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "role denied",
			body:       loginRequest{Identifier: "m@example.com", Secret: "s"},
			loginErr:   service.ErrRoleDenied,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "portal down",
			body:       loginRequest{Identifier: "p@example.com", Secret: "s"},
			loginErr:   portal.ErrUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &stubService{loginRole: tt.loginRole, loginErr: tt.loginErr})
			router := h.SetupRouter()

			w := postJSON(t, router, "/api/console/login", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusOK && !strings.Contains(w.Body.String(), string(tt.loginRole)) {
				t.Fatalf("body %q does not contain role", w.Body.String())
			}
		})
	}
}

func TestProtectedRoutesRedirectWithoutCredential(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/console/session"},
		{http.MethodGet, "/api/console/dashboard"},
		{http.MethodGet, "/api/console/scanner"},
		{http.MethodPost, "/api/console/scanner/start"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want 401", p.method, p.path, w.Code)
		}
		if !strings.Contains(w.Body.String(), session.LoginPath) {
			t.Fatalf("%s %s: body %q does not point to login", p.method, p.path, w.Body.String())
		}
	}
}

func TestScannerRequiresPartnerRole(t *testing.T) {
	h, store := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	w := postJSON(t, router, "/api/console/scanner/start", struct{}{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for non-partner role", w.Code)
	}

	// Несовпадение роли очищает учётные данные.
	if _, ok := store.Get(); ok {
		t.Fatalf("credential must be cleared after role mismatch")
	}
}

func TestSubmitCodeTriage(t *testing.T) {
	tests := []struct {
		name       string
		submitErr  error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusAccepted},
		{name: "bad format", submitErr: scaninput.ErrInvalidFormat, wantStatus: http.StatusUnprocessableEntity},
		{name: "busy", submitErr: scaninput.ErrBusy, wantStatus: http.StatusConflict},
		{name: "inactive", submitErr: service.ErrScannerInactive, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newTestHandler(t, &stubService{submitErr: tt.submitErr})
			router := h.SetupRouter()

			if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RolePartner}); err != nil {
				t.Fatalf("Set error: %v", err)
			}

			w := postJSON(t, router, "/api/console/scanner/code", manualCodeRequest{Code: "123456"})
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestScannerStateReturnsSnapshot(t *testing.T) {
	snap := validator.Snapshot{
		State: validator.StateSuccess,
		Result: &model.ValidationResult{
			Status: model.StatusSuccess,
			Member: &model.Member{MemberName: "Ada O.", PlanName: "FLEX_PRO", RemainingAllowance: 12},
		},
	}
	h, store := newTestHandler(t, &stubService{snapshot: snap})
	router := h.SetupRouter()

	if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RolePartner}); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/console/scanner", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got validator.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.State != validator.StateSuccess || got.Result.Member.MemberName != "Ada O." {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestDashboardSessionExpiredRedirects(t *testing.T) {
	h, store := newTestHandler(t, &stubService{dashboardErr: service.ErrSessionExpired})
	router := h.SetupRouter()

	if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RolePartner}); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/console/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), session.LoginPath) {
		t.Fatalf("body %q does not point to login", w.Body.String())
	}
}

func TestDashboardReturnsSummary(t *testing.T) {
	h, store := newTestHandler(t, &stubService{summary: &dashboard.Summary{
		Total:           3,
		ByDay:           map[string]int{"2026-09-01": 3},
		ByMonth:         map[string]int{"2026-09": 3},
		EstimatedPayout: 450000,
	}})
	router := h.SetupRouter()

	if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/console/dashboard?from=2026-09-01&to=2026-10-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got dashboard.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got.Total != 3 || got.EstimatedPayout != 450000 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestDashboardBadWindow(t *testing.T) {
	h, store := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RolePartner}); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/console/dashboard?from=yesterday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartScannerConflicts(t *testing.T) {
	tests := []struct {
		name       string
		startErr   error
		wantStatus int
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "already active", startErr: service.ErrScannerActive, wantStatus: http.StatusConflict},
		{name: "no space", startErr: service.ErrNoSpace, wantStatus: http.StatusConflict},
		{name: "session expired", startErr: service.ErrSessionExpired, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newTestHandler(t, &stubService{startErr: tt.startErr})
			router := h.SetupRouter()

			if err := store.Set(model.Credential{AccessToken: "acc", Role: model.RolePartner}); err != nil {
				t.Fatalf("Set error: %v", err)
			}

			w := postJSON(t, router, "/api/console/scanner/start", struct{}{})
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
