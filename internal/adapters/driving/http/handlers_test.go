package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	authenticateFn   func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	validateTokenFn  func(ctx context.Context, token string) (*domain.AuthContext, error)
	refreshTokenFn   func(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)
	logoutFn         func(ctx context.Context, token string) error
	changePasswordFn func(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
	if m.refreshTokenFn != nil {
		return m.refreshTokenFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, req)
	}
	return nil
}

type mockUserService struct {
	setupFn       func(ctx context.Context, req driving.SetupRequest) (*driving.SetupResponse, error)
	createFn      func(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error)
	getFn         func(ctx context.Context, id string) (*domain.User, error)
	listFn        func(ctx context.Context) ([]*domain.User, error)
	updateFn      func(ctx context.Context, id string, req driving.UpdateUserRequest) (*domain.User, error)
	deleteFn      func(ctx context.Context, id string) error
	setPasswordFn func(ctx context.Context, id string, password string) error
}

func (m *mockUserService) Setup(ctx context.Context, req driving.SetupRequest) (*driving.SetupResponse, error) {
	if m.setupFn != nil {
		return m.setupFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Create(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) List(ctx context.Context) ([]*domain.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Update(ctx context.Context, id string, req driving.UpdateUserRequest) (*domain.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("not implemented")
}

func (m *mockUserService) SetPassword(ctx context.Context, id string, password string) error {
	if m.setPasswordFn != nil {
		return m.setPasswordFn(ctx, id, password)
	}
	return nil
}

type mockEntityService struct {
	getFn               func(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error)
	listFn              func(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error)
	listVersionsFn      func(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error)
	getVersionFn        func(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error)
	listSetupElementsFn func(ctx context.Context, group string) ([]*domain.SetupElement, error)
}

func (m *mockEntityService) Get(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ref)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntityService) List(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, group, kind)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntityService) ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error) {
	if m.listVersionsFn != nil {
		return m.listVersionsFn(ctx, ref)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntityService) GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error) {
	if m.getVersionFn != nil {
		return m.getVersionFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntityService) ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error) {
	if m.listSetupElementsFn != nil {
		return m.listSetupElementsFn(ctx, group)
	}
	return nil, errors.New("not implemented")
}

type mockImportService struct {
	importFn      func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error)
	importAsyncFn func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportJob, error)
	getJobFn      func(ctx context.Context, id string) (*domain.ImportJob, error)
	listJobsFn    func(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error)
}

func (m *mockImportService) Import(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
	if m.importFn != nil {
		return m.importFn(ctx, group, document, actor, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockImportService) ImportAsync(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportJob, error) {
	if m.importAsyncFn != nil {
		return m.importAsyncFn(ctx, group, document, actor, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockImportService) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockImportService) ListJobs(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
	if m.listJobsFn != nil {
		return m.listJobsFn(ctx, group, limit)
	}
	return nil, errors.New("not implemented")
}

type mockExportService struct {
	exportFn func(ctx context.Context, group string) ([]byte, error)
}

func (m *mockExportService) Export(ctx context.Context, group string) ([]byte, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, group)
	}
	return nil, errors.New("not implemented")
}

type mockSettingsService struct {
	getFn    func(ctx context.Context) (*domain.ImportSettings, error)
	updateFn func(ctx context.Context, updaterID string, req driving.UpdateImportSettingsRequest) (*domain.ImportSettings, error)
}

func (m *mockSettingsService) Get(ctx context.Context) (*domain.ImportSettings, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSettingsService) Update(ctx context.Context, updaterID string, req driving.UpdateImportSettingsRequest) (*domain.ImportSettings, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, updaterID, req)
	}
	return nil, errors.New("not implemented")
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// withAuth attaches an auth context to the request, as the Authenticate
// middleware would.
func withAuth(req *http.Request, authCtx *domain.AuthContext) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), authContextKey, authCtx))
}

func authorCtx(groups ...string) *domain.AuthContext {
	return &domain.AuthContext{
		UserID: "user-1",
		Email:  "author@example.com",
		Role:   domain.RoleAuthor,
		Groups: groups,
	}
}

// Health endpoints

func TestHealthHandler(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestReadyHandler(t *testing.T) {
	server := &Server{
		version:     "test",
		db:          &mockPinger{},
		taskQueue:   nil,
		redisClient: &mockPinger{},
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ready" {
		t.Errorf("expected status 'ready', got %s", response["status"])
	}
}

func TestReadyHandler_DatabaseDown(t *testing.T) {
	server := &Server{
		version: "test",
		db:      &mockPinger{err: errors.New("connection refused")},
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	server := &Server{version: "1.2.3"}

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()

	server.handleVersion(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response["version"])
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	data := map[string]string{"foo": "bar"}
	writeJSON(rr, http.StatusCreated, data)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["foo"] != "bar" {
		t.Errorf("expected foo 'bar', got %s", response["foo"])
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "invalid input")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "invalid input" {
		t.Errorf("expected error 'invalid input', got %s", response["error"])
	}
}

// Authentication handlers

func TestHandleLogin_Success(t *testing.T) {
	expiresAt := time.Now().Add(1 * time.Hour)
	mockAuth := &mockAuthService{
		authenticateFn: func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
			if req.Email == "test@example.com" && req.Password == "password123" {
				return &domain.LoginResponse{
					Token:        "test-token",
					RefreshToken: "refresh-token",
					ExpiresAt:    expiresAt,
					User: &domain.UserSummary{
						ID:    "user-1",
						Email: "test@example.com",
						Name:  "Test User",
						Role:  domain.RoleAdmin,
					},
				}, nil
			}
			return nil, domain.ErrInvalidCredentials
		},
	}

	server := &Server{authService: mockAuth}

	body, _ := json.Marshal(domain.LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleLogin(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.LoginResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Token != "test-token" {
		t.Errorf("expected token 'test-token', got %s", response.Token)
	}
	if response.User.Email != "test@example.com" {
		t.Errorf("expected email 'test@example.com', got %s", response.User.Email)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &mockAuthService{
		authenticateFn: func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	server := &Server{authService: mockAuth}

	body, _ := json.Marshal(domain.LoginRequest{Email: "x@example.com", Password: "wrong"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleLogin(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleLogin_InvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString("invalid json"))
	rr := httptest.NewRecorder()

	server.handleLogin(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleRefresh_InvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewBufferString("invalid json"))
	rr := httptest.NewRecorder()

	server.handleRefresh(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleLogout_NoToken(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	rr := httptest.NewRecorder()

	server.handleLogout(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleChangePassword_Success(t *testing.T) {
	mockAuth := &mockAuthService{
		changePasswordFn: func(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
			if userID != "user-1" {
				t.Errorf("expected userID 'user-1', got %s", userID)
			}
			return nil
		},
	}
	server := &Server{authService: mockAuth}

	body, _ := json.Marshal(domain.ChangePasswordRequest{
		CurrentPassword: "old-password",
		NewPassword:     "new-password",
	})
	req := httptest.NewRequest("POST", "/api/v1/auth/change-password", bytes.NewBuffer(body))
	req = withAuth(req, authorCtx("idl"))
	rr := httptest.NewRecorder()

	server.handleChangePassword(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleChangePassword_WrongCurrentPassword(t *testing.T) {
	mockAuth := &mockAuthService{
		changePasswordFn: func(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
			return domain.ErrInvalidCredentials
		},
	}
	server := &Server{authService: mockAuth}

	body, _ := json.Marshal(domain.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "new-password",
	})
	req := httptest.NewRequest("POST", "/api/v1/auth/change-password", bytes.NewBuffer(body))
	req = withAuth(req, authorCtx("idl"))
	rr := httptest.NewRecorder()

	server.handleChangePassword(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleChangePassword_NoAuth(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/auth/change-password", bytes.NewBufferString("{}"))
	rr := httptest.NewRecorder()

	server.handleChangePassword(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

// Setup handler

func TestHandleSetup_Success(t *testing.T) {
	mockUsers := &mockUserService{
		setupFn: func(ctx context.Context, req driving.SetupRequest) (*driving.SetupResponse, error) {
			return &driving.SetupResponse{
				User:    &domain.User{ID: "user-1", Email: req.Email, Role: domain.RoleAdmin},
				Message: "setup complete",
			}, nil
		},
	}
	server := &Server{userService: mockUsers}

	body, _ := json.Marshal(driving.SetupRequest{
		Email:    "admin@example.com",
		Password: "password123",
		Name:     "Admin",
	})
	req := httptest.NewRequest("POST", "/api/v1/setup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleSetup(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
}

func TestHandleSetup_AlreadyComplete(t *testing.T) {
	mockUsers := &mockUserService{
		setupFn: func(ctx context.Context, req driving.SetupRequest) (*driving.SetupResponse, error) {
			return nil, domain.ErrForbidden
		},
	}
	server := &Server{userService: mockUsers}

	body, _ := json.Marshal(driving.SetupRequest{
		Email:    "admin@example.com",
		Password: "password123",
		Name:     "Admin",
	})
	req := httptest.NewRequest("POST", "/api/v1/setup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleSetup(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

// User handlers

func TestHandleGetMe(t *testing.T) {
	mockUsers := &mockUserService{
		getFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{
				ID:    id,
				Email: "author@example.com",
				Name:  "Author",
				Role:  domain.RoleAuthor,
			}, nil
		},
	}
	server := &Server{userService: mockUsers}

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req = withAuth(req, authorCtx("idl"))
	rr := httptest.NewRecorder()

	server.handleGetMe(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.UserSummary
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Email != "author@example.com" {
		t.Errorf("expected email 'author@example.com', got %s", response.Email)
	}
}

func TestHandleListUsers(t *testing.T) {
	mockUsers := &mockUserService{
		listFn: func(ctx context.Context) ([]*domain.User, error) {
			return []*domain.User{
				{ID: "user-1", Email: "a@example.com", Role: domain.RoleAdmin},
				{ID: "user-2", Email: "b@example.com", Role: domain.RoleViewer},
			}, nil
		},
	}
	server := &Server{userService: mockUsers}

	req := httptest.NewRequest("GET", "/api/v1/users", nil)
	rr := httptest.NewRecorder()

	server.handleListUsers(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response []*domain.UserSummary
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("expected 2 users, got %d", len(response))
	}
}

func TestHandleCreateUser_InvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewBufferString("invalid json"))
	rr := httptest.NewRecorder()

	server.handleCreateUser(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleCreateUser_Conflict(t *testing.T) {
	mockUsers := &mockUserService{
		createFn: func(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error) {
			return nil, domain.ErrAlreadyExists
		},
	}
	server := &Server{userService: mockUsers}

	body, _ := json.Marshal(driving.CreateUserRequest{
		Email:    "dup@example.com",
		Password: "password123",
		Name:     "Dup",
		Role:     domain.RoleViewer,
	})
	req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleCreateUser(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleCreateUser_UnknownGroup(t *testing.T) {
	mockUsers := &mockUserService{
		createFn: func(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error) {
			return nil, domain.ErrUnknownGroup
		},
	}
	server := &Server{userService: mockUsers}

	body, _ := json.Marshal(driving.CreateUserRequest{
		Email:    "new@example.com",
		Password: "password123",
		Name:     "New",
		Role:     domain.RoleAuthor,
		Groups:   []string{"nonexistent"},
	})
	req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleCreateUser(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleUpdateUser_NotFound(t *testing.T) {
	mockUsers := &mockUserService{
		updateFn: func(ctx context.Context, id string, req driving.UpdateUserRequest) (*domain.User, error) {
			return nil, domain.ErrNotFound
		},
	}
	server := &Server{userService: mockUsers}

	req := httptest.NewRequest("PUT", "/api/v1/users/nope", bytes.NewBufferString("{}"))
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()

	server.handleUpdateUser(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleDeleteUser_Success(t *testing.T) {
	deleted := ""
	mockUsers := &mockUserService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	server := &Server{userService: mockUsers}

	req := httptest.NewRequest("DELETE", "/api/v1/users/user-2", nil)
	req.SetPathValue("id", "user-2")
	rr := httptest.NewRecorder()

	server.handleDeleteUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if deleted != "user-2" {
		t.Errorf("expected user-2 to be deleted, got %q", deleted)
	}
}

func TestHandleSetUserPassword_Success(t *testing.T) {
	mockUsers := &mockUserService{
		setPasswordFn: func(ctx context.Context, id string, password string) error {
			if password != "new-password" {
				t.Errorf("expected password 'new-password', got %s", password)
			}
			return nil
		},
	}
	server := &Server{userService: mockUsers}

	body, _ := json.Marshal(setPasswordRequest{Password: "new-password"})
	req := httptest.NewRequest("PUT", "/api/v1/users/user-2/password", bytes.NewBuffer(body))
	req.SetPathValue("id", "user-2")
	rr := httptest.NewRecorder()

	server.handleSetUserPassword(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

// Import handler

func importRequest(t *testing.T, target string, document []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", target, bytes.NewReader(document))
	req.Header.Set("Content-Type", docxContentType)
	req.SetPathValue("group", "idl")
	return withAuth(req, authorCtx("idl"))
}

func TestHandleImport_Committed(t *testing.T) {
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			if group != "idl" {
				t.Errorf("expected group 'idl', got %s", group)
			}
			if actor != "author@example.com" {
				t.Errorf("expected actor 'author@example.com', got %s", actor)
			}
			if opts.Force || opts.DryRun {
				t.Errorf("expected default options, got %+v", opts)
			}
			return &domain.ImportResult{
				Group:     group,
				Committed: true,
				Created: []domain.EntityIdentity{
					{Kind: domain.KindNeed, Group: group, Num: 7, Version: 1},
				},
			}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var result domain.ImportResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Committed {
		t.Error("expected committed result")
	}
	if len(result.Created) != 1 {
		t.Errorf("expected 1 created entity, got %d", len(result.Created))
	}
}

func TestHandleImport_RolledBack(t *testing.T) {
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			return &domain.ImportResult{
				Group:     group,
				Committed: false,
				Errors: []domain.ValidationIssue{
					{Severity: domain.SeverityError, Kind: domain.IssueVersionConflict, Message: "stored version is 3, document asserts 2"},
				},
			}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}

	var result domain.ImportResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Committed {
		t.Error("expected uncommitted result")
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(result.Errors))
	}
}

func TestHandleImport_DryRun(t *testing.T) {
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			if !opts.DryRun {
				t.Error("expected dry run option")
			}
			// Dry runs always roll back
			return &domain.ImportResult{Group: group, Committed: false}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import?dry_run=true", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	// A dry run is not an error even though nothing was committed
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleImport_ForceOption(t *testing.T) {
	var gotOpts domain.ImportOptions
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			gotOpts = opts
			return &domain.ImportResult{Group: group, Committed: true}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import?force=true", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if !gotOpts.Force {
		t.Error("expected force option to be passed through")
	}
	if gotOpts.DryRun {
		t.Error("expected dry_run to stay false")
	}
}

func TestHandleImport_Async(t *testing.T) {
	mockImport := &mockImportService{
		importAsyncFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportJob, error) {
			return &domain.ImportJob{
				ID:     "job-1",
				Group:  group,
				Actor:  actor,
				Status: domain.JobStatusQueued,
			}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import?async=true", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}

	var job domain.ImportJob
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Errorf("expected queued job, got %s", job.Status)
	}
}

func TestHandleImport_UnreadableDocument(t *testing.T) {
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			return nil, domain.ErrUnreadableDocument
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import", []byte("not a docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleImport_UnknownGroup(t *testing.T) {
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			return nil, domain.ErrUnknownGroup
		},
	}
	server := &Server{importService: mockImport}

	req := importRequest(t, "/api/v1/groups/idl/import", []byte("PK\x03\x04fake-docx"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleImport_EmptyBody(t *testing.T) {
	server := &Server{}

	req := importRequest(t, "/api/v1/groups/idl/import", nil)
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleImport_NoAuth(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/groups/idl/import", bytes.NewReader([]byte("doc")))
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleImport_MultipartUpload(t *testing.T) {
	payload := []byte("PK\x03\x04multipart-docx")
	mockImport := &mockImportService{
		importFn: func(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
			if !bytes.Equal(document, payload) {
				t.Errorf("expected uploaded document bytes to be passed through")
			}
			return &domain.ImportResult{Group: group, Committed: true}, nil
		},
	}
	server := &Server{importService: mockImport}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "needs.docx")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/groups/idl/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("group", "idl")
	req = withAuth(req, authorCtx("idl"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleImport_MultipartMissingField(t *testing.T) {
	server := &Server{}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/groups/idl/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("group", "idl")
	req = withAuth(req, authorCtx("idl"))
	rr := httptest.NewRecorder()

	server.handleImport(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Export handler

func TestHandleExport_Success(t *testing.T) {
	document := []byte("PK\x03\x04rendered-docx")
	mockExport := &mockExportService{
		exportFn: func(ctx context.Context, group string) ([]byte, error) {
			if group != "idl" {
				t.Errorf("expected group 'idl', got %s", group)
			}
			return document, nil
		},
	}
	server := &Server{exportService: mockExport}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/export", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleExport(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != docxContentType {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected Content-Disposition header")
	}
	if !bytes.Equal(rr.Body.Bytes(), document) {
		t.Error("expected document bytes in response body")
	}
}

func TestHandleExport_UnknownGroup(t *testing.T) {
	mockExport := &mockExportService{
		exportFn: func(ctx context.Context, group string) ([]byte, error) {
			return nil, domain.ErrUnknownGroup
		},
	}
	server := &Server{exportService: mockExport}

	req := httptest.NewRequest("GET", "/api/v1/groups/zzz/export", nil)
	req.SetPathValue("group", "zzz")
	rr := httptest.NewRecorder()

	server.handleExport(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Job handlers

func TestHandleListJobs_DefaultLimit(t *testing.T) {
	mockImport := &mockImportService{
		listJobsFn: func(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
			if limit != 20 {
				t.Errorf("expected default limit 20, got %d", limit)
			}
			return []*domain.ImportJob{{ID: "job-1", Group: group}}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/jobs", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListJobs(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleListJobs_LimitCapped(t *testing.T) {
	mockImport := &mockImportService{
		listJobsFn: func(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
			if limit != 100 {
				t.Errorf("expected limit capped at 100, got %d", limit)
			}
			return nil, nil
		},
	}
	server := &Server{importService: mockImport}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/jobs?limit=5000", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListJobs(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleListJobs_InvalidLimit(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/jobs?limit=abc", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListJobs(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetJob_NotFound(t *testing.T) {
	mockImport := &mockImportService{
		getJobFn: func(ctx context.Context, id string) (*domain.ImportJob, error) {
			return nil, domain.ErrNotFound
		},
	}
	server := &Server{importService: mockImport}

	req := httptest.NewRequest("GET", "/api/v1/jobs/nope", nil)
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()

	server.handleGetJob(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetJob_Success(t *testing.T) {
	mockImport := &mockImportService{
		getJobFn: func(ctx context.Context, id string) (*domain.ImportJob, error) {
			return &domain.ImportJob{
				ID:     id,
				Group:  "idl",
				Status: domain.JobStatusCompleted,
				Result: &domain.ImportResult{Group: "idl", Committed: true},
			}, nil
		},
	}
	server := &Server{importService: mockImport}

	req := httptest.NewRequest("GET", "/api/v1/jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	rr := httptest.NewRecorder()

	server.handleGetJob(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var job domain.ImportJob
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("expected completed job, got %s", job.Status)
	}
	if job.Result == nil || !job.Result.Committed {
		t.Error("expected committed result on job")
	}
}

// Entity handlers

func TestHandleListEntities_KindFilter(t *testing.T) {
	mockEntities := &mockEntityService{
		listFn: func(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error) {
			if kind != domain.KindRequirement {
				t.Errorf("expected kind 'or', got %s", kind)
			}
			return []*domain.EntityRecord{
				{Identity: domain.EntityIdentity{Kind: kind, Group: group, Num: 1, Version: 2}, Title: "Radio link"},
			}, nil
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities?kind=or", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListEntities(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var records []*domain.EntityRecord
	if err := json.NewDecoder(rr.Body).Decode(&records); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestHandleListEntities_InvalidKind(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities?kind=xx", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListEntities(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetEntity_Success(t *testing.T) {
	mockEntities := &mockEntityService{
		getFn: func(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
			want := domain.EntityIdentity{Kind: domain.KindNeed, Group: "idl", Num: 42}
			if ref != want {
				t.Errorf("expected ref %v, got %v", want, ref)
			}
			return &domain.EntityRecord{
				Identity: domain.EntityIdentity{Kind: ref.Kind, Group: ref.Group, Num: ref.Num, Version: 3},
				Title:    "Secure comms",
			}, nil
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/on/42", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "on")
	req.SetPathValue("num", "42")
	rr := httptest.NewRecorder()

	server.handleGetEntity(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var record domain.EntityRecord
	if err := json.NewDecoder(rr.Body).Decode(&record); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if record.Identity.Version != 3 {
		t.Errorf("expected version 3, got %d", record.Identity.Version)
	}
}

func TestHandleGetEntity_InvalidKind(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/xx/1", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "xx")
	req.SetPathValue("num", "1")
	rr := httptest.NewRecorder()

	server.handleGetEntity(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetEntity_InvalidNum(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/on/abc", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "on")
	req.SetPathValue("num", "abc")
	rr := httptest.NewRecorder()

	server.handleGetEntity(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetEntity_NotFound(t *testing.T) {
	mockEntities := &mockEntityService{
		getFn: func(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
			return nil, domain.ErrNotFound
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/on/999", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "on")
	req.SetPathValue("num", "999")
	rr := httptest.NewRecorder()

	server.handleGetEntity(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleListVersions_Success(t *testing.T) {
	mockEntities := &mockEntityService{
		listVersionsFn: func(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error) {
			return []*domain.EntityVersion{
				{Identity: domain.EntityIdentity{Kind: ref.Kind, Group: ref.Group, Num: ref.Num, Version: 1}},
				{Identity: domain.EntityIdentity{Kind: ref.Kind, Group: ref.Group, Num: ref.Num, Version: 2}},
			}, nil
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/or/5/versions", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "or")
	req.SetPathValue("num", "5")
	rr := httptest.NewRecorder()

	server.handleListVersions(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var versions []*domain.EntityVersion
	if err := json.NewDecoder(rr.Body).Decode(&versions); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("expected 2 versions, got %d", len(versions))
	}
}

func TestHandleGetVersion_Success(t *testing.T) {
	mockEntities := &mockEntityService{
		getVersionFn: func(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error) {
			if id.Version != 2 {
				t.Errorf("expected version 2, got %d", id.Version)
			}
			return &domain.EntityVersion{Identity: id, Title: "Old title"}, nil
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/oc/3/versions/2", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "oc")
	req.SetPathValue("num", "3")
	req.SetPathValue("version", "2")
	rr := httptest.NewRecorder()

	server.handleGetVersion(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleGetVersion_InvalidVersion(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/entities/oc/3/versions/zero", nil)
	req.SetPathValue("group", "idl")
	req.SetPathValue("kind", "oc")
	req.SetPathValue("num", "3")
	req.SetPathValue("version", "zero")
	rr := httptest.NewRecorder()

	server.handleGetVersion(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleListSetupElements(t *testing.T) {
	mockEntities := &mockEntityService{
		listSetupElementsFn: func(ctx context.Context, group string) ([]*domain.SetupElement, error) {
			return []*domain.SetupElement{
				{ID: 1, Group: group, Name: "Ground Segment"},
				{ID: 2, Group: group, Name: "User Segment"},
			}, nil
		},
	}
	server := &Server{entityService: mockEntities}

	req := httptest.NewRequest("GET", "/api/v1/groups/idl/setup-elements", nil)
	req.SetPathValue("group", "idl")
	rr := httptest.NewRecorder()

	server.handleListSetupElements(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var elements []*domain.SetupElement
	if err := json.NewDecoder(rr.Body).Decode(&elements); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(elements) != 2 {
		t.Errorf("expected 2 elements, got %d", len(elements))
	}
}

// Settings handlers

func TestHandleGetSettings(t *testing.T) {
	mockSettings := &mockSettingsService{
		getFn: func(ctx context.Context) (*domain.ImportSettings, error) {
			return domain.DefaultImportSettings(), nil
		},
	}
	server := &Server{settingsService: mockSettings}

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	rr := httptest.NewRecorder()

	server.handleGetSettings(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var settings domain.ImportSettings
	if err := json.NewDecoder(rr.Body).Decode(&settings); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if settings.NoopUpdates != domain.NoopUpdateVersion {
		t.Errorf("expected default noop policy, got %s", settings.NoopUpdates)
	}
}

func TestHandleUpdateSettings_Success(t *testing.T) {
	skip := domain.NoopUpdateSkip
	mockSettings := &mockSettingsService{
		updateFn: func(ctx context.Context, updaterID string, req driving.UpdateImportSettingsRequest) (*domain.ImportSettings, error) {
			if updaterID != "user-1" {
				t.Errorf("expected updater 'user-1', got %s", updaterID)
			}
			if req.NoopUpdates == nil || *req.NoopUpdates != domain.NoopUpdateSkip {
				t.Error("expected noop_updates skip in request")
			}
			return &domain.ImportSettings{
				NoopUpdates:          domain.NoopUpdateSkip,
				UnknownSetupElements: domain.SetupElementReject,
				UpdatedBy:            updaterID,
			}, nil
		},
	}
	server := &Server{settingsService: mockSettings}

	body, _ := json.Marshal(driving.UpdateImportSettingsRequest{NoopUpdates: &skip})
	req := httptest.NewRequest("PUT", "/api/v1/settings", bytes.NewBuffer(body))
	req = withAuth(req, &domain.AuthContext{UserID: "user-1", Role: domain.RoleAdmin})
	rr := httptest.NewRecorder()

	server.handleUpdateSettings(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleUpdateSettings_InvalidPolicy(t *testing.T) {
	mockSettings := &mockSettingsService{
		updateFn: func(ctx context.Context, updaterID string, req driving.UpdateImportSettingsRequest) (*domain.ImportSettings, error) {
			return nil, domain.ErrInvalidInput
		},
	}
	server := &Server{settingsService: mockSettings}

	req := httptest.NewRequest("PUT", "/api/v1/settings", bytes.NewBufferString(`{"noop_updates":"sideways"}`))
	req = withAuth(req, &domain.AuthContext{UserID: "user-1", Role: domain.RoleAdmin})
	rr := httptest.NewRecorder()

	server.handleUpdateSettings(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}
