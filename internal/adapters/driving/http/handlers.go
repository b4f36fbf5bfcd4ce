package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
)

// Uploaded documents larger than this are rejected outright.
const maxDocumentSize = 32 << 20 // 32 MiB

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database, queue and cache connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backend dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "task queue unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache unreachable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch err {
		case domain.ErrInvalidCredentials:
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case domain.ErrUnauthorized:
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Exchange a refresh token for a new JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid refresh token"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	_ = s.authService.Logout(r.Context(), token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChangePassword godoc
// @Summary      Change password
// @Description  Change the password of the authenticated user. Requires the current password.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ChangePasswordRequest  true  "Current and new password"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request or weak password"
// @Failure      401      {object}  ErrorResponse  "Current password incorrect"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/change-password [post]
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.authService.ChangePassword(r.Context(), authCtx.UserID, req); err != nil {
		switch err {
		case domain.ErrInvalidCredentials:
			writeError(w, http.StatusUnauthorized, "current password incorrect")
		case domain.ErrInvalidInput:
			writeError(w, http.StatusBadRequest, "invalid new password")
		default:
			writeError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Setup endpoint (no auth required, one-time use)

// handleSetup godoc
// @Summary      Initial setup
// @Description  Create the initial admin user. This endpoint can only be called once when no users exist.
// @Tags         Setup
// @Accept       json
// @Produce      json
// @Param        request  body      driving.SetupRequest  true  "Admin user details"
// @Success      201      {object}  driving.SetupResponse
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      403      {object}  ErrorResponse  "Setup already complete"
// @Failure      500      {object}  ErrorResponse  "Setup failed"
// @Router       /setup [post]
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req driving.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.userService.Setup(r.Context(), req)
	if err != nil {
		switch err {
		case domain.ErrInvalidInput:
			writeError(w, http.StatusBadRequest, "email, password, and name are required")
		case domain.ErrForbidden:
			writeError(w, http.StatusForbidden, "setup already complete")
		default:
			writeError(w, http.StatusInternalServerError, "setup failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// User endpoints

// handleGetMe godoc
// @Summary      Get current user
// @Description  Get the currently authenticated user's profile
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.userService.Get(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user.ToSummary())
}

// handleListUsers godoc
// @Summary      List all users
// @Description  Get a list of all users (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users [get]
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	summaries := make([]*domain.UserSummary, len(users))
	for i, u := range users {
		summaries[i] = u.ToSummary()
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleCreateUser godoc
// @Summary      Create user
// @Description  Create a new user (admin only)
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateUserRequest  true  "User details"
// @Success      201      {object}  domain.UserSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      409      {object}  ErrorResponse  "User already exists"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /users [post]
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.userService.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid input")
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusBadRequest, "unknown group")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user.ToSummary())
}

// handleGetUser godoc
// @Summary      Get user
// @Description  Get a user by ID (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /users/{id} [get]
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	user, err := s.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user.ToSummary())
}

// handleUpdateUser godoc
// @Summary      Update user
// @Description  Update a user's name, role, groups or active flag (admin only)
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        request  body      driving.UpdateUserRequest  true  "Fields to update"
// @Success      200      {object}  domain.UserSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404      {object}  ErrorResponse  "User not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /users/{id} [put]
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req driving.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.userService.Update(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid input")
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusBadRequest, "unknown group")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user.ToSummary())
}

// handleDeleteUser godoc
// @Summary      Delete user
// @Description  Delete a user by ID (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Missing user ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users/{id} [delete]
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if err := s.userService.Delete(r.Context(), id); err != nil {
		switch err {
		case domain.ErrNotFound:
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// setPasswordRequest carries an admin-set password for a user
// @Description Admin password reset request
type setPasswordRequest struct {
	Password string `json:"password" example:"s3cret-enough"`
}

// handleSetUserPassword godoc
// @Summary      Set user password
// @Description  Set a new password for a user without knowing the old one (admin only)
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true  "User ID"
// @Param        request  body      setPasswordRequest  true  "New password"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Invalid password"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404      {object}  ErrorResponse  "User not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /users/{id}/password [put]
func (s *Server) handleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.userService.SetPassword(r.Context(), id, req.Password); err != nil {
		switch err {
		case domain.ErrNotFound:
			writeError(w, http.StatusNotFound, "user not found")
		case domain.ErrInvalidInput:
			writeError(w, http.StatusBadRequest, "invalid password")
		default:
			writeError(w, http.StatusInternalServerError, "failed to set password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Import and export endpoints

// handleImport godoc
// @Summary      Import a document
// @Description  Upload an edited document and apply it to the drafting group. Accepts the raw document body or a multipart form with a "document" file field. With async=true the document is stored as a job and processed by a worker; the job is returned immediately. With dry_run=true the full pipeline runs but nothing is committed. With force=true version mismatches on updates are overridden.
// @Tags         Import
// @Accept       octet-stream
// @Produce      json
// @Security     BearerAuth
// @Param        group    path      string  true   "Drafting group token"
// @Param        force    query     bool    false  "Override version conflicts"
// @Param        dry_run  query     bool    false  "Validate without committing"
// @Param        async    query     bool    false  "Process in the background"
// @Success      200      {object}  domain.ImportResult  "Synchronous import ran (inspect committed flag)"
// @Success      202      {object}  domain.ImportJob     "Asynchronous job accepted"
// @Failure      400      {object}  ErrorResponse        "Unreadable document or bad parameters"
// @Failure      401      {object}  ErrorResponse        "Unauthorized"
// @Failure      403      {object}  ErrorResponse        "No edit access to the group"
// @Failure      404      {object}  ErrorResponse        "Unknown group"
// @Failure      422      {object}  domain.ImportResult  "Validation errors prevented the commit"
// @Failure      500      {object}  ErrorResponse        "Internal server error"
// @Router       /groups/{group}/import [post]
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	group := r.PathValue("group")

	opts := domain.ImportOptions{
		Force:  boolParam(r, "force"),
		DryRun: boolParam(r, "dry_run"),
	}

	document, err := readDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(document) == 0 {
		writeError(w, http.StatusBadRequest, "empty document")
		return
	}

	if boolParam(r, "async") {
		job, err := s.importService.ImportAsync(r.Context(), group, document, authCtx.Actor(), opts)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownGroup) {
				writeError(w, http.StatusNotFound, "unknown group")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to queue import")
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := s.importService.Import(r.Context(), group, document, authCtx.Actor(), opts)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusNotFound, "unknown group")
		case errors.Is(err, domain.ErrUnreadableDocument):
			writeError(w, http.StatusBadRequest, "unreadable document")
		default:
			writeError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	// A rolled-back batch is not a transport error but it is not a
	// success either; 422 lets clients branch without parsing issues.
	if !result.Committed && !opts.DryRun {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// readDocument pulls the uploaded document out of the request, from the
// "document" field of a multipart form or from the raw body.
func readDocument(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxDocumentSize)

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
			return nil, fmt.Errorf("invalid multipart form")
		}
		file, _, err := r.FormFile("document")
		if err != nil {
			return nil, fmt.Errorf("missing document field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read document")
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body")
	}
	return data, nil
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

// boolParam parses an optional boolean query parameter. Absent or
// unparsable values count as false.
func boolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// handleExport godoc
// @Summary      Export a group
// @Description  Render every entity of the drafting group as a downloadable document in the round-trip layout the importer understands.
// @Tags         Export
// @Produce      application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Security     BearerAuth
// @Param        group  path  string  true  "Drafting group token"
// @Success      200    {file}    file           "The rendered document"
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Unknown group"
// @Failure      500    {object}  ErrorResponse  "Export failed"
// @Router       /groups/{group}/export [get]
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	document, err := s.exportService.Export(r.Context(), group)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownGroup) {
			writeError(w, http.StatusNotFound, "unknown group")
			return
		}
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("%s-%s.docx", group, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(document)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}

// Import job endpoints

// handleListJobs godoc
// @Summary      List import jobs
// @Description  List recent import jobs of a drafting group, newest first
// @Tags         Import
// @Produce      json
// @Security     BearerAuth
// @Param        group  path      string  true   "Drafting group token"
// @Param        limit  query     int     false  "Maximum number of jobs (default 20, max 100)"
// @Success      200    {array}   domain.ImportJob
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Unknown group"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	jobs, err := s.importService.ListJobs(r.Context(), group, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownGroup) {
			writeError(w, http.StatusNotFound, "unknown group")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

// handleGetJob godoc
// @Summary      Get import job
// @Description  Get an import job by ID, including its result once finished
// @Tags         Import
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  domain.ImportJob
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Job not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /jobs/{id} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	job, err := s.importService.GetJob(r.Context(), id)
	if err != nil {
		switch err {
		case domain.ErrNotFound:
			writeError(w, http.StatusNotFound, "job not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get job")
		}
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// Entity endpoints

// handleListEntities godoc
// @Summary      List entities
// @Description  List the current version of every entity in a drafting group, in canonical document order. Optionally filter by kind (on, or, oc).
// @Tags         Entities
// @Produce      json
// @Security     BearerAuth
// @Param        group  path      string  true   "Drafting group token"
// @Param        kind   query     string  false  "Entity kind filter"  Enums(on, or, oc)
// @Success      200    {array}   domain.EntityRecord
// @Failure      400    {object}  ErrorResponse  "Invalid kind"
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Unknown group"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/entities [get]
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	var kind domain.EntityKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, ok := domain.ParseKind(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid kind")
			return
		}
		kind = k
	}

	entities, err := s.entityService.List(r.Context(), group, kind)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownGroup) {
			writeError(w, http.StatusNotFound, "unknown group")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}

	writeJSON(w, http.StatusOK, entities)
}

// entityRef assembles the identity named by the group/kind/num path
// parameters of an entity route.
func entityRef(r *http.Request) (domain.EntityIdentity, error) {
	var ref domain.EntityIdentity

	kind, ok := domain.ParseKind(r.PathValue("kind"))
	if !ok {
		return ref, fmt.Errorf("invalid kind")
	}
	num, err := strconv.ParseInt(r.PathValue("num"), 10, 64)
	if err != nil || num < 1 {
		return ref, fmt.Errorf("invalid entity number")
	}

	return domain.EntityIdentity{Kind: kind, Group: r.PathValue("group"), Num: num}, nil
}

// handleGetEntity godoc
// @Summary      Get entity
// @Description  Get the current version of one entity
// @Tags         Entities
// @Produce      json
// @Security     BearerAuth
// @Param        group  path      string  true  "Drafting group token"
// @Param        kind   path      string  true  "Entity kind"  Enums(on, or, oc)
// @Param        num    path      int     true  "Entity number"
// @Success      200    {object}  domain.EntityRecord
// @Failure      400    {object}  ErrorResponse  "Invalid kind or number"
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Entity or group not found"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/entities/{kind}/{num} [get]
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := s.entityService.Get(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "entity not found")
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusNotFound, "unknown group")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get entity")
		}
		return
	}

	writeJSON(w, http.StatusOK, entity)
}

// handleListVersions godoc
// @Summary      List entity versions
// @Description  Get the full version history of an entity, oldest first
// @Tags         Entities
// @Produce      json
// @Security     BearerAuth
// @Param        group  path      string  true  "Drafting group token"
// @Param        kind   path      string  true  "Entity kind"  Enums(on, or, oc)
// @Param        num    path      int     true  "Entity number"
// @Success      200    {array}   domain.EntityVersion
// @Failure      400    {object}  ErrorResponse  "Invalid kind or number"
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Entity or group not found"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/entities/{kind}/{num}/versions [get]
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	versions, err := s.entityService.ListVersions(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "entity not found")
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusNotFound, "unknown group")
		default:
			writeError(w, http.StatusInternalServerError, "failed to list versions")
		}
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

// handleGetVersion godoc
// @Summary      Get entity version
// @Description  Get one historical version of an entity
// @Tags         Entities
// @Produce      json
// @Security     BearerAuth
// @Param        group    path      string  true  "Drafting group token"
// @Param        kind     path      string  true  "Entity kind"  Enums(on, or, oc)
// @Param        num      path      int     true  "Entity number"
// @Param        version  path      int     true  "Version number"
// @Success      200      {object}  domain.EntityVersion
// @Failure      400      {object}  ErrorResponse  "Invalid kind, number or version"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Version not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/entities/{kind}/{num}/versions/{version} [get]
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := strconv.ParseInt(r.PathValue("version"), 10, 64)
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	ref.Version = version

	v, err := s.entityService.GetVersion(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "version not found")
		case errors.Is(err, domain.ErrUnknownGroup):
			writeError(w, http.StatusNotFound, "unknown group")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get version")
		}
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// handleListSetupElements godoc
// @Summary      List setup elements
// @Description  List the setup elements of a drafting group
// @Tags         Entities
// @Produce      json
// @Security     BearerAuth
// @Param        group  path      string  true  "Drafting group token"
// @Success      200    {array}   domain.SetupElement
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      404    {object}  ErrorResponse  "Unknown group"
// @Failure      500    {object}  ErrorResponse  "Internal server error"
// @Router       /groups/{group}/setup-elements [get]
func (s *Server) handleListSetupElements(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	elements, err := s.entityService.ListSetupElements(r.Context(), group)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownGroup) {
			writeError(w, http.StatusNotFound, "unknown group")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list setup elements")
		return
	}

	writeJSON(w, http.StatusOK, elements)
}

// Settings endpoints

// handleGetSettings godoc
// @Summary      Get import settings
// @Description  Get the current import policy settings
// @Tags         Settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ImportSettings
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /settings [get]
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsService.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings godoc
// @Summary      Update import settings
// @Description  Update import policy settings (admin only)
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.UpdateImportSettingsRequest  true  "Settings to update"
// @Success      200      {object}  domain.ImportSettings
// @Failure      400      {object}  ErrorResponse  "Invalid policy value"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /settings [put]
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.UpdateImportSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := s.settingsService.Update(r.Context(), authCtx.UserID, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid policy value")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
