package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

type SessionHandler struct {
	session  ports.SessionService
	activity ports.ActivityTracker
}

// NewSessionHandler builds the handler; activity may be nil when the idle
// watcher is disabled.
func NewSessionHandler(session ports.SessionService, activity ports.ActivityTracker) *SessionHandler {
	return &SessionHandler{session: session, activity: activity}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=256"`
	Remember bool   `json:"remember"`
}

// sessionResponse is the public view of the session; tokens never leave the agent.
type sessionResponse struct {
	State           domain.State `json:"state"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	Error           string       `json:"error,omitempty"`
	User            *domain.User `json:"user,omitempty"`
}

type refreshResponse struct {
	Refreshed bool            `json:"refreshed"`
	Session   sessionResponse `json:"session"`
}

type permissionResponse struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		State:           s.State,
		IsAuthenticated: s.IsAuthenticated,
		IsLoading:       s.IsLoading,
		Error:           s.Error,
		User:            s.User,
	}
}

// Get returns the current session.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

// Login authenticates the terminal against the restaurant backend.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := h.session.Login(c.Request().Context(), domain.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		return &LoginError{Err: err, Message: h.session.Snapshot().Error}
	}
	if h.activity != nil {
		h.activity.Touch()
	}
	return c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

// Logout ends the session. It always succeeds.
//
// @Summary      Logout
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

// Check revalidates the stored session with the backend.
//
// @Summary      Revalidate session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session/check [post]
func (h *SessionHandler) Check(c echo.Context) error {
	h.session.CheckAuth(c.Request().Context())
	return c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

// Refresh exchanges the refresh token for a new access token.
//
// @Summary      Refresh access token
// @Tags         session
// @Produce      json
// @Success      200  {object}  refreshResponse
// @Router       /session/refresh [post]
func (h *SessionHandler) Refresh(c echo.Context) error {
	ok := h.session.RefreshAccessToken(c.Request().Context())
	return c.JSON(http.StatusOK, refreshResponse{
		Refreshed: ok,
		Session:   toSessionResponse(h.session.Snapshot()),
	})
}

// Activity records user activity, postponing the idle logout.
//
// @Summary      Record activity
// @Tags         session
// @Success      204
// @Router       /session/activity [post]
func (h *SessionHandler) Activity(c echo.Context) error {
	if h.activity != nil {
		h.activity.Touch()
	}
	return c.NoContent(http.StatusNoContent)
}

// Permission reports whether the session's role grants an action on a resource.
//
// @Summary      Check permission
// @Tags         session
// @Produce      json
// @Param        resource  query     string  true  "Resource, e.g. orders"
// @Param        action    query     string  true  "Action, e.g. update"
// @Success      200       {object}  permissionResponse
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Router       /session/permissions [get]
func (h *SessionHandler) Permission(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	resource, action := c.QueryParam("resource"), c.QueryParam("action")
	if resource == "" || action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource and action are required")
	}
	return c.JSON(http.StatusOK, permissionResponse{
		Resource: resource,
		Action:   action,
		Allowed:  user.Can(resource, action),
	})
}

// LoginError carries the display message stored by the session manager.
type LoginError struct {
	Err     error
	Message string
}

func (e *LoginError) Error() string { return e.Err.Error() }
func (e *LoginError) Unwrap() error { return e.Err }
