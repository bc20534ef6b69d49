package security

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SessionResolver is the manager surface the HTTP controller needs.
type SessionResolver interface {
	Manager
	CurrentClaims(c router.Context) (Claims, bool)
	CurrentToken(c router.Context) (string, bool)
	TokenService() TokenService
}

// SessionControllerRoutes holds the mount points for the public operations.
type SessionControllerRoutes struct {
	Login      string
	Logout     string
	LoggedInAs string
}

// SessionController exposes login, logout, and who-am-i over JSON.
type SessionController struct {
	Debug    bool
	Logger   Logger
	Routes   *SessionControllerRoutes
	Sessions SessionResolver
}

type SessionControllerOption func(*SessionController) *SessionController

// WithSessionManager wires the session manager the controller delegates to.
func WithSessionManager(sessions SessionResolver) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Sessions = sessions
		return c
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Logger = logger
		return c
	}
}

func NewSessionController(opts ...SessionControllerOption) *SessionController {
	c := &SessionController{
		Logger: defLogger{},
		Routes: &SessionControllerRoutes{
			Login:      "/login",
			Logout:     "/logout",
			LoggedInAs: "/loggedinas",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing session manager in session controller...")
	}

	return c
}

// RegisterSessionRoutes mounts the public session operations on the app.
func RegisterSessionRoutes[T any](app router.Router[T], opts ...SessionControllerOption) {
	controller := NewSessionController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).SetName("session.login")
	app.Post(controller.Routes.Logout, controller.LogoutPost).SetName("session.logout")
	app.Get(controller.Routes.LoggedInAs, controller.LoggedInAs).SetName("session.whoami")
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// SessionResponse is the user payload returned by login and who-am-i.
type SessionResponse struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Roles       []string       `json:"roles,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	AccessToken string         `json:"access_token,omitempty"`
}

// LoggedInAs reports the caller's resolved identity. Anonymous requests
// get the sentinel payload with status 200: not being logged in is a
// normal outcome, never an error.
func (a *SessionController) LoggedInAs(ctx router.Context) error {
	user, err := a.Sessions.Resolve(ctx)
	if err != nil {
		a.Logger.Error("LoggedInAs resolve error: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"error": ErrStoreUnavailable.Message,
		})
	}

	if user == nil {
		return ctx.JSON(http.StatusOK, NotYetLoggedIn)
	}

	claims, _ := a.Sessions.CurrentClaims(ctx)
	token, _ := a.Sessions.CurrentToken(ctx)

	return ctx.JSON(http.StatusOK, sessionResponse(user, claims, token))
}

// LoginPost verifies the submitted credentials and establishes a session.
// Failures never reveal whether the identifier or the secret was wrong.
func (a *SessionController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("LoginPost bind error: %v", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "unable to parse login payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": err.Error(),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(payload))
	}

	user, token, err := a.Sessions.Login(ctx, payload)
	if err != nil {
		if IsAuthError(err) {
			return ctx.JSON(http.StatusUnauthorized, map[string]any{
				"error": ErrInvalidCredentials.Message,
			})
		}
		a.Logger.Error("LoginPost store error: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"error": ErrStoreUnavailable.Message,
		})
	}

	claims, err := a.Sessions.TokenService().Validate(token)
	if err != nil {
		a.Logger.Error("LoginPost minted token failed validation: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"error": "unable to establish session",
		})
	}

	return ctx.JSON(http.StatusOK, sessionResponse(user, claims, token))
}

// LogoutPost clears the session. It always succeeds.
func (a *SessionController) LogoutPost(ctx router.Context) error {
	if err := a.Sessions.Logout(ctx); err != nil {
		a.Logger.Warn("LogoutPost error: %v", err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
	})
}

// sessionResponse builds the client-facing payload. The payload mirrors
// the verified claims, including expiry, so clients can inspect their own
// session without decoding the token.
func sessionResponse(user *User, claims Claims, token string) *SessionResponse {
	resp := &SessionResponse{
		ID:          user.ID,
		Name:        user.Name,
		Roles:       user.Roles,
		AccessToken: token,
	}

	if claims != nil {
		payload := make(map[string]any, len(claims.Payload())+3)
		for k, v := range claims.Payload() {
			payload[k] = v
		}
		payload["sub"] = claims.Subject()
		if !claims.IssuedAt().IsZero() {
			payload["iat"] = claims.IssuedAt().Unix()
		}
		if !claims.Expires().IsZero() {
			payload["exp"] = claims.Expires().Unix()
		}
		resp.Payload = payload
	}

	return resp
}
