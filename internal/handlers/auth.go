package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/okarlsson/waitgate/internal/auth"
	"github.com/okarlsson/waitgate/internal/models"
	appErrors "github.com/okarlsson/waitgate/pkg/errors"
	"github.com/okarlsson/waitgate/pkg/response"
)

// AuthHandler exposes dashboard sign-up and sign-in, both password and magic link.
type AuthHandler struct {
	users     *iauth.UserService
	magicLink *iauth.MagicLinkService
	jwt       *iauth.JWTService
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(users *iauth.UserService, magicLink *iauth.MagicLinkService, jwt *iauth.JWTService) (*AuthHandler, error) {
	if users == nil || magicLink == nil || jwt == nil {
		return nil, errors.New("handlers: user, magic-link and jwt services are required")
	}
	return &AuthHandler{users: users, magicLink: magicLink, jwt: jwt}, nil
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type magicRedeemRequest struct {
	Token string `json:"token" validate:"required"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, iauth.ErrEmailTaken) {
			response.Error(c, appErrors.NewBadRequest("email already registered"))
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.respondWithSession(c, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, iauth.ErrBadCredentials) {
			response.Error(c, appErrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.respondWithSession(c, http.StatusOK, user)
}

// RequestMagicLink handles POST /api/auth/magic-link. The token is returned in
// the response; mail delivery is the deployment's concern. The endpoint
// answers identically whether or not the email has an account.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.magicLink.Issue(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(iauth.MagicLinkTTL.Seconds()),
	})
}

// RedeemMagicLink handles POST /api/auth/magic-link/redeem.
func (h *AuthHandler) RedeemMagicLink(c *gin.Context) {
	var req magicRedeemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.magicLink.Redeem(requestContext(c), req.Token)
	if err != nil {
		if errors.Is(err, iauth.ErrInvalidMagicToken) {
			response.Error(c, appErrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.respondWithSession(c, http.StatusOK, user)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), currentUserID(c))
	if err != nil {
		if errors.Is(err, iauth.ErrUserNotFound) {
			response.Error(c, appErrors.ErrAuthRequired)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithSession(c *gin.Context, status int, user *models.User) {
	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, status, sessionResponse{Token: token, User: user})
}
