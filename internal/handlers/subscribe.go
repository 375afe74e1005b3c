package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okarlsson/waitgate/internal/waitlist"
	appErrors "github.com/okarlsson/waitgate/pkg/errors"
	"github.com/okarlsson/waitgate/pkg/response"
)

// SubscribeHandler exposes the public join endpoint.
type SubscribeHandler struct {
	admission *waitlist.Admission
}

// NewSubscribeHandler constructs the join handler.
func NewSubscribeHandler(admission *waitlist.Admission) (*SubscribeHandler, error) {
	if admission == nil {
		return nil, errors.New("handlers: admission engine is required")
	}
	return &SubscribeHandler{admission: admission}, nil
}

type subscribeRequest struct {
	APIKey       string `json:"api_key" validate:"required"`
	Email        string `json:"email" validate:"required,max=255"`
	ReferralCode string `json:"ref"`
}

type subscribeResponse struct {
	AlreadyMember bool    `json:"already_member"`
	Position      *int    `json:"position,omitempty"`
	Tier          *string `json:"tier,omitempty"`
	ReferralCode  string  `json:"referral_code"`
}

// Subscribe handles POST /api/subscribe. Email format rules live in the
// admission engine, not here; the handler only checks presence.
func (h *SubscribeHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.admission.Join(requestContext(c), waitlist.JoinInput{
		Credential:   req.APIKey,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		response.Error(c, mapJoinError(err))
		return
	}

	status := http.StatusCreated
	if result.AlreadyMember {
		status = http.StatusOK
	}
	response.Success(c, status, subscribeResponse{
		AlreadyMember: result.AlreadyMember,
		Position:      result.Rank.Position,
		Tier:          result.Rank.Tier,
		ReferralCode:  result.ReferralCode,
	})
}

func mapJoinError(err error) error {
	switch {
	case errors.Is(err, waitlist.ErrInvalidInput):
		return appErrors.ErrInvalidInput
	case errors.Is(err, waitlist.ErrUnknownCredential):
		return appErrors.ErrUnauthorized
	case errors.Is(err, waitlist.ErrFrozen):
		return appErrors.ErrWaitlistClosed
	case errors.Is(err, waitlist.ErrRateLimited):
		return appErrors.ErrRateLimited
	default:
		return appErrors.ErrStorageUnavailable.WithInternal(err)
	}
}
