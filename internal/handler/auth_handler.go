package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"event-management-api/internal/auth"
	"event-management-api/internal/model"
	"event-management-api/internal/store"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.check(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = errEmailTaken
		}
		h.writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("user_id", u.ID).Msg("user created")
	writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Email: u.Email})
}

func (h *Handler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.check(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.users.UserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.RejectPassword(req.Password)
			err = errBadCredentials
		}
		h.writeError(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.writeError(w, r, errBadCredentials)
		return
	}

	pair, err := h.issuePair(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken exchanges a refresh token for a new pair. Each refresh token
// is single use: presenting a revoked one revokes every token of its owner.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.check(req); err != nil {
		h.writeError(w, r, errBadRefresh)
		return
	}

	ctx := r.Context()
	rt, err := h.tokens.RefreshTokenByHash(ctx, auth.HashRefreshToken(req.Refresh))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = errBadRefresh
		}
		h.writeError(w, r, err)
		return
	}
	if rt.Revoked {
		zerolog.Ctx(ctx).Warn().Str("user_id", rt.UserID).Msg("refresh token reuse, revoking all sessions")
		if err := h.tokens.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeError(w, r, errBadRefresh)
		return
	}
	if !h.now().Before(rt.ExpiresAt) {
		h.writeError(w, r, errBadRefresh)
		return
	}

	access, err := h.issuer.AccessToken(rt.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.tokens.RotateRefreshToken(ctx, rt.ID, rt.UserID, hash, h.now().Add(h.issuer.RefreshTTL())); err != nil {
		// lost a race with a concurrent rotation of the same token
		if errors.Is(err, store.ErrNotFound) {
			err = errBadRefresh
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPair{Access: access, Refresh: raw})
}

func (h *Handler) issuePair(ctx context.Context, userID string) (tokenPair, error) {
	access, err := h.issuer.AccessToken(userID)
	if err != nil {
		return tokenPair{}, err
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return tokenPair{}, err
	}
	if _, err := h.tokens.CreateRefreshToken(ctx, userID, hash, h.now().Add(h.issuer.RefreshTTL())); err != nil {
		return tokenPair{}, err
	}
	return tokenPair{Access: access, Refresh: raw}, nil
}
