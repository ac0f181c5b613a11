package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/services"
	"github.com/garotm/RunOn/internal/storage"
	"github.com/rs/zerolog/log"
)

const maxPictureSize = 5 << 20 // 5 MB

type loginRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// LoginHandler exchanges a provider identity token for a session token,
// creating the profile on first login.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeObject(r, &req) {
		writeError(w, http.StatusBadRequest, "No credentials provided")
		return
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Missing provider or token")
		return
	}
	verifier, ok := h.verifiers[provider]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported provider: %s", provider))
		return
	}

	ctx := r.Context()
	identity, err := verifier.Verify(ctx, req.Token)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("Login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	user, err := h.users.GetUser(ctx, identity.Subject)
	created := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user = models.NewUser(identity.Subject, identity.Email, identity.Name, provider, h.now().UTC())
		if err := h.users.CreateUser(ctx, user); err != nil {
			log.Error().Err(err).Str("user_id", identity.Subject).Msg("Failed to create user")
			writeError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}
		created = true
	case err != nil:
		log.Error().Err(err).Str("user_id", identity.Subject).Msg("Failed to load user")
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue session token")
		writeError(w, http.StatusInternalServerError, "Failed to issue session token")
		return
	}

	if created {
		h.publish(ctx, services.RoutingUserCreated, models.UserLifecycleEvent{
			UserID:    user.ID,
			Email:     user.Email,
			Provider:  user.Provider,
			Timestamp: user.CreatedAt,
		})
	}

	log.Info().
		Str("user_id", user.ID).
		Str("provider", provider).
		Bool("new_user", created).
		Msg("User logged in")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"token":  token,
		"user":   user,
	})
}

// GetProfileHandler returns the caller's profile
func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	user, ok := h.loadUser(w, r, claims.Subject)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "profile": user})
}

// UpdateProfileHandler applies the editable fields of the request body.
// Unknown fields are ignored.
func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	var update models.ProfileUpdate
	if !decodeObject(r, &update) {
		writeError(w, http.StatusBadRequest, "No update data provided")
		return
	}

	user, ok := h.loadUser(w, r, claims.Subject)
	if !ok {
		return
	}
	update.Apply(user, h.now().UTC())

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update user")
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("Profile updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "profile": user})
}

// DeleteProfileHandler removes the caller's profile, picture and sync ledger
func (h *Handler) DeleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	user, ok := h.loadUser(w, r, claims.Subject)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to delete user")
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	h.deletePicture(ctx, user.ID, user.ProfilePicture)

	h.publish(ctx, services.RoutingUserDeleted, models.UserLifecycleEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Provider:  user.Provider,
		Timestamp: h.now().UTC(),
	})

	log.Info().Str("user_id", user.ID).Msg("User deleted")
	w.WriteHeader(http.StatusNoContent)
}

// UploadProfilePictureHandler stores the multipart "image" file and links it
// to the caller's profile.
func (h *Handler) UploadProfilePictureHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	if h.pictures == nil {
		writeError(w, http.StatusServiceUnavailable, "Profile picture storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureSize+(1<<20))
	if err := r.ParseMultipartForm(maxPictureSize); err != nil {
		log.Error().Err(err).Msg("Failed to parse form")
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		log.Error().Err(err).Msg("Failed to get file from form")
		writeError(w, http.StatusBadRequest, "Image is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}
	if header.Size > maxPictureSize {
		writeError(w, http.StatusBadRequest, "Image must be at most 5MB")
		return
	}

	user, ok := h.loadUser(w, r, claims.Subject)
	if !ok {
		return
	}
	ctx := r.Context()

	_, url, err := h.pictures.UploadProfilePicture(ctx, user.ID, file, header.Filename, contentType, header.Size)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to upload profile picture")
		writeError(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	previous := user.ProfilePicture
	models.ProfileUpdate{ProfilePicture: &url}.Apply(user, h.now().UTC())
	if err := h.users.UpdateUser(ctx, user); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to save profile picture")
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}
	if previous != url {
		h.deletePicture(ctx, user.ID, previous)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "profile": user})
}

// deletePicture removes a stored picture when it is one of the user's own
// uploads. profile_picture is user-editable, so anything else is left alone.
func (h *Handler) deletePicture(ctx context.Context, userID, pictureURL string) {
	if pictureURL == "" || h.pictures == nil {
		return
	}
	if !storage.OwnsProfilePicture(pictureURL, userID) {
		log.Warn().Str("user_id", userID).Str("url", pictureURL).Msg("Skipping delete of picture outside the user's prefix")
		return
	}
	if err := h.pictures.DeleteProfilePicture(ctx, userID, pictureURL); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to delete profile picture")
	}
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request, id string) (*models.User, bool) {
	user, err := h.users.GetUser(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("Failed to load user")
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return user, true
}
