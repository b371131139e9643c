package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/configuration"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const oauthStateCookie = "oauth_state"

// IYouTubeAuthHandler runs the one-time consent that gives the API adapter a refresh token.
type IYouTubeAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	HandleCallback(ctx *gin.Context)
}

type YouTubeAuthHandler struct {
	oauth2Config *oauth2.Config
	tokenPath    string
}

// NewYouTubeAuthHandler needs an OAuth client id and secret; API-key-only setups have nothing to consent to.
func NewYouTubeAuthHandler(cfg *configuration.YouTubeConfig, tokenPath string) (IYouTubeAuthHandler, error) {
	if cfg == nil || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("youtube oauth client is not configured")
	}
	if tokenPath == "" {
		tokenPath = configuration.YouTubeTokenFile
	}
	return &YouTubeAuthHandler{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		tokenPath: tokenPath,
	}, nil
}

// GetAuthURL handles GET /api/admin/youtube/auth
func (h *YouTubeAuthHandler) GetAuthURL(ctx *gin.Context) {
	state, err := generateRandomState()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not create state"})
		return
	}
	ctx.SetCookie(oauthStateCookie, state, 600, "/", "", false, true)

	authURL := h.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"auth_url": authURL}})
}

// HandleCallback handles GET /auth/youtube/callback
func (h *YouTubeAuthHandler) HandleCallback(ctx *gin.Context) {
	if errorParam := ctx.Query("error"); errorParam != "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success":     false,
			"error":       "oauth error: " + errorParam,
			"description": ctx.Query("error_description"),
		})
		return
	}

	state := ctx.Query("state")
	expected, err := ctx.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "state mismatch, start over from /api/admin/youtube/auth"})
		return
	}
	ctx.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	code := ctx.Query("code")
	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "authorization code not found"})
		return
	}

	token, err := h.oauth2Config.Exchange(ctx.Request.Context(), code)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while exchanging oauth code")
		ctx.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "failed to exchange code for token"})
		return
	}

	err = configuration.SaveYouTubeToken(h.tokenPath, configuration.YouTubeToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while saving youtube token")
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	logger.GetLogger().WithField("path", h.tokenPath).Info("YouTube token saved")
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"message": "token saved; restart to switch the api adapter to oauth mode",
			"expiry":  token.Expiry,
		},
	})
}

func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
