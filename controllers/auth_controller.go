package controller

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"foundermatch/apperr"
	"foundermatch/config"
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// IdentityFetcher exchanges an OAuth code for the provider's identity
type IdentityFetcher func(ctx context.Context, code string) (services.Identity, error)

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         interface{} `json:"user"`
}

type AuthController struct {
	Users           *services.UserService
	Issuer          *utils.TokenIssuer
	OAuth           *oauth2.Config
	FetchIdentity   IdentityFetcher
	SecureCookies   bool
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func NewAuthController(users *services.UserService, issuer *utils.TokenIssuer, cfg *config.Config) *AuthController {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
	ac := &AuthController{
		Users:           users,
		Issuer:          issuer,
		OAuth:           oauthConfig,
		SecureCookies:   cfg.IsProduction(),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}
	ac.FetchIdentity = ac.fetchGoogleIdentity
	return ac
}

// GoogleOAuth redirects to the Google consent screen
func (ac *AuthController) GoogleOAuth(c *fiber.Ctx) error {
	state, err := generateState()
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	// Store state in HTTP-only cookie with short expiry
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		Secure:   ac.SecureCookies,
		SameSite: "Lax",
	})

	url := ac.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

// GoogleOAuthCallback completes sign-in and issues a token pair
func (ac *AuthController) GoogleOAuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	cookieState := c.Cookies("oauth_state")
	if state == "" || cookieState == "" || state != cookieState {
		return utils.ErrorResponse(c, apperr.Unauthorized("Invalid OAuth state"))
	}
	c.ClearCookie("oauth_state")

	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, apperr.InvalidInput("Authorization code is required"))
	}

	identity, err := ac.FetchIdentity(c.UserContext(), code)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	user, err := ac.Users.SignInFromIdentity(c.UserContext(), identity)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	accessToken, refreshToken, err := ac.Issuer.GenerateTokens(user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fmt.Errorf("generate tokens: %w", err))
	}
	ac.setTokenCookies(c, accessToken, refreshToken)

	utils.LogEvent("user_signed_in", map[string]interface{}{
		"user_id": user.ID,
		"ip":      c.IP(),
	})
	return c.JSON(utils.SuccessResponse(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}))
}

// RefreshToken exchanges a refresh token, from the body or cookie, for a new pair
func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, apperr.InvalidInput("Invalid request body"))
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies("refresh_token")
	}
	if req.RefreshToken == "" {
		return utils.ErrorResponse(c, apperr.Unauthorized("Refresh token required"))
	}

	userID, accessToken, refreshToken, err := ac.Issuer.Refresh(req.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, apperr.Unauthorized("Invalid or expired refresh token"))
	}
	user, err := ac.Users.GetProfile(c.UserContext(), userID)
	if err != nil {
		return utils.ErrorResponse(c, apperr.Unauthorized("User not found"))
	}
	if !user.IsActive {
		return utils.ErrorResponse(c, apperr.Forbidden("Account is not active"))
	}
	ac.setTokenCookies(c, accessToken, refreshToken)

	return c.JSON(utils.SuccessResponse(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}))
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(middleware.CurrentUser(c)))
}

func (ac *AuthController) setTokenCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Expires:  time.Now().Add(ac.AccessTokenTTL),
		HTTPOnly: true,
		Secure:   ac.SecureCookies,
		SameSite: "Lax",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  time.Now().Add(ac.RefreshTokenTTL),
		HTTPOnly: true,
		Secure:   ac.SecureCookies,
		SameSite: "Lax",
	})
}

func (ac *AuthController) fetchGoogleIdentity(ctx context.Context, code string) (services.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	token, err := ac.OAuth.Exchange(ctx, code)
	if err != nil {
		return services.Identity{}, apperr.Unauthorized("Failed to exchange authorization code")
	}

	resp, err := ac.OAuth.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return services.Identity{}, apperr.Upstream("Failed to fetch Google profile", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Identity{}, apperr.Upstream("Failed to fetch Google profile", fmt.Errorf("userinfo status %d", resp.StatusCode))
	}

	var googleUser struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return services.Identity{}, apperr.Upstream("Failed to decode Google profile", err)
	}
	if googleUser.Email == "" {
		return services.Identity{}, apperr.InvalidInput("Google account has no email address")
	}

	return services.Identity{
		ProviderID: googleUser.ID,
		Email:      googleUser.Email,
		Name:       googleUser.Name,
		AvatarURL:  googleUser.Picture,
	}, nil
}

func generateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
