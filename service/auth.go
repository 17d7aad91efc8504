package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zlnvch/cipherchat/models"
	"golang.org/x/oauth2"
)

// The moderation control plane is the only authenticated surface; chat
// participants stay anonymous. Staff log in through OAuth and carry
// their role in a short-lived JWT.

// Provider-specific structs
type gitHubUser struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

var oauthAPIs = map[string]struct {
	URL     string
	Headers map[string]string
}{
	"github": {
		URL: "https://api.github.com/user",
		Headers: map[string]string{
			"X-GitHub-Api-Version": "2022-11-28",
		},
	},
	"google": {
		URL:     "https://openidconnect.googleapis.com/v1/userinfo",
		Headers: map[string]string{},
	},
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{""},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	for provider := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		oauthConfigs[provider].Endpoint = template.Endpoint
		oauthConfigs[provider].Scopes = template.Scopes
	}

	return oauthConfigs, nil
}

func (s *Service) HandleOauth(ctx context.Context, provider string, code string) (models.Moderator, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return models.Moderator{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Println("Error:", err)
		return models.Moderator{}, err
	}

	client := conf.Client(ctx, tok)
	api, ok := oauthAPIs[provider]
	if !ok {
		return models.Moderator{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	req, err := http.NewRequest("GET", api.URL, nil)
	if err != nil {
		log.Println("Error:", err)
		return models.Moderator{}, err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error:", err)
		return models.Moderator{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println("Error:", err)
		return models.Moderator{}, err
	}

	return parseModerator(body, provider)
}

func parseModerator(jsonData []byte, provider string) (models.Moderator, error) {
	var m models.Moderator
	m.Provider = provider

	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(jsonData, &gh); err != nil {
			return models.Moderator{}, err
		}
		m.Username = gh.Login
		m.ProviderId = strconv.Itoa(gh.ID)
	case "google":
		var g googleUser
		if err := json.Unmarshal(jsonData, &g); err != nil {
			return models.Moderator{}, err
		}
		m.Username = g.Email
		m.ProviderId = g.Sub
	default:
		return models.Moderator{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	return m, nil
}

func (s *Service) CreateJWT(id string, provider string, providerId string, role string) (string, error) {
	claims := jwt.MapClaims{
		"id":         id,
		"provider":   provider,
		"providerId": providerId,
		"role":       role,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (s *Service) VerifyJWT(tokenString string) (string, string, string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", "", "", err
	}

	if !token.Valid {
		return "", "", "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", "", "", errors.New("invalid token claims")
	}

	id, ok := claims["id"].(string)
	if !ok {
		return "", "", "", "", errors.New("missing id claim")
	}

	provider, ok := claims["provider"].(string)
	if !ok {
		return "", "", "", "", errors.New("missing provider claim")
	}

	providerId, ok := claims["providerId"].(string)
	if !ok {
		return "", "", "", "", errors.New("missing providerId claim")
	}

	role, ok := claims["role"].(string)
	if !ok {
		return "", "", "", "", errors.New("missing role claim")
	}

	return id, provider, providerId, role, nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.Moderator, error) {
	if len(token) == 0 {
		return models.Moderator{}, errors.New("token not provided")
	}

	_, provider, providerId, _, err := s.VerifyJWT(token)
	if err != nil {
		return models.Moderator{}, err
	}

	// The role comes from the store, not the token, so a promotion or
	// demotion takes effect without waiting for token expiry.
	mod, err := s.Store.GetModerator(ctx, provider, providerId)
	if err != nil {
		return models.Moderator{}, err
	}

	return mod, nil
}

func (s *Service) Login(ctx context.Context, provider, code string) (models.Moderator, string, error) {
	mod, err := s.HandleOauth(ctx, provider, code)
	if err != nil {
		return models.Moderator{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	createdMod, err := s.Store.CreateModerator(ctx, mod)
	if err != nil {
		return models.Moderator{}, "", fmt.Errorf("create moderator failed: %w", err)
	}

	token, err := s.CreateJWT(createdMod.Id, createdMod.Provider, createdMod.ProviderId, createdMod.Role)
	if err != nil {
		return models.Moderator{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return createdMod, token, nil
}

func roleRank(role string) int {
	switch role {
	case models.RoleJanitor:
		return 1
	case models.RoleModerator:
		return 2
	case models.RoleAdmin:
		return 3
	default:
		return 0
	}
}

var ErrInsufficientRole = errors.New("insufficient role")

// AuthorizeRole checks the moderator holds at least the required rank:
// janitor < moderator < admin.
func AuthorizeRole(mod models.Moderator, required string) error {
	if roleRank(mod.Role) < roleRank(required) {
		return ErrInsufficientRole
	}
	return nil
}
