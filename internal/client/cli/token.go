package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/booksync/internal/syncerr"
)

// tokenClaims are the claims the CLI reads from the access token.
// Подпись не проверяем: это делает сервер, клиенту нужны только tenant и user.
type tokenClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// resolveToken retrieves the access token from various sources with priority:
// 1. Environment variable BOOKSYNC_TOKEN
// 2. File specified in --token-file
// 3. Command-line parameter --token
// 4. Interactive prompt (fallback)
func (o *RootOptions) resolveToken() (string, error) {
	// Priority 1: Environment variable
	if envToken := os.Getenv(EnvToken); envToken != "" {
		return envToken, nil
	}

	// Priority 2: File
	if o.TokenFile != "" {
		content, err := os.ReadFile(o.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(content))
		if token == "" {
			return "", errors.New("token file is empty")
		}
		return token, nil
	}

	// Priority 3: CLI parameter
	if o.Token != "" {
		return o.Token, nil
	}

	// Priority 4: Interactive prompt (fallback)
	token, err := o.IO.ReadPassword("Access token: ")
	if err != nil {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	return token, nil
}

func parseClaims(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, &syncerr.AuthorizationError{Reason: "malformed access token: " + err.Error()}
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}
