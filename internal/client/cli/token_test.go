package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/client/iocli"
	"github.com/iudanet/booksync/internal/syncerr"
)

func writeTokenFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestResolveToken_FromEnvVar проверяет чтение токена из переменной окружения
func TestResolveToken_FromEnvVar(t *testing.T) {
	t.Setenv(EnvToken, "env-token")
	opts := &RootOptions{TokenFile: writeTokenFile(t, "file-token"), Token: "flag-token"}

	token, err := opts.resolveToken()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

// TestResolveToken_FromFile проверяет чтение токена из файла, trailing newline отбрасывается
func TestResolveToken_FromFile(t *testing.T) {
	t.Setenv(EnvToken, "")
	opts := &RootOptions{TokenFile: writeTokenFile(t, "file-token\n"), Token: "flag-token"}

	token, err := opts.resolveToken()
	require.NoError(t, err)
	assert.Equal(t, "file-token", token)
}

func TestResolveToken_FromFlag(t *testing.T) {
	t.Setenv(EnvToken, "")
	opts := &RootOptions{Token: "flag-token"}

	token, err := opts.resolveToken()
	require.NoError(t, err)
	assert.Equal(t, "flag-token", token)
}

func TestResolveToken_Prompt(t *testing.T) {
	t.Setenv(EnvToken, "")
	mock := &iocli.IOMock{
		ReadPasswordFunc: func(prompt string) (string, error) {
			return "  prompted-token \n", nil
		},
	}
	opts := &RootOptions{IO: mock}

	token, err := opts.resolveToken()
	require.NoError(t, err)
	assert.Equal(t, "prompted-token", token)
	require.Len(t, mock.ReadPasswordCalls(), 1)
	assert.Equal(t, "Access token: ", mock.ReadPasswordCalls()[0].Prompt)
}

func TestResolveToken_Errors(t *testing.T) {
	t.Setenv(EnvToken, "")

	tests := []struct {
		name    string
		opts    *RootOptions
		wantErr string
	}{
		{
			name:    "empty file",
			opts:    &RootOptions{TokenFile: writeTokenFile(t, " \n")},
			wantErr: "token file is empty",
		},
		{
			name:    "missing file",
			opts:    &RootOptions{TokenFile: filepath.Join(t.TempDir(), "absent")},
			wantErr: "failed to read token file",
		},
		{
			name: "empty prompt",
			opts: &RootOptions{IO: &iocli.IOMock{
				ReadPasswordFunc: func(string) (string, error) { return "", nil },
			}},
			wantErr: "token cannot be empty",
		},
		{
			name: "prompt failure",
			opts: &RootOptions{IO: &iocli.IOMock{
				ReadPasswordFunc: func(string) (string, error) { return "", errors.New("no tty") },
			}},
			wantErr: "failed to read token from stdin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.resolveToken()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestParseClaims(t *testing.T) {
	token := signToken(t, &tokenClaims{UserID: "u-1", TenantID: "t-1"})
	claims, err := parseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "t-1", claims.TenantID)

	// user_id берется из sub, если claim не задан
	token = signToken(t, &tokenClaims{TenantID: "t-1", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}})
	claims, err = parseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", claims.UserID)

	_, err = parseClaims("not-a-jwt")
	require.Error(t, err)
	assert.True(t, syncerr.IsAuthorization(err))
	assert.Equal(t, ExitAuth, ExitCode(err))
}
