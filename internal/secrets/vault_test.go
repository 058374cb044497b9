package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/secrets"
)

func writeEnv(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// The server chains the dotenv file under the process environment.
func serverLoader(path string) secrets.Loader {
	return secrets.Chain(
		secrets.DotenvLoader(path, secrets.Keys...),
		secrets.EnvLoader(secrets.Keys...),
	)
}

func TestVault_EnvironmentOverridesDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeEnv(t, path, "LINKSHOP_JWT_SECRET=from-file\nLINKSHOP_SMS_API_KEY=sms-file\nUNRELATED=x\n")
	t.Setenv(secrets.JWTSecret, "from-env")

	v, err := secrets.NewVault(serverLoader(path))
	require.NoError(t, err)

	assert.Equal(t, "from-env", v.Get(secrets.JWTSecret))
	assert.Equal(t, "sms-file", v.Get(secrets.SMSAPIKey))
	assert.Empty(t, v.Get(secrets.PaymentWebhookKey))
	assert.Equal(t, []string{secrets.JWTSecret, secrets.SMSAPIKey}, v.Keys())
}

func TestVault_MissingDotenvFile(t *testing.T) {
	t.Setenv(secrets.SuperAdminSecret, "super")
	v, err := secrets.NewVault(serverLoader(filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, err)
	assert.Equal(t, "super", v.Get(secrets.SuperAdminSecret))
}

func TestVault_UnreadableDotenvFails(t *testing.T) {
	// A directory in place of the file is a read error, not a missing file.
	_, err := secrets.NewVault(serverLoader(t.TempDir()))
	assert.Error(t, err)
}

func TestVault_ReloadRotatesWebhookKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeEnv(t, path, "LINKSHOP_PAYMENT_WEBHOOK_SECRET=whsec-old\n")
	v, err := secrets.NewVault(secrets.DotenvLoader(path, secrets.Keys...))
	require.NoError(t, err)

	// Handlers read the key per request through a closure like this one.
	current := func() string { return v.Get(secrets.PaymentWebhookKey) }
	assert.Equal(t, "whsec-old", current())

	writeEnv(t, path, "LINKSHOP_PAYMENT_WEBHOOK_SECRET=whsec-new\n")
	require.NoError(t, v.Reload())
	assert.Equal(t, "whsec-new", current())
}

func TestVault_FailedReloadKeepsValues(t *testing.T) {
	calls := 0
	v, err := secrets.NewVault(func() (map[string]string, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("vault backend down")
		}
		return map[string]string{secrets.JWTSecret: "keep-me"}, nil
	})
	require.NoError(t, err)

	require.Error(t, v.Reload())
	assert.Equal(t, "keep-me", v.Get(secrets.JWTSecret))
}

func TestVault_InitialLoadError(t *testing.T) {
	_, err := secrets.NewVault(func() (map[string]string, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
}

func TestVault_ConcurrentGetDuringReload(t *testing.T) {
	v, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{secrets.JWTSecret: "jwt"}, nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = v.Get(secrets.JWTSecret)
			}
		}()
		go func() {
			defer wg.Done()
			_ = v.Reload()
		}()
	}
	wg.Wait()
	assert.Equal(t, "jwt", v.Get(secrets.JWTSecret))
}

func TestVault_WatchSIGHUP(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeEnv(t, path, "LINKSHOP_SUPER_ADMIN_SECRET=before\n")
	v, err := secrets.NewVault(secrets.DotenvLoader(path, secrets.Keys...))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.WatchSIGHUP(ctx)

	writeEnv(t, path, "LINKSHOP_SUPER_ADMIN_SECRET=after\n")
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))
	assert.Eventually(t, func() bool {
		return v.Get(secrets.SuperAdminSecret) == "after"
	}, 2*time.Second, 10*time.Millisecond)
}
