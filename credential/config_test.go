/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/acronis/go-authcache/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfgData    string
		wantCfg    Config
		wantErrKey string
	}{
		{
			name: "defaults",
			wantCfg: Config{
				BcryptCost: bcrypt.DefaultCost,
				StorePath:  DefaultStorePath,
				LoadRetry: LoadRetryConfig{
					InitialInterval: DefaultLoadRetryInitialInterval,
					MaxAttempts:     DefaultLoadRetryMaxAttempts,
				},
				PasswordPolicy: PasswordPolicyConfig{MinLength: DefaultPasswordMinLength, ForbidSubject: true},
			},
		},
		{
			name: "custom values",
			cfgData: `
credential:
  bcryptCost: 12
  storePath: /var/lib/authcache/credentials.yml
  loadRetry:
    initialInterval: 1s
    maxAttempts: 0
  passwordPolicy:
    minLength: 12
    forbiddenSubstrings: [password, qwerty]
    forbidSubject: false
`,
			wantCfg: Config{
				BcryptCost: 12,
				StorePath:  "/var/lib/authcache/credentials.yml",
				LoadRetry:  LoadRetryConfig{InitialInterval: time.Second},
				PasswordPolicy: PasswordPolicyConfig{
					MinLength:           12,
					ForbiddenSubstrings: []string{"password", "qwerty"},
				},
			},
		},
		{
			name:       "bcrypt cost is too low",
			cfgData:    "credential:\n  bcryptCost: 2\n",
			wantErrKey: "credential.bcryptCost",
		},
		{
			name:       "empty store path",
			cfgData:    "credential:\n  storePath: \"\"\n",
			wantErrKey: "credential.storePath",
		},
		{
			name:       "invalid retry interval",
			cfgData:    "credential:\n  loadRetry:\n    initialInterval: soon\n",
			wantErrKey: "credential.loadRetry.initialInterval",
		},
		{
			name:       "negative retry attempts",
			cfgData:    "credential:\n  loadRetry:\n    maxAttempts: -1\n",
			wantErrKey: "credential.loadRetry.maxAttempts",
		},
		{
			name:       "negative password min length",
			cfgData:    "credential:\n  passwordPolicy:\n    minLength: -1\n",
			wantErrKey: "credential.passwordPolicy.minLength",
		},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.wantErrKey != "" {
				require.ErrorContains(t, err, tt.wantErrKey)
				return
			}
			require.NoError(t, err)
			tt.wantCfg.keyPrefix = cfgDefaultKeyPrefix
			require.Equal(t, &tt.wantCfg, cfg)
		})
	}
}

func TestConfig_RegistryOpts(t *testing.T) {
	cfg := &Config{
		BcryptCost:     8,
		LoadRetry:      LoadRetryConfig{InitialInterval: time.Second, MaxAttempts: 5},
		PasswordPolicy: PasswordPolicyConfig{MinLength: 10, ForbidSubject: true},
	}
	opts := cfg.RegistryOpts()
	require.Equal(t, 8, opts.BcryptCost)
	require.Equal(t, time.Second, opts.LoadRetryInitialInterval)
	require.Equal(t, 5, opts.LoadRetryMaxAttempts)
	require.NotNil(t, opts.PasswordChecker)
	require.ErrorIs(t, opts.PasswordChecker.Check("alice", "short"), ErrWeakPassword)
	require.ErrorIs(t, opts.PasswordChecker.Check("alice", "alice-1234567"), ErrWeakPassword)
	require.NoError(t, opts.PasswordChecker.Check("alice", "correct horse battery"))

	// Zero attempts in the configuration disables retries.
	cfg.LoadRetry.MaxAttempts = 0
	require.Equal(t, -1, cfg.RegistryOpts().LoadRetryMaxAttempts)
}
