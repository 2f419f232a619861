//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/pkg/authsdk"
)

// TestBootstrapAdmin verifies the admin account configured through the
// environment exists on first start and that self-registered accounts are
// not admins.
func TestBootstrapAdmin(t *testing.T) {
	baseURL := setupAuthContainer(t, relaxedRateLimits())
	client := authsdk.NewSDKClient(baseURL)

	admin := loginAdmin(t, client)

	me, err := admin.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, adminUsername, me.Username)
	require.Contains(t, me.Roles, "ADMIN")

	t.Run("admin username is taken", func(t *testing.T) {
		_, err := client.Register(t.Context(), adminUsername, userPassword)
		requireStatus(t, err, http.StatusConflict)
	})

	t.Run("registered accounts are not admins", func(t *testing.T) {
		user := registerAndLogin(t, client, "carol")
		require.False(t, user.HasRole("ADMIN"))

		_, err := user.ListKeys(t.Context())
		requireStatus(t, err, http.StatusForbidden)
	})
}
