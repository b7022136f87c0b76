package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	httpmiddleware "github.com/wolfman30/barber-booking-bot/internal/http/middleware"
)

func testConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	return &appconfig.Config{
		LogLevel:              "error",
		BusinessName:          "Caballeros",
		Timezone:              "America/Bogota",
		MinAdvanceHours:       1,
		SearchWindow:          30 * 24 * time.Hour,
		SessionTTL:            time.Hour,
		NLUProvider:           "none",
		CalendarBackend:       "memory",
		GoogleCredentialsFile: t.TempDir() + "/credentials.json",
		GoogleTokenFile:       t.TempDir() + "/token.json",
	}
}

func executeCLI(t *testing.T, cfg *appconfig.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogPrintsTOML(t *testing.T) {
	out, err := executeCLI(t, testConfig(t), "", "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "Mauricio")
	assert.Contains(t, out, "calendar_key")
}

func TestTokenRequiresSecret(t *testing.T) {
	_, err := executeCLI(t, testConfig(t), "", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
}

func TestTokenIsAcceptedByAdminIssuer(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminJWTSecret = "s3cret"

	out, err := executeCLI(t, cfg, "", "token", "--subject", "dueño", "--ttl", "1h")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "dueño", claims.Subject)
	assert.Equal(t, httpmiddleware.AdminIssuer, claims.Issuer)
}

func TestSlotsRejectsUnknownStaff(t *testing.T) {
	_, err := executeCLI(t, testConfig(t), "", "slots", "--staff", "Pedro", "--service", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown staff")
}

func TestSlotsRequiresFlags(t *testing.T) {
	_, err := executeCLI(t, testConfig(t), "", "slots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestSlotsOnMemoryCalendar(t *testing.T) {
	out, err := executeCLI(t, testConfig(t), "", "slots", "--staff", "1", "--service", "1", "--date", "07/01/2030")
	require.NoError(t, err)
	assert.Contains(t, out, "Mauricio")
	assert.Contains(t, out, "07/01/2030")
	assert.Contains(t, out, "09:30")
}

func TestChatRunsDialogue(t *testing.T) {
	out, err := executeCLI(t, testConfig(t), "1\n/salir\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Mauricio")
	assert.Contains(t, out, "Stiven")
}

func TestCalendarAuthNeedsCredentials(t *testing.T) {
	_, err := executeCLI(t, testConfig(t), "", "calendar", "auth", "--code", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
