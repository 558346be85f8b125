package services

import (
	"context"
	"testing"
	"time"

	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogAndHistory(t *testing.T) {
	s := setupTestStore(t)
	audit := NewAuditService(s, true, 100)

	ctx := util.SetIPContext(context.Background(), "203.0.113.9")
	ctx = util.SetUserAgentContext(ctx, "portal-test")
	ctx = util.SetRequestInfoContext(ctx, "POST", "/oauth/grant")

	for i := 0; i < 3; i++ {
		audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventConsentGranted,
			SubjectID:    farmer,
			ClientID:     cropAdvisoryID,
			ResourceType: models.ResourceConsent,
			ResourceID:   "consent-" + string(rune('a'+i)),
			Action:       "consent granted",
			Success:      true,
		})
	}
	audit.Log(ctx, AuditLogEntry{
		EventType: models.EventConsentRevoked,
		SubjectID: "farmer-7",
		Action:    "consent revoked",
		Success:   true,
	})

	require.NoError(t, audit.Shutdown(context.Background()))

	logs, page, err := audit.History(context.Background(), farmer, store.NewPaginationParams(1, 2))
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.True(t, page.HasNext)

	entry := logs[0]
	assert.Equal(t, farmer, entry.SubjectID)
	assert.Equal(t, "203.0.113.9", entry.ActorIP)
	assert.Equal(t, "portal-test", entry.UserAgent)
	assert.Equal(t, "POST", entry.RequestMethod)
	assert.Equal(t, "/oauth/grant", entry.RequestPath)
	assert.Equal(t, models.SeverityInfo, entry.Severity)
}

func TestAuditService_Disabled(t *testing.T) {
	s := setupTestStore(t)
	audit := NewAuditService(s, false, 0)

	audit.Log(context.Background(), AuditLogEntry{EventType: models.EventConsentGranted, Action: "x"})
	require.NoError(t, audit.LogSync(context.Background(), AuditLogEntry{EventType: models.EventConsentGranted, Action: "x"}))
	require.NoError(t, audit.Shutdown(context.Background()))

	logs, _, err := audit.History(context.Background(), "", store.NewPaginationParams(1, 10))
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestAuditService_ShutdownIsIdempotent(t *testing.T) {
	audit := NewAuditService(setupTestStore(t), true, 10)
	require.NoError(t, audit.Shutdown(context.Background()))
	require.NoError(t, audit.Shutdown(context.Background()))
}

func TestAuditService_CleanupOldLogs(t *testing.T) {
	s := setupTestStore(t)
	audit := NewAuditService(s, false, 0)
	ctx := context.Background()

	old := &models.AuditLog{
		ID:        "old",
		EventType: models.EventConsentGranted,
		EventTime: time.Now().Add(-100 * 24 * time.Hour),
		Severity:  models.SeverityInfo,
		SubjectID: farmer,
		Action:    "consent granted",
		CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
	}
	recent := &models.AuditLog{
		ID:        "recent",
		EventType: models.EventConsentGranted,
		EventTime: time.Now(),
		Severity:  models.SeverityInfo,
		SubjectID: farmer,
		Action:    "consent granted",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateAuditLogBatch(ctx, []*models.AuditLog{old, recent}))

	deleted, err := audit.CleanupOldLogs(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestMaskSensitiveDetails(t *testing.T) {
	masked := maskSensitiveDetails(models.AuditDetails{
		"client_secret":   "s3cr3t",
		"access_token":    "eyJhbGciOi",
		"auth_request_id": "0123456789abcdef0123456789abcdef",
		"jti":             "short",
		"scope":           "profile",
	})

	assert.Equal(t, "***REDACTED***", masked["client_secret"])
	assert.Equal(t, "***REDACTED***", masked["access_token"])
	assert.Equal(t, "01234567...cdef", masked["auth_request_id"])
	assert.Equal(t, "short", masked["jti"])
	assert.Equal(t, "profile", masked["scope"])
	assert.Nil(t, maskSensitiveDetails(nil))
}
