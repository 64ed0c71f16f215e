package audit

import (
	"context"
	"testing"
	"time"

	"github.com/khanghh/krealm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditEventRepository(testutil.NewTestDB(t))
	rec := NewRecorder(repo)

	info := ClientInfo{IP: "10.0.0.1", UserAgent: "curl/8"}
	require.NoError(t, rec.RecordToken(ctx, TokenRecord{Realm: "acme", ClientID: "web", GrantType: "password", Username: "alice", Success: true, ClientInfo: info}))
	require.NoError(t, rec.RecordToken(ctx, TokenRecord{Realm: "acme", ClientID: "web", GrantType: "password", Reason: "invalid password", ClientInfo: info}))
	require.NoError(t, rec.RecordLogin(ctx, LoginRecord{Realm: "other", Username: "bob", Success: true}))

	events, err := repo.ListByRealm(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeTokenDenied, events[0].EventType)
	assert.Equal(t, "invalid password", events[0].Reason)
	assert.Equal(t, EventTypeTokenIssued, events[1].EventType)
	assert.Equal(t, "10.0.0.1", events[1].IP)

	purged, err := repo.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}
