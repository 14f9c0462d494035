package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"EduPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandlerStoresEntry(t *testing.T) {
	store := &fakeAudit{}
	m := newFakeMetrics()
	h := NewAuditHandler("edupulse.audit", store, m)
	assert.Equal(t, "edupulse.audit", h.Topic())

	entry := models.AuditEntry{
		RequestID: "r1",
		Action:    models.ActionAnalyzeData,
		Table:     models.AuditTableAnalytics,
		UserID:    "u1",
		IPAddress: "10.0.0.1",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), raw))
	got := store.logged()
	require.Len(t, got, 1)
	assert.Equal(t, entry.RequestID, got[0].RequestID)
	assert.True(t, entry.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, 1, m.count(m.ops, "audit_store"))
}

func TestAuditHandlerRejectsBadMessages(t *testing.T) {
	store := &fakeAudit{}
	m := newFakeMetrics()
	h := NewAuditHandler("t", store, m)

	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Equal(t, 1, m.count(m.errors, "consumer_unmarshal"))

	assert.Error(t, h.Handle(context.Background(), []byte(`{"request_id":"r"}`)))
	assert.Equal(t, 1, m.count(m.errors, "consumer_invalid"))
	assert.Empty(t, store.logged())
}

func TestAuditHandlerStoreError(t *testing.T) {
	store := &fakeAudit{err: errors.New("insert failed")}
	m := newFakeMetrics()
	h := NewAuditHandler("t", store, m)

	err := h.Handle(context.Background(), []byte(`{"action":"ANALYZE_DATA","user_id":"u"}`))
	assert.EqualError(t, err, "insert failed")
	assert.Equal(t, 1, m.count(m.errors, "consumer_store"))
}
