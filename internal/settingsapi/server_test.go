package settingsapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keshon/voice-autoblock/internal/autoblock"
	"github.com/keshon/voice-autoblock/internal/notify"
	"github.com/keshon/voice-autoblock/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	v   settings.Values
	err error
}

func (f *fakeStore) Snapshot() settings.Values { return f.v }

func (f *fakeStore) Update(p settings.Patch) (settings.Values, error) {
	if f.err != nil {
		return f.v, f.err
	}
	if p.Enabled != nil {
		f.v.Enabled = *p.Enabled
	}
	if p.BotID != nil {
		f.v.BotID = *p.BotID
	}
	return f.v, nil
}

type fakeMemo struct {
	last string
	ok   bool
}

func (m fakeMemo) LastTriggered() (string, bool) { return m.last, m.ok }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSettings(t *testing.T) {
	store := &fakeStore{v: settings.Values{TargetServerID: "1", BotID: "2", Enabled: true}}
	rec := do(t, NewRouter(store, fakeMemo{}, nil), http.MethodGet, "/settings", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"targetServerId":"1","botId":"2","enabled":true}`, rec.Body.String())
}

func TestPatchSettings(t *testing.T) {
	store := &fakeStore{v: settings.Values{TargetServerID: "1", BotID: "2", Enabled: true}}
	rec := do(t, NewRouter(store, fakeMemo{}, nil), http.MethodPatch, "/settings", `{"enabled":false}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.v.Enabled)
	assert.Equal(t, "2", store.v.BotID)
}

func TestPatchSettings_BadJSON(t *testing.T) {
	rec := do(t, NewRouter(&fakeStore{}, fakeMemo{}, nil), http.MethodPatch, "/settings", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchSettings_Invalid(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("%w: botId", settings.ErrInvalidSetting)}
	rec := do(t, NewRouter(store, fakeMemo{}, nil), http.MethodPatch, "/settings", `{"botId":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStatus(t *testing.T) {
	ring := notify.NewRing(4)
	ring.Notify(autoblock.KindInfo, "User joined your voice channel - triggering block action")

	rec := do(t, NewRouter(&fakeStore{}, fakeMemo{last: "U2", ok: true}, ring), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.LastTriggered)
	assert.Equal(t, "U2", *got.LastTriggered)
	assert.Len(t, got.Notifications, 1)
}

func TestStatus_NoTrigger(t *testing.T) {
	rec := do(t, NewRouter(&fakeStore{}, fakeMemo{}, nil), http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"lastTriggered":null,"notifications":[]}`, rec.Body.String())
}
