package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

var at = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func jsonHandler(t *testing.T, routes map[string]func(body map[string]any) (int, any)) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		code, out := h(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// Web service
// ═══════════════════════════════════════════════════════════════════════════

func TestWebService_OpenDoorOnline(t *testing.T) {
	var gotTerminal string
	result := "1"
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"POST /open-door-online": func(body map[string]any) (int, any) {
			gotTerminal, _ = body["terminal"].(string)
			return http.StatusOK, webResult{Result: result}
		},
	}))
	defer srv.Close()

	ws := NewWebService(srv.URL, "0042", time.Second, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, types.StatusAllow, ws.OpenDoorOnline(ctx, types.Credential{ReaderID: 2, CardID: "00001"}, at))
	assert.Equal(t, "MDB0042", gotTerminal)

	result = "0"
	assert.Equal(t, types.StatusDenyCardNotFound, ws.OpenDoorOnline(ctx, types.Credential{ReaderID: 1, CardID: "00001"}, at))
	assert.Equal(t, "MDA0042", gotTerminal)

	result = "garbage"
	assert.Equal(t, types.StatusDenyInsertFailed, ws.OpenDoorOnline(ctx, types.Credential{ReaderID: 1, CardID: "00001"}, at))
}

func TestWebService_InsertToAccess(t *testing.T) {
	var gotEvent string
	var gotStatus float64
	result := "OK"
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"POST /access": func(body map[string]any) (int, any) {
			gotEvent, _ = body["event_id"].(string)
			gotStatus, _ = body["status"].(float64)
			return http.StatusOK, webResult{Result: result}
		},
	}))
	defer srv.Close()

	ws := NewWebService(srv.URL, "0042", time.Second, zap.NewNop())
	rec := types.AccessRecord{EventID: "ev-1", CardID: "00001", ReaderID: 1, OccurredAt: at, Status: types.StatusAllow}

	assert.Equal(t, types.StatusAllow, ws.InsertToAccess(context.Background(), rec))
	assert.Equal(t, "ev-1", gotEvent)
	assert.Equal(t, float64(701), gotStatus)

	result = "FAIL"
	assert.Equal(t, types.StatusAllowInsertFailed, ws.InsertToAccess(context.Background(), rec))
}

func TestWebService_UnreachableFoldsIntoStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ws := NewWebService(srv.URL, "0042", 200*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	assert.False(t, ws.CheckConnection(ctx))
	assert.Equal(t, types.StatusDenyInsertFailed, ws.OpenDoorOnline(ctx, types.Credential{ReaderID: 1, CardID: "1"}, at))
	assert.Equal(t, types.StatusUnauthorizedAccessInsertFailed,
		ws.InsertToAccess(ctx, types.AccessRecord{ReaderID: 1, Status: types.StatusUnauthorizedAccess}))
}

func TestWebService_Loads(t *testing.T) {
	times := make([]string, types.TimePlanDays*4)
	for i := range times {
		times[i] = "00:00:00"
	}
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"GET /terminals/MDA7/cards": func(map[string]any) (int, any) {
			return http.StatusOK, map[string]any{"cards": []webCard{
				{Card: " 00001 ", Reader: 1, Plan: 3, Allowed: true, Note: "x"},
				{Card: "00002", Reader: 2, Deleted: true},
			}}
		},
		"GET /terminals/MDA7/timeplans": func(map[string]any) (int, any) {
			return http.StatusOK, map[string]any{"plans": []webTimePlan{
				{ID: 3, Name: "office", Action: int(types.ActionPulse), Times: times},
			}}
		},
		"GET /ping": func(map[string]any) (int, any) { return http.StatusOK, map[string]string{} },
	}))
	defer srv.Close()

	ws := NewWebService(srv.URL+"/", "7", time.Second, zap.NewNop())
	ctx := context.Background()

	cards, err := ws.LoadAllCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, types.CardRecord{CardID: "00001", ReaderID: 1, PlanID: 3, Allowed: true, Note: "x"}, cards[0])
	assert.True(t, cards[1].Deleted)

	plans, err := ws.LoadAllTimePlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 3, plans[0].ID)
	assert.Equal(t, types.ActionPulse, plans[0].Action)

	assert.True(t, ws.CheckConnection(ctx))
}

// ═══════════════════════════════════════════════════════════════════════════
// IVAR
// ═══════════════════════════════════════════════════════════════════════════

func TestIVAR_CheckCardMapping(t *testing.T) {
	result := 0
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"POST /check-card": func(map[string]any) (int, any) { return http.StatusOK, ivarResult{Result: result} },
	}))
	defer srv.Close()

	iv := NewIVAR(srv.URL, map[int]string{1: "gate-a", 2: "gate-b"}, time.Second, zap.NewNop())
	cred := types.Credential{ReaderID: 1, CardID: "00001"}
	ctx := context.Background()

	cases := []struct {
		result int
		want   types.Status
	}{
		{0, types.StatusAllow},
		{-1, types.StatusDenyTerminalNotFound},
		{-2, types.StatusDenyCardNotFound},
		{-9, types.StatusDenyInsertFailed},
	}
	for _, tc := range cases {
		result = tc.result
		assert.Equal(t, tc.want, iv.OpenDoorOnline(ctx, cred, at), "result %d", tc.result)
	}
}

func TestIVAR_InsertMapping(t *testing.T) {
	result := 0
	calls := 0
	var gotAccess float64
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"POST /records": func(body map[string]any) (int, any) {
			calls++
			gotAccess, _ = body["access"].(float64)
			return http.StatusOK, ivarResult{Result: result}
		},
	}))
	defer srv.Close()

	iv := NewIVAR(srv.URL, map[int]string{1: "gate-a"}, time.Second, zap.NewNop())
	ctx := context.Background()
	rec := func(s types.Status) types.AccessRecord {
		return types.AccessRecord{EventID: "e", CardID: "1", ReaderID: 1, OccurredAt: at, Status: s}
	}

	assert.Equal(t, types.StatusAllow, iv.InsertToAccess(ctx, rec(types.StatusAllow)))
	assert.Equal(t, float64(1), gotAccess)
	assert.Equal(t, types.StatusDeny, iv.InsertToAccess(ctx, rec(types.StatusDeny)))
	assert.Equal(t, float64(0), gotAccess)

	result = -1
	assert.Equal(t, types.StatusAllowTerminalNotFound, iv.InsertToAccess(ctx, rec(types.StatusAllow)))
	result = -2
	assert.Equal(t, types.StatusDenyCardNotFound, iv.InsertToAccess(ctx, rec(types.StatusDeny)))
	assert.Equal(t, types.StatusAllowDoorNotClosedInsertFailed, iv.InsertToAccess(ctx, rec(types.StatusAllowDoorNotClosed)))
	result = 5
	assert.Equal(t, types.StatusAllowInsertFailed, iv.InsertToAccess(ctx, rec(types.StatusAllow)))

	before := calls
	assert.Equal(t, types.StatusOpenWithButton, iv.InsertToAccess(ctx, rec(types.StatusOpenWithButton)))
	assert.Equal(t, types.StatusUnauthorizedAccessInsertFailed, iv.InsertToAccess(ctx, rec(types.StatusUnauthorizedAccessInsertFailed)))
	assert.Equal(t, before, calls, "button and unauthorized events are not sent")
}

func TestIVAR_LoadAllCardsAndTimePlans(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, map[string]func(map[string]any) (int, any){
		"GET /terminals/gate-a/readers/1/valid-cards": func(map[string]any) (int, any) {
			return http.StatusOK, map[string]any{"codes": []string{"00001", "00002"}}
		},
		"GET /terminals/gate-b/readers/2/valid-cards": func(map[string]any) (int, any) {
			return http.StatusOK, map[string]any{"codes": []string{"00003"}}
		},
	}))
	defer srv.Close()

	iv := NewIVAR(srv.URL, map[int]string{1: "gate-a", 2: "gate-b"}, time.Second, zap.NewNop())
	cards, err := iv.LoadAllCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, types.CardRecord{CardID: "00003", ReaderID: 2, Allowed: true}, cards[2])

	_, err = iv.LoadAllTimePlans(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNew_SelectsBackend(t *testing.T) {
	logger := zap.NewNop()
	assert.Nil(t, New(config.Operator{}, "1", 0, logger))

	a := New(config.Operator{WebServiceURL: "http://ws"}, "1", 0, logger)
	require.NotNil(t, a)
	assert.Equal(t, "web-service", a.Name())

	a = New(config.Operator{WebServiceURL: "http://ws", EnableIVAR: true, IVARServer: "http://ivar"}, "1", 0, logger)
	require.NotNil(t, a)
	assert.Equal(t, "ivar", a.Name())
}
