package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/room"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

func newTestServer(t *testing.T, rules engine.Rules) (*Service, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Rules = rules
	svc := NewService(cfg, events.NewMemoryPublisher(), nil, clockwork.NewFakeClock())

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return svc, srv
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads frames until one of msgType arrives.
func readUntil(t *testing.T, ws *websocket.Conn, msgType string) transport.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.SetReadDeadline(deadline)
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		var env transport.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == msgType {
			return env
		}
	}
}

func writeJSONFrame(t *testing.T, ws *websocket.Conn, v string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(v)))
}

func TestWebSocket_MissingParamsClosesWithPolicyViolation(t *testing.T) {
	_, srv := newTestServer(t, engine.DefaultRules())

	for _, path := range []string{"/ws/draft?roomKey=L1", "/ws/draft?userId=alice", "/ws/predictions"} {
		ws := dialWS(t, srv, path)
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := ws.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%s: got %v", path, err)
	}
}

func TestWebSocket_DraftFlow(t *testing.T) {
	svc, srv := newTestServer(t, twoSeatRules())

	alice := dialWS(t, srv, "/ws/draft?roomKey=L1&userId=alice")
	readUntil(t, alice, TypeDraftStatus)

	bob := dialWS(t, srv, "/ws/draft?roomKey=L1&userId=bob")
	readUntil(t, bob, TypeDraftStatus)

	joined := readUntil(t, alice, TypeUserJoined)
	var j userJoinedMessage
	require.NoError(t, json.Unmarshal(joined.Data, &j))
	assert.Equal(t, "bob", j.UserID)

	status := readUntil(t, alice, TypeDraftStatus)
	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(status.Data, &snap))
	assert.Equal(t, engine.StatusActive, snap.State.Status)

	writeJSONFrame(t, alice, `{"type":"PICK_MADE","data":{"itemId":"P100"}}`)
	made := readUntil(t, bob, TypePickMade)
	var pm pickMadeMessage
	require.NoError(t, json.Unmarshal(made.Data, &pm))
	assert.Equal(t, "P100", pm.Pick.ItemID)
	assert.False(t, pm.IsAutoPick)
	assert.Equal(t, 2, pm.Turn.CurrentPickerSeat)

	writeJSONFrame(t, alice, `{"type":"PICK_MADE","data":{"itemId":"P101"}}`)
	readUntil(t, alice, TypePickRejected)

	writeJSONFrame(t, bob, `{"type":"PING"}`)
	readUntil(t, bob, TypePong)

	alice.Close()
	readUntil(t, bob, TypeUserLeft)

	bob.Close()
	require.Eventually(t, func() bool {
		_, ok := svc.store.Get("L1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_PredictionChannel(t *testing.T) {
	svc, srv := newTestServer(t, engine.DefaultRules())

	alice := dialWS(t, srv, "/ws/predictions?userId=alice")
	readUntil(t, alice, "PREDICTIONS")
	bob := dialWS(t, srv, "/ws/predictions?userId=bob")
	readUntil(t, bob, "PREDICTIONS")

	require.Eventually(t, func() bool {
		return svc.Predictions().Registry().Len() == 2
	}, 2*time.Second, 10*time.Millisecond)

	writeJSONFrame(t, alice, `{"type":"SUBMIT_PREDICTION","data":{"questionId":"q1","choice":"YES"}}`)
	readUntil(t, bob, "NEW_PREDICTION")
	readUntil(t, bob, "CONSENSUS_UPDATE")

	svc.HandleResult(events.PredictionResult{QuestionID: "q1", Outcome: "YES", ResolvedAt: time.Now()})
	res := readUntil(t, alice, "PREDICTION_RESULT")
	assert.Contains(t, string(res.Data), `"winners":["alice"]`)
}

func TestStateRoutes(t *testing.T) {
	svc, srv := newTestServer(t, engine.DefaultRules())

	conn := dialWS(t, srv, "/ws/draft?roomKey=L1&userId=alice")
	readUntil(t, conn, TypeDraftStatus)

	resp, err := http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summaries []room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "L1", summaries[0].RoomKey)
	assert.Equal(t, 1, summaries[0].Participants)

	resp2, err := http.Get(srv.URL + "/api/rooms/L1/state")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var snap room.Snapshot
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&snap))
	assert.Equal(t, engine.StatusWaiting, snap.State.Status)

	resp3, err := http.Get(srv.URL + "/api/rooms/missing/state")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	resp4, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp4.Body.Close()
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp4.Body).Decode(&stats))
	assert.Equal(t, float64(1), stats["active_rooms"])
	assert.Equal(t, "draftroom_gateway", svc.GetStats()["service"])
}
