package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parley/delegation"
	"parley/pipeline"
	"parley/room"
	"parley/store/sqlite"
	"parley/upstream"
	"parley/wireproto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := sqlite.NewStore(client)
	rooms := room.NewManager()
	engine := delegation.NewEngine()
	pipe := pipeline.New(store, rooms, upstream.NewClient("http://unused.invalid"))

	return NewRouter(Deps{Journals: store, Blocks: store, Rooms: rooms, Engine: engine, Pipeline: pipe})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebsocketCreateJournalRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	s := httptest.NewServer(router)
	defer s.Close()

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(wireproto.ClientMessage{Type: wireproto.ClientCreateJournal, Title: "from the wire"}))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp wireproto.ServerMessage
	require.NoError(t, ws.ReadJSON(&resp))

	assert.Equal(t, wireproto.ServerJournalCreated, resp.Type)
	require.NotNil(t, resp.Journal)
	assert.Equal(t, "from the wire", resp.Journal.Title)
}
