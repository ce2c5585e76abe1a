package test

import (
	"context"
	"dm-chat/auth"
	"dm-chat/infrastructure/api"
	"dm-chat/mocks"
	"dm-chat/observability"
	"dm-chat/repositories"
	"dm-chat/runtime"
	"dm-chat/runtime/workers"
	"dm-chat/services"
	"dm-chat/sink"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const internalKey = "internal-key"

type stack struct {
	server       *httptest.Server
	orchestrator *runtime.Orchestrator
	tokens       *auth.TokenManager
	monitoring   *observability.MonitoringManager
}

// startStack runs the whole server in process: badger on disk, the
// orchestrator with its workers and the HTTP router.
func startStack(t *testing.T, publisher sink.Publisher) stack {
	t.Helper()
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	users := repositories.NewUserRepository(db, log)
	messages, err := repositories.NewMessageRepository(db, log)
	req.NoError(err)

	monitoring := observability.NewMonitoringManager(log)
	supervisor := workers.NewSupervisor(log, 100*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, users, monitoring, runtime.Settings{
		BufferSize:      128,
		LaneBufferSize:  16,
		DeliveryTimeout: time.Second,
		LaneIdleTimeout: time.Second,
		SinkTimeout:     time.Second,
		MetricInterval:  time.Second,
	})
	if publisher != nil {
		orchestrator.RegisterSinks(sink.NewNatsPresenceSink(log, publisher, "dm"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = orchestrator.Start(ctx)
	}()

	reconciler := services.NewReconciler(log, messages, monitoring)
	chat := services.NewChatService(log, messages, users, orchestrator.Distributor(), reconciler, monitoring, 2000)
	presence := services.NewPresenceService(log, users, orchestrator.Tracker(), monitoring)
	tokens := auth.NewTokenManager("an-integration-secret-of-32-bytes", time.Hour)
	server := httptest.NewServer(api.NewServer(log, chat, presence, tokens, monitoring, api.Settings{
		ConnectionBufferSize: 16,
		InternalAPIKey:       internalKey,
		WriteWait:            time.Second,
		PongWait:             10 * time.Second,
	}).Router())

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-stopped
		_ = messages.Close()
		_ = db.Close()
	})
	return stack{server: server, orchestrator: orchestrator, tokens: tokens, monitoring: monitoring}
}

func (s stack) call(t *testing.T, method, path, userID string, body, out any) int {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	r, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	if userID == "" {
		r.Header.Set(auth.InternalKeyHeader, internalKey)
	} else {
		token, err := s.tokens.GenerateToken(userID, nil)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s stack) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := s.tokens.GenerateToken(userID, nil)
	require.NoError(t, err)
	u, err := url.Parse(s.server.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = "token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s stack) isOnline(t *testing.T, viewer, userID string) bool {
	var presence api.PresenceResponse
	code := s.call(t, http.MethodGet, "/api/messages/online-status/"+userID, viewer, nil, &presence)
	return code == http.StatusOK && presence.IsOnline
}

// nextMessage skips presence frames.
func nextMessage(t *testing.T, conn *websocket.Conn) api.MessageResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame api.Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Message != nil {
			return *frame.Message
		}
	}
}

func Test_Offline_Receiver_Reads_On_Fetch(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)

	// Given Alice and Bob known, Bob offline
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/1", "", api.UpsertUserRequest{Name: "Alice"}, nil))
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/2", "", api.UpsertUserRequest{Name: "Bob"}, nil))

	// When Alice writes to Bob
	var sent map[string]any
	req.Equal(http.StatusCreated, s.call(t, http.MethodPost, "/api/messages/send", "1",
		api.SendMessageRequest{ReceiverID: "2", Body: "hi"}, &sent))
	req.Equal("Message sent successfully", sent["message"])

	// Then Alice sees it unread
	var fromAlice []api.MessageResponse
	req.Equal(http.StatusOK, s.call(t, http.MethodGet, "/api/messages/2", "1", nil, &fromAlice))
	req.Len(fromAlice, 1)
	req.Equal("Alice", fromAlice[0].SenderName)
	req.False(fromAlice[0].Read)

	// When Bob fetches, he gets the snapshot taken before reconciliation
	var fromBob []api.MessageResponse
	req.Equal(http.StatusOK, s.call(t, http.MethodGet, "/api/messages/1", "2", nil, &fromBob))
	req.Len(fromBob, 1)
	req.False(fromBob[0].Read)

	// Then the message is read from now on
	req.Equal(http.StatusOK, s.call(t, http.MethodGet, "/api/messages/1", "2", nil, &fromBob))
	req.True(fromBob[0].Read)
	req.Equal(uint64(1), s.monitoring.Snapshot().MessagesRead)
}

func Test_Online_Receiver_Is_Pushed_In_Order(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)

	var mu sync.Mutex
	var subjects []string
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(subject string, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			subjects = append(subjects, subject)
			return nil
		}).AnyTimes()

	s := startStack(t, publisher)
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/1", "", api.UpsertUserRequest{Name: "Alice"}, nil))
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/2", "", api.UpsertUserRequest{Name: "Bob"}, nil))

	// Given Bob connected
	conn := s.dial(t, "2")
	req.Eventually(func() bool { return s.isOnline(t, "1", "2") }, 2*time.Second, 20*time.Millisecond)

	// When Alice sends two messages
	for _, body := range []string{"first", "second"} {
		req.Equal(http.StatusCreated, s.call(t, http.MethodPost, "/api/messages/send", "1",
			api.SendMessageRequest{ReceiverID: "2", Body: body}, nil))
	}

	// Then Bob receives them in send order
	first := nextMessage(t, conn)
	second := nextMessage(t, conn)
	req.Equal("first", first.Body)
	req.Equal("second", second.Body)
	req.Less(first.ID, second.ID)
	req.Equal("1", first.SenderID)

	// When Bob disconnects, he turns offline
	req.NoError(conn.Close())
	req.Eventually(func() bool { return !s.isOnline(t, "1", "2") }, 2*time.Second, 20*time.Millisecond)

	// And both transitions went to the bus
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == 2
	}, 2*time.Second, 20*time.Millisecond)
	mu.Lock()
	req.Equal([]string{"dm.presence.2", "dm.presence.2"}, subjects)
	mu.Unlock()
}

func Test_Presence_Is_Broadcast_To_Other_Users(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/1", "", api.UpsertUserRequest{Name: "Alice"}, nil))
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/2", "", api.UpsertUserRequest{Name: "Bob"}, nil))

	// Given Alice connected
	alice := s.dial(t, "1")
	req.Eventually(func() bool { return s.isOnline(t, "2", "1") }, 2*time.Second, 20*time.Millisecond)

	// When Bob connects
	s.dial(t, "2")

	// Then Alice is told Bob is online
	req.NoError(alice.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		var frame api.Frame
		req.NoError(alice.ReadJSON(&frame))
		if frame.Presence != nil && frame.Presence.UserID == "2" {
			req.True(frame.Presence.Online)
			break
		}
	}
}

func Test_Unauthenticated_Access_Is_Rejected(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)

	resp, err := http.Get(s.server.URL + "/api/messages/1")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Shutdown_Ends_Live_Sessions(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)
	req.Equal(http.StatusNoContent, s.call(t, http.MethodPut, "/internal/users/2", "", api.UpsertUserRequest{Name: "Bob"}, nil))

	// Given Bob connected
	conn := s.dial(t, "2")
	req.Eventually(func() bool { return s.isOnline(t, "1", "2") }, 2*time.Second, 20*time.Millisecond)

	// When the server closes every live session on its way down
	req.Equal(1, s.orchestrator.CloseSessions())

	// Then Bob is offline at once and his connection is closed
	req.False(s.isOnline(t, "1", "2"))
	req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}
