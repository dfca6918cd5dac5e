package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tomlord1122/todolist/internal/alarm"
	"github.com/Tomlord1122/todolist/internal/auth"
	"github.com/Tomlord1122/todolist/internal/config"
	"github.com/Tomlord1122/todolist/internal/logger"
	"github.com/Tomlord1122/todolist/internal/repository"
	"github.com/Tomlord1122/todolist/internal/service"
)

type testEnv struct {
	srv       *httptest.Server
	scheduler *alarm.Scheduler
	tokens    *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.JWT.Secret = "test-secret"

	log := logger.Discard()
	store := repository.NewMemoryStore()
	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	hub := alarm.NewHub(log, nil)
	scheduler := alarm.NewScheduler(alarm.Multi{hub, alarm.LogNotifier{Logger: log}}, log)

	deps := Deps{
		Todos:  service.NewTodoService(store.Todos(), scheduler, log),
		Auth:   service.NewAuthService(store.Users(), tokens, bcrypt.MinCost, log),
		Tokens: tokens,
		Health: store,
		Hub:    hub,
		Logger: log,
	}
	srv := httptest.NewServer(New(cfg, deps).RegisterRoutes())
	t.Cleanup(func() {
		scheduler.Stop()
		hub.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, scheduler: scheduler, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) login(t *testing.T, name, email string) string {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/auth/signup", "",
		`{"name":"`+name+`","email":"`+email+`","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := e.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"secret1"}`)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Token string `json:"jwtToken"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) createTodo(t *testing.T, token, body string) service.TodoResponse {
	t.Helper()
	status, data := e.do(t, http.MethodPost, "/todos", token, body)
	require.Equal(t, http.StatusCreated, status, string(data))
	var todo service.TodoResponse
	require.NoError(t, json.Unmarshal(data, &todo))
	return todo
}

func message(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	msg, _ := resp["message"].(string)
	return msg
}

func TestHelloPingHealthMetrics(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Hello World from Todo List!"}`, string(body))

	status, body = env.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PONG", string(body))

	status, body = env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"up"`)

	status, body = env.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/auth/signup", "", `{"name":"alice","email":"alice@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"success":true,"message":"Signup successfully"}`, string(body))

	status, body = env.do(t, http.MethodPost, "/auth/signup", "", `{"name":"alice2","email":"ALICE@example.com","password":"secret2"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User is already exist, you can login", message(t, body))

	status, body = env.do(t, http.MethodPost, "/auth/signup", "", `{"name":"al","email":"x@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "name must be at least 3 characters", message(t, body))

	status, body = env.do(t, http.MethodPost, "/auth/signup", "", `{"name":"bob","email":"bob@example.com","password":"secret1","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, `Request body contains unknown field "admin"`, message(t, body))

	status, body = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Auth failed email or password is wrong", message(t, body))
	assert.NotContains(t, string(body), "jwtToken")

	status, body = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"abc"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Auth failed email or password is wrong", message(t, body))

	status, body = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, status)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Login Success", resp["message"])
	assert.Equal(t, "alice@example.com", resp["email"])
	assert.Equal(t, "alice", resp["name"])
	assert.NotEmpty(t, resp["jwtToken"])
}

func TestTodosRequireToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	status, body := env.do(t, http.MethodGet, "/todos", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized, JWT token is required", message(t, body))

	status, body = env.do(t, http.MethodGet, "/todos", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized, JWT token wrong or expired", message(t, body))

	// A token without the Bearer scheme is rejected.
	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/todos", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := auth.NewManager("other-secret", time.Hour).Issue(uuid.New(), "x@example.com")
	require.NoError(t, err)
	status, _ = env.do(t, http.MethodPost, "/todos", forged, `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateTodo(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	todo := env.createTodo(t, token, `{"name":"buy milk"}`)
	assert.Equal(t, "buy milk", todo.Name)
	assert.False(t, todo.IsDone)
	assert.Equal(t, "Medium", todo.Priority)
	assert.True(t, todo.AlarmEnabled)
	assert.Nil(t, todo.ExpiryAt)
	assert.NotEmpty(t, todo.ID)

	todo = env.createTodo(t, token, `{"name":"report","expiryAt":"2024-03-01","priority":"High","isDone":true}`)
	require.NotNil(t, todo.ExpiryAt)
	assert.Equal(t, int64(1709251200000), *todo.ExpiryAt)
	assert.Equal(t, "High", todo.Priority)
	assert.True(t, todo.IsDone)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing name", `{"priority":"High"}`, "name is required"},
		{"empty name", `{"name":""}`, "name is required"},
		{"name not a string", `{"name":5}`, "name is required"},
		{"bad expiry", `{"name":"x","expiryAt":"soon"}`, "expiryAt must be a timestamp in milliseconds or an RFC 3339 date"},
		{"expiry before year one", `{"name":"x","expiryAt":-8640000000000000}`, "expiryAt must be a timestamp in milliseconds or an RFC 3339 date"},
		{"bad priority", `{"name":"x","priority":"Urgent"}`, "priority must be one of Low, Medium, High"},
		{"malformed json", `{"name":`, "Request body contains badly-formed JSON"},
		{"two objects", `{"name":"a"}{"name":"b"}`, "Request body must only contain a single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/todos", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.message, message(t, body))
		})
	}

	status, body := env.do(t, http.MethodPost, "/todos", token, `{"name":"x","isDone":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, message(t, body), `invalid value for the "isDone" field`)

	status, body = env.do(t, http.MethodGet, "/todos", token, "")
	require.Equal(t, http.StatusOK, status)
	var list []service.TodoResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 2, "rejected creates must not be stored")
	assert.Equal(t, "report", list[0].Name)
	assert.Equal(t, "buy milk", list[1].Name)
}

func TestListTodosOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	env.createTodo(t, token, `{"name":"late low","expiryAt":200,"priority":"Low"}`)
	env.createTodo(t, token, `{"name":"open high","priority":"High"}`)
	env.createTodo(t, token, `{"name":"early medium","expiryAt":100,"priority":"Medium"}`)

	status, body := env.do(t, http.MethodGet, "/todos", token, "")
	require.Equal(t, http.StatusOK, status)
	var list []service.TodoResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 3)
	assert.Equal(t, "early medium", list[0].Name)
	assert.Equal(t, "late low", list[1].Name)
	assert.Equal(t, "open high", list[2].Name)

	status, body = env.do(t, http.MethodGet, "/todos?priority=High", token, "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "open high", list[0].Name)

	status, body = env.do(t, http.MethodGet, "/todos?isDone=perhaps", token, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "isDone must be true or false", message(t, body))
}

func TestEmptyListIsArray(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	status, body := env.do(t, http.MethodGet, "/todos", token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", string(body))
}

func TestUpdateTodo(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")
	todo := env.createTodo(t, token, `{"name":"draft","expiryAt":5000,"priority":"Low"}`)

	status, body := env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"isDone":true}`)
	require.Equal(t, http.StatusOK, status)
	var updated service.TodoResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.IsDone)
	assert.Equal(t, "draft", updated.Name)
	assert.Equal(t, "Low", updated.Priority)
	assert.Equal(t, int64(5000), *updated.ExpiryAt)

	status, body = env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"color":"blue"}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.IsDone)

	status, body = env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"expiryAt":null}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Nil(t, updated.ExpiryAt)

	status, body = env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"expiryAt":"not a date"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "expiryAt must be a timestamp in milliseconds or an RFC 3339 date", message(t, body))

	status, body = env.do(t, http.MethodGet, "/todos/"+todo.ID, token, "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Nil(t, updated.ExpiryAt, "a rejected update must not change the record")
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice", "alice@example.com")
	bob := env.login(t, "bobby", "bob@example.com")

	todo := env.createTodo(t, alice, `{"name":"secret plan"}`)

	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"name":"stolen"}`},
		{http.MethodDelete, ""},
	} {
		status, body := env.do(t, tc.method, "/todos/"+todo.ID, bob, tc.body)
		assert.Equal(t, http.StatusNotFound, status, tc.method)
		assert.Equal(t, "Todo not found", message(t, body))
	}

	status, body := env.do(t, http.MethodGet, "/todos", bob, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", string(body))

	status, body = env.do(t, http.MethodGet, "/todos/"+todo.ID, alice, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "secret plan")

	status, _ = env.do(t, http.MethodGet, "/todos/not-a-uuid", alice, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteTodos(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice", "alice@example.com")
	bob := env.login(t, "bobby", "bob@example.com")

	first := env.createTodo(t, alice, `{"name":"one"}`)
	env.createTodo(t, alice, `{"name":"two"}`)
	env.createTodo(t, alice, `{"name":"three"}`)
	env.createTodo(t, bob, `{"name":"bob's"}`)

	status, body := env.do(t, http.MethodDelete, "/todos/"+first.ID, alice, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Todo deleted successfully", message(t, body))

	status, _ = env.do(t, http.MethodDelete, "/todos/"+first.ID, alice, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodDelete, "/todos", alice, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"message":"All todos removed","deleted":2}`, string(body))

	status, body = env.do(t, http.MethodGet, "/todos", bob, "")
	assert.Equal(t, http.StatusOK, status)
	var list []service.TodoResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestAPIPrefixAlias(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	status, data := env.do(t, http.MethodPost, "/api/todos", token, `{"name":"via api"}`)
	require.Equal(t, http.StatusCreated, status)
	var todo service.TodoResponse
	require.NoError(t, json.Unmarshal(data, &todo))

	status, data = env.do(t, http.MethodGet, "/todos/"+todo.ID, token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"_id":"`+todo.ID+`"`)
}

func TestMutationsDriveAlarms(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	future := time.Now().Add(time.Hour).UnixMilli()
	todo := env.createTodo(t, token, `{"name":"later","expiryAt":`+jsonInt(future)+`}`)
	assert.Equal(t, 1, env.scheduler.Pending())

	env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"alarmEnabled":false}`)
	assert.Zero(t, env.scheduler.Pending())

	env.do(t, http.MethodPut, "/todos/"+todo.ID, token, `{"alarmEnabled":true}`)
	assert.Equal(t, 1, env.scheduler.Pending())

	env.do(t, http.MethodDelete, "/todos/"+todo.ID, token, "")
	assert.Zero(t, env.scheduler.Pending())
}

func TestAlarmWebsocket(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice@example.com")

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/alarms/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.srv.URL, "http")+"/alarms/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	soon := time.Now().Add(300 * time.Millisecond).UnixMilli()
	todo := env.createTodo(t, token, `{"name":"stand up","priority":"High","expiryAt":`+jsonInt(soon)+`}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg alarm.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "alarm", msg.Type)
	assert.Equal(t, todo.ID, msg.Reminder.TodoID.String())
	assert.Equal(t, "stand up (High)", msg.Reminder.Body)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
