package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/model"
	"github.com/Dicklesworthstone/osdiag/internal/source"
	"github.com/Dicklesworthstone/osdiag/internal/source/sourcetest"
)

func init() { gin.SetMode(gin.TestMode) }

func newServer() (*Server, *engine.Engine) {
	fake := &sourcetest.Fake{
		CPUs:     []model.CPU{{Usage: 30}},
		Memories: []model.Memory{{Total: 100, Used: 50, UsedPercent: 50}},
		Disks:    []model.Disk{{Primary: model.Mount{Total: 100, UsedPercent: 40, Accessible: true}}},
		Procs: []model.ProcessInfo{
			{PID: 1, Name: "init", RSS: 1 << 20},
			{PID: 2, Name: "firefox", RSS: 500 << 20},
		},
	}
	e := engine.New(engine.Options{DiskPath: "/", NewAdapter: func() source.Adapter { return fake }})
	return New(e, nil, "test"), e
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"message"`
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad body %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func TestHealthAndTools(t *testing.T) {
	s, _ := newServer()

	status, env := do(t, s, http.MethodGet, "/api/v1/health", "")
	if status != http.StatusOK || env.Code != CodeSuccess || !strings.Contains(string(env.Data), `"initialized":false`) {
		t.Errorf("health: %d %+v %s", status, env, env.Data)
	}

	_, env = do(t, s, http.MethodGet, "/api/v1/tools", "")
	var tools []engine.Tool
	if err := json.Unmarshal(env.Data, &tools); err != nil {
		t.Fatal(err)
	}
	if len(tools) != 15 || tools[0].Name != engine.OpInitialize {
		t.Errorf("tools: %+v", tools)
	}
}

func TestCallTool(t *testing.T) {
	s, _ := newServer()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   int
	}{
		{"before initialize", "/api/v1/tools/system_overview", "", http.StatusConflict, CodeNotInitialized},
		{"initialize", "/api/v1/tools/initialize", "", http.StatusOK, CodeSuccess},
		{"processes", "/api/v1/tools/running_processes", `{"limit": 1}`, http.StatusOK, CodeSuccess},
		{"unknown", "/api/v1/tools/format_disk", "{}", http.StatusNotFound, CodeNotFound},
		{"bad json", "/api/v1/tools/running_processes", `{"limit": "many"}`, http.StatusBadRequest, CodeInvalidArgument},
		{"missing dir", "/api/v1/tools/find_large_files", `{"directory": "/no/such/dir/osdiag"}`, http.StatusBadRequest, CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, s, http.MethodPost, tt.path, tt.body)
			if status != tt.status || env.Code != tt.code {
				t.Errorf("got %d/%d (%s), want %d/%d", status, env.Code, env.Msg, tt.status, tt.code)
			}
		})
	}
}

func TestRunningProcessesPayload(t *testing.T) {
	s, _ := newServer()
	do(t, s, http.MethodPost, "/api/v1/tools/initialize", "")

	_, env := do(t, s, http.MethodPost, "/api/v1/tools/running_processes", `{"limit": 1}`)
	var got struct {
		Total   int `json:"total"`
		Records []struct {
			Name     string `json:"name"`
			Category string `json:"category"`
		} `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 2 || len(got.Records) != 1 || got.Records[0].Name != "firefox" || got.Records[0].Category != "Browser" {
		t.Errorf("got %+v", got)
	}
}

func TestMonitorWebsocket(t *testing.T) {
	if testing.Short() {
		t.Skip("blocks for one second")
	}
	s, e := newServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/monitor/ws?interval_seconds=1"

	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("dial before initialize: err=%v", err)
	}

	if _, err := e.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var types []string
	for {
		var f struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		types = append(types, f.Type)
	}
	want := "sample sample sample sample sample report"
	if got := strings.Join(types, " "); got != want {
		t.Errorf("frames: got %q, want %q", got, want)
	}
}
