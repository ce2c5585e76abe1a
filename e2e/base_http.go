package e2e

import (
	"bytes"
	"dm-chat/auth"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
	s.client = &http.Client{Timeout: 5 * time.Second}
	s.tokens = auth.NewTokenManager(s.Config.JWTSecret, time.Hour)
}

// Step prints a colorized header so the steps stand out in verbose logs
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseHTTPSuite) Token(userID string) string {
	token, err := s.tokens.GenerateToken(userID, nil)
	s.Require().NoError(err)
	return token
}

// Call sends a JSON request as userID and decodes the answer into out when given.
func (s *BaseHTTPSuite) Call(method, path, userID string, body, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token(userID))
	} else {
		req.Header.Set(auth.InternalKeyHeader, s.Config.InternalAPIKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("REQUEST:\n%s\nRESPONSE:\n%s", payload, raw)
	}
	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

func (s *BaseHTTPSuite) Dial(userID string) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: s.Config.ServerAddr, Path: "/ws", RawQuery: "token=" + s.Token(userID)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err)
	return conn
}
