package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sol-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// SessionUser is the Locals("user") shape the session middleware produces.
func SessionUser(a domain.Actor) map[string]interface{} {
	return map[string]interface{}{"user_id": a.UserID.String(), "role": a.Role}
}

// AsActor stands in for the session middleware in handler tests.
func AsActor(a domain.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", SessionUser(a))
		return c.Next()
	}
}

// Envelope is the decoded standard response body.
type Envelope struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    struct {
		Message    string                 `json:"message"`
		StatusCode int                    `json:"statusCode"`
		Details    map[string]interface{} `json:"details"`
	} `json:"error"`
}

// Do sends a JSON request to app and decodes the envelope. body may be nil.
func Do(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, Envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env Envelope
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp, env
}

// DecodeData unmarshals env.Data into out.
func DecodeData(t *testing.T, env Envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// ActorSwitch lets one test app act as different callers. The zero Actor means anonymous.
type ActorSwitch struct {
	Actor domain.Actor
}

func (s *ActorSwitch) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.Actor.Authenticated() {
			c.Locals("user", SessionUser(s.Actor))
		}
		return c.Next()
	}
}
