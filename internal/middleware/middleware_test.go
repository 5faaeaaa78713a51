package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"sol-backend/internal/domain"
	"sol-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func withUser(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, map[string]interface{}{"user_id": userID, "role": role})
		return c.Next()
	}
}

func TestSession_LoadsUserFromRedis(t *testing.T) {
	rdb := newRedis(t)
	uid := uuid.NewString()
	payload, _ := json.Marshal(map[string]interface{}{
		"user": SessionUser{UserID: uid, Email: "a@b.c", Role: constants.Admin},
	})
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+"abc", payload, 0).Err())

	app := fiber.New()
	app.Use(Session(rdb))
	app.Get("/", func(c *fiber.Ctx) error {
		actor, ok := Actor(c)
		if !ok {
			return c.SendStatus(401)
		}
		return c.JSON(fiber.Map{"user_id": actor.UserID, "admin": actor.IsAdmin(), "sid": GetSessionID(c)})
	})

	for _, cookie := range []string{"abc", "s:abc.signature"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Cookie", SessionCookieName+"="+cookie)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, cookie)
		var out map[string]interface{}
		body, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, uid, out["user_id"])
		assert.Equal(t, true, out["admin"])
		assert.Equal(t, "abc", out["sid"])
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookieName+"=missing")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestSession_GarbageAndNilRedis(t *testing.T) {
	rdb := newRedis(t)
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+"bad", "not json", 0).Err())
	for name, client := range map[string]*redis.Client{"garbage": rdb, "nil": nil} {
		app := fiber.New()
		app.Use(Session(client), RequireAuth())
		app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Cookie", SessionCookieName+"=bad")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode, name)
	}
}

func TestActor_RejectsMalformedUser(t *testing.T) {
	app := fiber.New()
	app.Get("/:id", func(c *fiber.Ctx) error {
		c.Locals(userLocal, map[string]interface{}{"user_id": c.Params("id"), "role": "member"})
		_, ok := Actor(c)
		return c.JSON(fiber.Map{"ok": ok})
	})
	for id, want := range map[string]string{uuid.NewString(): `{"ok":true}`, "nope": `{"ok":false}`, uuid.Nil.String(): `{"ok":false}`} {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+id, nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, want, string(body), id)
	}
}

func TestAuthorizePermission(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		perm   string
		status int
	}{
		{"member may create", constants.Member, "create_sol", 200},
		{"member may not validate", constants.Member, "validate_payments", 403},
		{"admin may validate", constants.Admin, "validate_payments", 200},
		{"superadmin may reopen", constants.Superadmin, "resolve_disputes", 200},
		{"missing role", "", "view_data", 500},
		{"unknown permission", constants.Admin, "fly", 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", withUser(uuid.NewString(), tc.role), AuthorizePermission(tc.perm), func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestErrorHandler_MapsDomainErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/domain", func(c *fiber.Ctx) error {
		return domain.NewError(domain.ErrNotReady, "t-1", "transfer is pending")
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(418, "teapot") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/domain", nil))
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	e := out["error"].(map[string]interface{})
	assert.Equal(t, "transfer is pending", e["message"])
	assert.Equal(t, map[string]interface{}{"kind": "NotReady", "id": "t-1"}, e["details"])

	resp, err = app.Test(httptest.NewRequest("GET", "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, 418, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "boom")
}

func TestHealthMarker_CountsAndLogsServerErrors(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(HealthMarker(rdb), Tracing())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("db down") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("{}") })

	for _, p := range []string{"/ok", "/ok", "/fail", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}

	ctx := context.Background()
	total, _ := rdb.Get(ctx, KeyReqTotal).Int()
	errs, _ := rdb.Get(ctx, KeyReqErrors).Int()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, errs)

	entries, err := rdb.LRange(ctx, KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &entry))
	assert.Equal(t, "/fail", entry["path"])
	assert.EqualValues(t, 500, entry["status"])
	assert.Equal(t, "db down", entry["error"])
	assert.NotEmpty(t, entry["trace_id"])
}

func TestTracing_ReusesValidIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "<script>")
	resp, err = app.Test(req)
	require.NoError(t, err)
	_, perr := uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, perr)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".sol.app", DevPassword: "letmein"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://web.sol.app")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://web.sol.app", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	req.Header.Set("dev-password", "letmein")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}
