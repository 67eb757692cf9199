package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-api/internal/core/apperr"
	"user-api/internal/transport/http/validation"
)

type echoIn struct {
	Name string `json:"name" binding:"required,min=3"`
}

type pageIn struct {
	Limit  int `form:"limit,default=10" binding:"min=0"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

type errBody struct {
	Code    int                     `json:"code"`
	Msg     string                  `json:"msg"`
	Details []validation.FieldError `json:"details"`
}

func newEngine(t *testing.T, o Options) (*gin.Engine, EZ) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Setup())
	r := gin.New()
	return r, New(r.Group(""), o)
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) errBody {
	t.Helper()
	var b errBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func mountEcho(e EZ) {
	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *echoIn) (gin.H, error) {
			return gin.H{"name": in.Name}, nil
		},
	})
}

func TestRegisterAction_JSON(t *testing.T) {
	r, e := newEngine(t, Options{})
	mountEcho(e)

	w := do(r, http.MethodPost, "/echo", `{"name":"Ada Lovelace"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"name":"Ada Lovelace"}`, w.Body.String())

	w = do(r, http.MethodPost, "/echo", `{"name":"Al"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	b := decode(t, w)
	assert.Equal(t, 400, b.Code)
	assert.Equal(t, "Validation failed", b.Msg)
	require.Len(t, b.Details, 1)
	assert.Equal(t, "name", b.Details[0].Field)
	assert.Equal(t, "min", b.Details[0].Rule)

	w = do(r, http.MethodPost, "/echo", `{"name":"Ada Lovelace","admin":true}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	b = decode(t, w)
	require.Len(t, b.Details, 1)
	assert.Equal(t, "admin", b.Details[0].Field)
	assert.Equal(t, "property admin should not exist", b.Details[0].Message)

	w = do(r, http.MethodPost, "/echo", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	b = decode(t, w)
	require.Len(t, b.Details, 1)
	assert.Equal(t, "name", b.Details[0].Field)
	assert.Equal(t, "required", b.Details[0].Rule)
}

func TestRegisterAction_DecodeErrors(t *testing.T) {
	r, e := newEngine(t, Options{})
	mountEcho(e)
	mountPage(e)

	cases := []struct {
		name   string
		target string
		body   string
		msg    string
		field  string
		want   string
		detail string
	}{
		{name: "syntax", target: "/echo", body: `not json`, msg: "Malformed JSON"},
		{name: "truncated", target: "/echo", body: `{"name":"Ada`, msg: "Malformed JSON"},
		{name: "not an object", target: "/echo", body: `["Ada"]`, msg: "Request body must be a JSON object"},
		{name: "json type", target: "/echo", body: `{"name":123}`, msg: "Validation failed",
			field: "name", want: "string", detail: "name must be a string"},
		{name: "query type", target: "/page?offset=2&limit=abc", msg: "Validation failed",
			field: "limit", want: "integer", detail: "limit must be an integer number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodPost
			if tc.body == "" {
				method = http.MethodGet
			}
			w := do(r, method, tc.target, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			b := decode(t, w)
			assert.Equal(t, tc.msg, b.Msg)
			assert.NotContains(t, w.Body.String(), "Go struct")
			assert.NotContains(t, w.Body.String(), "strconv")
			if tc.field == "" {
				assert.Empty(t, b.Details)
				return
			}
			require.Len(t, b.Details, 1)
			assert.Equal(t, validation.FieldError{Field: tc.field, Rule: "type", Param: tc.want, Message: tc.detail}, b.Details[0])
		})
	}
}

func TestRegisterAction_EmptyBodyIsNoFields(t *testing.T) {
	type patchIn struct {
		Name *string `json:"name" binding:"omitempty,min=1"`
	}
	r, e := newEngine(t, Options{})
	RegisterAction(e, Action[patchIn, gin.H]{
		Method: http.MethodPatch,
		Path:   "/things",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *patchIn) (gin.H, error) {
			return gin.H{"changed": in.Name != nil}, nil
		},
	})

	w := do(r, http.MethodPatch, "/things", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":false}`, w.Body.String())
}

func TestRegisterAction_ProductionHidesDetails(t *testing.T) {
	r, e := newEngine(t, Options{Production: true})
	mountEcho(e)

	for _, body := range []string{`{"name":"Al"}`, `{"name":"Ada","x":1}`, `not json`} {
		w := do(r, http.MethodPost, "/echo", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		b := decode(t, w)
		assert.Equal(t, "Invalid request data", b.Msg)
		assert.Empty(t, b.Details)
	}
}

func mountPage(e EZ) {
	RegisterAction(e, Action[pageIn, pageIn]{
		Method: http.MethodGet,
		Path:   "/page",
		Binder: BindQuery,
		Handler: func(c *gin.Context, in *pageIn) (pageIn, error) {
			return *in, nil
		},
	})
}

func TestRegisterAction_Query(t *testing.T) {
	r, e := newEngine(t, Options{})
	mountPage(e)

	w := do(r, http.MethodGet, "/page", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Limit":10,"Offset":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/page?limit=5&offset=20", "")
	assert.JSONEq(t, `{"Limit":5,"Offset":20}`, w.Body.String())

	w = do(r, http.MethodGet, "/page?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/page?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/page?limit=1&sort=name", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	b := decode(t, w)
	require.Len(t, b.Details, 1)
	assert.Equal(t, "sort", b.Details[0].Field)
}

func TestRegisterAction_GuardsRunFirst(t *testing.T) {
	r, e := newEngine(t, Options{})
	called := false
	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/guarded",
		Binder: BindJSON,
		Guards: []gin.HandlerFunc{func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "msg": "Forbidden resource"})
		}},
		Handler: func(c *gin.Context, in *echoIn) (gin.H, error) {
			called = true
			return nil, nil
		},
	})

	// invalid body, but the guard answers first
	w := do(r, http.MethodPost, "/guarded", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
}

func TestRegisterAction_ErrorsAndNoContent(t *testing.T) {
	r, e := newEngine(t, Options{})
	RegisterAction(e, Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/items/:id",
		Binder: BindNone,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			id, err := ParamUUID(c, "id")
			if err != nil {
				return struct{}{}, err
			}
			switch id {
			case "00000000-0000-0000-0000-000000000001":
				return struct{}{}, apperr.NotFound("User with ID " + id + " not found")
			case "00000000-0000-0000-0000-000000000002":
				return struct{}{}, errors.New("dial tcp: connection refused")
			}
			return struct{}{}, nil
		},
	})

	w := do(r, http.MethodDelete, "/items/5b2c8f9e-7a43-4b7e-9a8e-2f1d3c4b5a69", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(r, http.MethodDelete, "/items/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed (uuid is expected)", decode(t, w).Msg)

	w = do(r, http.MethodDelete, "/items/00000000-0000-0000-0000-000000000001", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w).Msg, "not found")

	w = do(r, http.MethodDelete, "/items/00000000-0000-0000-0000-000000000002", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	b := decode(t, w)
	assert.Equal(t, "Internal server error", b.Msg)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestFormKeys(t *testing.T) {
	type embedded struct {
		Q string `form:"q"`
	}
	type in struct {
		embedded
		Limit  int `form:"limit,default=10"`
		Hidden int `form:"-"`
		Plain  string
	}
	keys := formKeys(reflect.TypeFor[*in]())
	assert.Len(t, keys, 3)
	assert.Contains(t, keys, "q")
	assert.Contains(t, keys, "limit")
	assert.Contains(t, keys, "Plain")
}
