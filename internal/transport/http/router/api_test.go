package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"user-api/internal/core/auth"
	"user-api/internal/core/config"
	"user-api/internal/proverb"
	"user-api/internal/repo"
	"user-api/internal/service"
	"user-api/internal/testutil"
	"user-api/internal/transport/http/router"
	"user-api/internal/transport/http/validation"
)

type fakeQuoter struct {
	quote proverb.Quote
	err   error
}

func (f *fakeQuoter) Random(context.Context) (proverb.Quote, error) { return f.quote, f.err }

func testConfig() *config.Config {
	return &config.Config{
		App: config.App{Name: "", Env: "development"},
		JWT: config.JWT{Secret: "test-secret", Issuer: "user-api", AccessTokenTTLMin: 60},
		Security: config.Security{
			RateLimitRPS:      1000,
			RateLimitBurst:    1000,
			AuthRateLimit:     1000,
			AuthRateWindowSec: 60,
			MaxInFlight:       50,
			MaxBodyBytes:      1 << 20,
			RequestTimeoutSec: 5,
		},
	}
}

type APISuite struct {
	suite.Suite
	cfg    *config.Config
	engine *gin.Engine
	users  *service.UserService
	quoter *fakeQuoter
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(validation.Setup())
	if s.cfg == nil {
		s.cfg = testConfig()
	}
	s.build()
}

func (s *APISuite) TearDownTest() { s.cfg = nil }

func (s *APISuite) build() {
	hasher := testutil.FastHasher()
	jwter := &auth.JWTer{Secret: []byte(s.cfg.JWT.Secret), Issuer: s.cfg.JWT.Issuer, TTL: time.Hour}
	s.users = service.NewUserService(repo.NewUserRepo(testutil.OpenTestDB(s.T())), hasher, nil)
	s.quoter = &fakeQuoter{quote: proverb.Quote{Content: "Still waters run deep."}}
	s.engine = router.NewAPIEngine(router.Deps{
		Log:      zap.NewNop(),
		Cfg:      s.cfg,
		JWT:      jwter,
		Users:    s.users,
		Auth:     service.NewAuthService(s.users, hasher, jwter, nil),
		Proverbs: s.quoter,
	})
}

func (s *APISuite) call(method, path, token, body string) (int, map[string]any) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *APISuite) signup(name, email string) string {
	code, body := s.call(http.MethodPost, "/auth/signup", "", `{"name":"`+name+`","email":"`+email+`","password":"secret1"}`)
	s.Require().Equal(http.StatusCreated, code, body)
	return body["userId"].(string)
}

func (s *APISuite) login(email, password string) string {
	code, body := s.call(http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	s.Require().Equal(http.StatusOK, code, body)
	return body["token"].(string)
}

func (s *APISuite) adminToken() string {
	_, _, err := s.users.EnsureAdmin(context.Background(), "admin@example.com", "Admin", "admin-pass")
	s.Require().NoError(err)
	return s.login("admin@example.com", "admin-pass")
}

func (s *APISuite) TestHealthAndMetrics() {
	g := NewWithT(s.T())
	code, body := s.call(http.MethodGet, "/health", "", "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(HaveKeyWithValue("ok", BeNumerically("==", 1)))

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(w.Body.String()).To(ContainSubstring("http_requests_total"))
}

func (s *APISuite) TestSignupAndLogin() {
	g := NewWithT(s.T())

	code, body := s.call(http.MethodPost, "/auth/signup", "", `{"name":"Grace","email":"grace@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusCreated))
	g.Expect(body).To(HaveKeyWithValue("message", "User signed up successfully"))
	g.Expect(uuid.Validate(body["userId"].(string))).To(Succeed())

	code, body = s.call(http.MethodPost, "/auth/signup", "", `{"name":"Grace","email":"grace@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusConflict))
	g.Expect(body).To(HaveKeyWithValue("code", BeNumerically("==", 409)))

	code, body = s.call(http.MethodPost, "/auth/login", "", `{"email":"grace@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(HaveKeyWithValue("message", "User logged in successfully"))
	g.Expect(body["token"]).NotTo(BeEmpty())
	user := body["user"].(map[string]any)
	g.Expect(user).To(HaveKeyWithValue("email", "grace@example.com"))
	g.Expect(user).NotTo(HaveKey("password"))

	code, wrong := s.call(http.MethodPost, "/auth/login", "", `{"email":"grace@example.com","password":"nope-nope"}`)
	g.Expect(code).To(Equal(http.StatusUnauthorized))
	code, unknown := s.call(http.MethodPost, "/auth/login", "", `{"email":"who@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusUnauthorized))
	g.Expect(wrong["msg"]).To(Equal(unknown["msg"]))
}

func (s *APISuite) TestSignupValidation() {
	g := NewWithT(s.T())

	code, body := s.call(http.MethodPost, "/auth/signup", "", `{"name":"Al","email":"not-an-email","password":"123"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body["details"]).To(HaveLen(3))

	code, body = s.call(http.MethodPost, "/auth/signup", "", `{"name":"Alan","email":"alan@example.com","password":"secret1","role":"admin"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body["details"]).To(ContainElement(HaveKeyWithValue("field", "role")))

	// length rules apply to the trimmed name
	code, body = s.call(http.MethodPost, "/auth/signup", "", `{"name":"   ab   ","email":"ab@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body["details"]).To(ConsistOf(And(HaveKeyWithValue("field", "name"), HaveKeyWithValue("rule", "min"))))
}

func (s *APISuite) TestDecodeErrorsReportFields() {
	g := NewWithT(s.T())

	code, body := s.call(http.MethodPost, "/auth/signup", "", `{"name":123,"email":"n@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body).To(HaveKeyWithValue("msg", "Validation failed"))
	g.Expect(body["details"]).To(ConsistOf(And(
		HaveKeyWithValue("field", "name"),
		HaveKeyWithValue("rule", "type"),
		HaveKeyWithValue("message", "name must be a string"),
	)))

	code, body = s.call(http.MethodPost, "/auth/signup", "", `{"name":"Ada","email":`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body).To(HaveKeyWithValue("msg", "Malformed JSON"))
	g.Expect(body).NotTo(HaveKey("details"))

	admin := s.adminToken()
	code, body = s.call(http.MethodGet, "/users?limit=abc", admin, "")
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body["details"]).To(ConsistOf(And(
		HaveKeyWithValue("field", "limit"),
		HaveKeyWithValue("rule", "type"),
		HaveKeyWithValue("message", "limit must be an integer number"),
	)))
}

func (s *APISuite) TestUsersRequireAuthAndAdmin() {
	g := NewWithT(s.T())
	s.signup("Plain User", "plain@example.com")
	userTok := s.login("plain@example.com", "secret1")

	code, _ := s.call(http.MethodGet, "/users", "", "")
	g.Expect(code).To(Equal(http.StatusUnauthorized))

	for _, r := range []struct{ method, path, body string }{
		{http.MethodGet, "/users", ""},
		{http.MethodPost, "/users", `{"name":"New One","email":"n@example.com","password":"secret1"}`},
		{http.MethodGet, "/users/" + uuid.NewString(), ""},
		{http.MethodDelete, "/users/" + uuid.NewString(), ""},
	} {
		code, body := s.call(r.method, r.path, userTok, r.body)
		g.Expect(code).To(Equal(http.StatusForbidden), r.method+" "+r.path)
		g.Expect(body).To(HaveKeyWithValue("msg", "Forbidden resource"))
	}
}

func (s *APISuite) TestAdminCRUD() {
	g := NewWithT(s.T())
	admin := s.adminToken()

	code, created := s.call(http.MethodPost, "/users", admin, `{"name":"Ops Person","email":"ops@example.com","password":"secret1","role":"admin","isActive":false}`)
	g.Expect(code).To(Equal(http.StatusCreated))
	g.Expect(created).To(HaveKeyWithValue("role", "admin"))
	g.Expect(created).To(HaveKeyWithValue("isActive", false))
	g.Expect(created).NotTo(HaveKey("password"))
	g.Expect(created).NotTo(HaveKey("passwordHash"))
	id := created["id"].(string)

	code, _ = s.call(http.MethodPost, "/users", admin, `{"name":"Ops Person","email":"ops@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusConflict))

	code, short := s.call(http.MethodPost, "/users", admin, `{"name":"Al","email":"al@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusCreated))
	g.Expect(short).To(HaveKeyWithValue("name", "Al"))
	code, _ = s.call(http.MethodDelete, "/users/"+short["id"].(string), admin, "")
	g.Expect(code).To(Equal(http.StatusNoContent))

	code, page := s.call(http.MethodGet, "/users?limit=10&offset=0", admin, "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(page["total"]).To(BeNumerically("==", 2))
	g.Expect(page["data"]).To(HaveLen(2))

	code, page = s.call(http.MethodGet, "/users?limit=1", admin, "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(page["data"]).To(HaveLen(1))

	code, _ = s.call(http.MethodGet, "/users?limit=-1", admin, "")
	g.Expect(code).To(Equal(http.StatusBadRequest))
	code, _ = s.call(http.MethodGet, "/users?page=2", admin, "")
	g.Expect(code).To(Equal(http.StatusBadRequest))

	code, got := s.call(http.MethodGet, "/users/"+id, admin, "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(got).To(HaveKeyWithValue("email", "ops@example.com"))

	code, body := s.call(http.MethodGet, "/users/not-a-uuid", admin, "")
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body).To(HaveKeyWithValue("msg", "Validation failed (uuid is expected)"))

	code, _ = s.call(http.MethodGet, "/users/"+uuid.NewString(), admin, "")
	g.Expect(code).To(Equal(http.StatusNotFound))

	code, _ = s.call(http.MethodDelete, "/users/"+id, admin, "")
	g.Expect(code).To(Equal(http.StatusNoContent))
	code, _ = s.call(http.MethodDelete, "/users/"+id, admin, "")
	g.Expect(code).To(Equal(http.StatusNotFound))
	code, _ = s.call(http.MethodGet, "/users/"+id, admin, "")
	g.Expect(code).To(Equal(http.StatusNotFound))
}

func (s *APISuite) TestUpdateRules() {
	g := NewWithT(s.T())
	admin := s.adminToken()
	meID := s.signup("Self Person", "self@example.com")
	otherID := s.signup("Other Person", "other@example.com")
	me := s.login("self@example.com", "secret1")

	code, body := s.call(http.MethodPatch, "/users/"+meID, me, `{"name":"Renamed Self"}`)
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(HaveKeyWithValue("name", "Renamed Self"))

	code, body = s.call(http.MethodPatch, "/users/"+meID, me, "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(HaveKeyWithValue("name", "Renamed Self"))

	code, _ = s.call(http.MethodPatch, "/users/"+meID, me, `{"password":"changed1"}`)
	g.Expect(code).To(Equal(http.StatusOK))
	s.login("self@example.com", "changed1")

	code, _ = s.call(http.MethodPatch, "/users/"+otherID, me, `{"name":"Hijacked"}`)
	g.Expect(code).To(Equal(http.StatusForbidden))

	code, _ = s.call(http.MethodPatch, "/users/"+meID, me, `{"role":"admin"}`)
	g.Expect(code).To(Equal(http.StatusForbidden))
	code, _ = s.call(http.MethodPatch, "/users/"+meID, me, `{"isActive":false}`)
	g.Expect(code).To(Equal(http.StatusForbidden))

	code, body = s.call(http.MethodPatch, "/users/"+meID, me, `{"email":"new@example.com"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body).To(HaveKeyWithValue("msg", "Email cannot be modified"))
	code, _ = s.call(http.MethodPatch, "/users/"+meID, admin, `{"email":"new@example.com"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))

	code, body = s.call(http.MethodPatch, "/users/"+otherID, admin, `{"role":"admin","isActive":false}`)
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(HaveKeyWithValue("role", "admin"))
	g.Expect(body).To(HaveKeyWithValue("isActive", false))
	g.Expect(body).To(HaveKeyWithValue("email", "other@example.com"))

	code, _ = s.call(http.MethodPatch, "/users/"+uuid.NewString(), admin, `{"name":"Nobody Here"}`)
	g.Expect(code).To(Equal(http.StatusNotFound))
}

func (s *APISuite) TestProverb() {
	g := NewWithT(s.T())
	code, body := s.call(http.MethodGet, "/", "", "")
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(body).To(Equal(map[string]any{"content": "Still waters run deep."}))

	s.quoter.err = errors.New("upstream down")
	code, body = s.call(http.MethodGet, "/", "", "")
	g.Expect(code).To(Equal(http.StatusInternalServerError))
	g.Expect(body).To(HaveKeyWithValue("msg", "Failed to fetch a proverb."))
}

func (s *APISuite) TestProductionHidesValidationDetails() {
	s.cfg = testConfig()
	s.cfg.App.Env = "production"
	s.build()
	defer gin.SetMode(gin.TestMode)

	g := NewWithT(s.T())
	code, body := s.call(http.MethodPost, "/auth/signup", "", `{"name":"Al","email":"x","password":"1"}`)
	g.Expect(code).To(Equal(http.StatusBadRequest))
	g.Expect(body).To(HaveKeyWithValue("msg", "Invalid request data"))
	g.Expect(body).NotTo(HaveKey("details"))
}

func (s *APISuite) TestAuthRateLimit() {
	s.cfg = testConfig()
	s.cfg.Security.AuthRateLimit = 2
	s.build()

	g := NewWithT(s.T())
	for i := 0; i < 2; i++ {
		code, _ := s.call(http.MethodPost, "/auth/login", "", `{"email":"x@example.com","password":"secret1"}`)
		g.Expect(code).To(Equal(http.StatusUnauthorized))
	}
	code, _ := s.call(http.MethodPost, "/auth/login", "", `{"email":"x@example.com","password":"secret1"}`)
	g.Expect(code).To(Equal(http.StatusTooManyRequests))

	// other routes are unaffected
	code, _ = s.call(http.MethodGet, "/health", "", "")
	g.Expect(code).To(Equal(http.StatusOK))
}
