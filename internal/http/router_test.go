package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/cache"
	"github.com/varela-dev/multipass/internal/config"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/rate"
	"github.com/varela-dev/multipass/internal/security/token"
	"github.com/varela-dev/multipass/internal/session"
	"github.com/varela-dev/multipass/internal/store/memory"
	"github.com/varela-dev/multipass/internal/tenant"
)

func newTestContainer(t *testing.T) *app.Container {
	t.Helper()
	cfg := config.Default()

	cc, err := cache.New(cache.Config{Driver: "memory"})
	require.NoError(t, err)

	store := memory.New()
	return &app.Container{
		Cfg:      cfg,
		Store:    store,
		Cache:    cc,
		Engine:   oauth.NewEngine(store, oauth.Config{}),
		Guard:    oauth.NewGuard(store),
		Resolver: tenant.NewResolver(store, cc),
		Sessions: session.NewManager("router-test-secret", cfg.OAuth.Issuer, time.Hour),
	}
}

type testClient struct {
	t      *testing.T
	router http.Handler
}

type reqOpts struct {
	tenantSlug string
	cookies    []*http.Cookie
	basicUser  string
	basicPass  string
	bearer     string
}

func (tc *testClient) doJSON(method, path, body string, o reqOpts) *httptest.ResponseRecorder {
	tc.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req, o)
}

func (tc *testClient) doForm(method, path string, form url.Values, o reqOpts) *httptest.ResponseRecorder {
	tc.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return tc.do(req, o)
}

func (tc *testClient) doGet(path string, o reqOpts) *httptest.ResponseRecorder {
	tc.t.Helper()
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil), o)
}

func (tc *testClient) do(req *http.Request, o reqOpts) *httptest.ResponseRecorder {
	tc.t.Helper()
	if o.tenantSlug != "" {
		req.Header.Set(tenant.HeaderSlug, o.tenantSlug)
	}
	for _, c := range o.cookies {
		req.AddCookie(c)
	}
	if o.basicUser != "" {
		req.SetBasicAuth(o.basicUser, o.basicPass)
	}
	if o.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+o.bearer)
	}
	rr := httptest.NewRecorder()
	tc.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), "body: %s", rr.Body.String())
	return m
}

// registerTenant da de alta acme con su owner y devuelve el cliente de test.
func registerTenant(t *testing.T, tc *testClient) {
	t.Helper()
	rr := tc.doJSON(http.MethodPost, "/tenants/register", `{
		"name": "Acme Corp", "slug": "acme", "plan": "standard",
		"owner": {"username": "admin", "email": "admin@acme.test", "password": "super-secreta-1"}
	}`, reqOpts{})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

// login devuelve las cookies de sesión del user.
func login(t *testing.T, tc *testClient, slug, username, pass string) []*http.Cookie {
	t.Helper()
	rr := tc.doJSON(http.MethodPost, "/oauth/login",
		`{"username": "`+username+`", "password": "`+pass+`"}`,
		reqOpts{tenantSlug: slug})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func registerClient(t *testing.T, tc *testClient, cookies []*http.Cookie, body string) map[string]any {
	t.Helper()
	rr := tc.doJSON(http.MethodPost, "/oauth/client/register", body,
		reqOpts{tenantSlug: "acme", cookies: cookies})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode(t, rr)
}

func TestHealthEndpoints(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}

	rr := tc.doGet("/healthz", reqOpts{})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = tc.doGet("/readyz", reqOpts{})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["checks"].(map[string]any)["store"])
}

// Ciclo completo: alta de tenant, login del owner, registro de un client
// confidencial, emisión machine-to-machine, introspección y revocación.
func TestMachineToMachineLifecycle(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	cookies := login(t, tc, "acme", "admin", "super-secreta-1")

	cl := registerClient(t, tc, cookies, `{
		"name": "Backend Job",
		"grant_types": ["client_credentials"],
		"scope": "read write"
	}`)
	clientID := cl["client_id"].(string)
	clientSecret := cl["client_secret"].(string)
	require.NotEmpty(t, clientID)
	require.NotEmpty(t, clientSecret)

	// client_credentials con Basic auth
	rr := tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	}, reqOpts{tenantSlug: "acme", basicUser: clientID, basicPass: clientSecret})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	tok := decode(t, rr)
	access := tok["access_token"].(string)
	assert.Equal(t, "Bearer", tok["token_type"])
	assert.Equal(t, "read", tok["scope"])
	assert.NotContains(t, tok, "refresh_token")

	// introspección: activo
	rr = tc.doForm(http.MethodPost, "/oauth/introspect", url.Values{
		"token": {access},
	}, reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusOK, rr.Code)
	in := decode(t, rr)
	assert.Equal(t, true, in["active"])
	assert.Equal(t, clientID, in["client_id"])
	assert.Contains(t, in, "username")
	assert.Nil(t, in["username"])

	// revocación por el dueño
	rr = tc.doForm(http.MethodPost, "/oauth/revoke", url.Values{
		"token": {access},
	}, reqOpts{tenantSlug: "acme", basicUser: clientID, basicPass: clientSecret})
	require.Equal(t, http.StatusOK, rr.Code)

	// ahora inactivo
	rr = tc.doForm(http.MethodPost, "/oauth/introspect", url.Values{
		"token": {access},
	}, reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["active"])
}

func TestAuthorizationCodeFlowWithPKCE(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	cookies := login(t, tc, "acme", "admin", "super-secreta-1")

	cl := registerClient(t, tc, cookies, `{
		"name": "SPA",
		"redirect_uris": ["https://app.acme.test/cb"],
		"scope": "read profile email",
		"token_endpoint_auth_method": "none"
	}`)
	clientID := cl["client_id"].(string)
	assert.Equal(t, true, cl["public"])
	assert.NotContains(t, cl, "client_secret")

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	authParams := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {"https://app.acme.test/cb"},
		"scope":                 {"read profile"},
		"state":                 {"estado-xyz"},
		"code_challenge":        {token.SHA256Base64URL(verifier)},
		"code_challenge_method": {"S256"},
	}

	// GET muestra el consent
	rr := tc.doGet("/oauth/authorize?"+authParams.Encode(), reqOpts{tenantSlug: "acme", cookies: cookies})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	consent := decode(t, rr)
	assert.Equal(t, clientID, consent["client"].(map[string]any)["client_id"])

	// POST con confirm=true emite el code por redirect
	form := url.Values{}
	for k, v := range authParams {
		form[k] = v
	}
	form.Set("confirm", "true")
	rr = tc.doForm(http.MethodPost, "/oauth/authorize", form, reqOpts{tenantSlug: "acme", cookies: cookies})
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "estado-xyz", loc.Query().Get("state"))

	// canje del code con el verifier
	rr = tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {"https://app.acme.test/cb"},
		"code_verifier": {verifier},
	}, reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tok := decode(t, rr)
	access := tok["access_token"].(string)
	refresh := tok["refresh_token"].(string)
	assert.Equal(t, "read profile", tok["scope"])

	// el code es de un solo uso
	rr = tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {"https://app.acme.test/cb"},
		"code_verifier": {verifier},
	}, reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_grant", decode(t, rr)["error"])

	// userinfo con scope profile pero sin email
	rr = tc.doGet("/oauth/userinfo", reqOpts{tenantSlug: "acme", bearer: access})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	claims := decode(t, rr)
	assert.Equal(t, "admin", claims["username"])
	assert.NotContains(t, claims, "email")

	// rotación de refresh
	rr = tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refresh},
	}, reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rotated := decode(t, rr)
	assert.NotEqual(t, refresh, rotated["refresh_token"])

	// reutilizar el refresh viejo falla (detección de replay)
	rr = tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refresh},
	}, reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_grant", decode(t, rr)["error"])
}

func TestOAuthEndpointsRequireTenant(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}

	rr := tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
	}, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decode(t, rr)["error"])
}

func TestUserRegistrationAndLogin(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)

	rr := tc.doJSON(http.MethodPost, "/oauth/register",
		`{"username": "bob", "email": "bob@acme.test", "password": "otra-secreta-2"}`,
		reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "user", decode(t, rr)["role"])

	// duplicado en el mismo tenant
	rr = tc.doJSON(http.MethodPost, "/oauth/register",
		`{"username": "bob", "email": "bob2@acme.test", "password": "otra-secreta-2"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "user_exists", decode(t, rr)["error"])

	// email inválido
	rr = tc.doJSON(http.MethodPost, "/oauth/register",
		`{"username": "eve", "email": "no-es-email", "password": "otra-secreta-2"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// password incorrecta: misma respuesta que user inexistente
	rr = tc.doJSON(http.MethodPost, "/oauth/login",
		`{"username": "bob", "password": "incorrecta-99"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr2 := tc.doJSON(http.MethodPost, "/oauth/login",
		`{"username": "nadie", "password": "incorrecta-99"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, rr.Code, rr2.Code)
	assert.Equal(t, decode(t, rr)["error"], decode(t, rr2)["error"])

	// login por email también funciona
	cookies := login(t, tc, "acme", "bob@acme.test", "otra-secreta-2")
	assert.NotEmpty(t, cookies)
}

func TestClientEndpointsRequireSession(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)

	rr := tc.doJSON(http.MethodPost, "/oauth/client/register",
		`{"name": "X"}`, reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "login_required", decode(t, rr)["error"])
}

func TestClientRegisterDefaults(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	cookies := login(t, tc, "acme", "admin", "super-secreta-1")

	// sin scope ni redirect_uris: ambos toman defaults utilizables
	cl := registerClient(t, tc, cookies, `{"name": "Minimal", "grant_types": ["client_credentials"]}`)
	assert.Equal(t, "read write", cl["scope"])
	uris := cl["redirect_uris"].([]any)
	require.Len(t, uris, 1)
	assert.Equal(t, "http://localhost:8080/callback", uris[0])

	// y un token scoped sale andando
	rr := tc.doForm(http.MethodPost, "/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	}, reqOpts{tenantSlug: "acme",
		basicUser: cl["client_id"].(string), basicPass: cl["client_secret"].(string)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "read", decode(t, rr)["scope"])
}

func TestTenantAdminEndpoints(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	ownerCookies := login(t, tc, "acme", "admin", "super-secreta-1")

	// stats con el owner por la ruta de path (sin header)
	rr := tc.doGet("/tenants/acme/stats", reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stats := decode(t, rr)
	assert.Equal(t, float64(1), stats["total_users"])
	assert.Equal(t, "standard", stats["plan"])

	// info es pública dentro del tenant
	rr = tc.doGet("/tenants/acme/info", reqOpts{})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "acme", decode(t, rr)["slug"])

	// un user común no ve stats
	rr = tc.doJSON(http.MethodPost, "/oauth/register",
		`{"username": "carol", "email": "carol@acme.test", "password": "clave-de-carol"}`,
		reqOpts{tenantSlug: "acme"})
	require.Equal(t, http.StatusCreated, rr.Code)
	carolID := decode(t, rr)["id"].(string)
	carolCookies := login(t, tc, "acme", "carol", "clave-de-carol")

	rr = tc.doGet("/tenants/acme/stats", reqOpts{cookies: carolCookies})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// el owner promueve a carol y entonces sí
	rr = tc.doJSON(http.MethodPut, "/tenants/acme/users/"+carolID+"/role",
		`{"role": "admin"}`, reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	carolCookies = login(t, tc, "acme", "carol", "clave-de-carol")
	rr = tc.doGet("/tenants/acme/stats", reqOpts{cookies: carolCookies})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionDoesNotCrossTenants(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)

	rr := tc.doJSON(http.MethodPost, "/tenants/register", `{
		"name": "Globex", "slug": "globex",
		"owner": {"username": "hank", "email": "hank@globex.test", "password": "clave-de-hank1"}
	}`, reqOpts{})
	require.Equal(t, http.StatusCreated, rr.Code)

	acmeCookies := login(t, tc, "acme", "admin", "super-secreta-1")

	// la sesión de acme no sirve en globex
	rr = tc.doJSON(http.MethodPost, "/oauth/client/register",
		`{"name": "X"}`, reqOpts{tenantSlug: "globex", cookies: acmeCookies})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimitOnTokenEndpoint(t *testing.T) {
	c := newTestContainer(t)
	c.Limiter = rate.NewMemoryLimiter(2, time.Minute)
	tc := &testClient{t: t, router: NewRouter(c)}
	registerTenant(t, tc)

	form := url.Values{"grant_type": {"client_credentials"}, "client_id": {"nope"}}
	for i := 0; i < 2; i++ {
		rr := tc.doForm(http.MethodPost, "/oauth/token", form, reqOpts{tenantSlug: "acme"})
		assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)
	}
	rr := tc.doForm(http.MethodPost, "/oauth/token", form, reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestTenantListOnlyActive(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)

	rr := tc.doGet("/tenants/list", reqOpts{})
	require.Equal(t, http.StatusOK, rr.Code)
	tenants := decode(t, rr)["tenants"].([]any)
	require.Len(t, tenants, 1)
	assert.Equal(t, "acme", tenants[0].(map[string]any)["slug"])
}

func TestTenantUserAdministration(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	ownerCookies := login(t, tc, "acme", "admin", "super-secreta-1")

	// alta directa con rol admin
	rr := tc.doJSON(http.MethodPost, "/tenants/acme/users",
		`{"username": "dana", "email": "dana@acme.test", "password": "clave-de-dana1", "role": "admin"}`,
		reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	dana := decode(t, rr)
	assert.Equal(t, "admin", dana["role"])
	danaID := dana["id"].(string)

	// el rol owner no se asigna por la API
	rr = tc.doJSON(http.MethodPost, "/tenants/acme/users",
		`{"username": "eve", "email": "eve@acme.test", "password": "clave-de-eve12", "role": "owner"}`,
		reqOpts{cookies: ownerCookies})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// desactivar corta el login
	rr = tc.doJSON(http.MethodPut, "/tenants/acme/users/"+danaID+"/active",
		`{"active": false}`, reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = tc.doJSON(http.MethodPost, "/oauth/login",
		`{"username": "dana", "password": "clave-de-dana1"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// reactivar lo restaura
	rr = tc.doJSON(http.MethodPut, "/tenants/acme/users/"+danaID+"/active",
		`{"active": true}`, reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusNoContent, rr.Code)
	login(t, tc, "acme", "dana", "clave-de-dana1")
}

func TestTenantSettingsRoundTrip(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	ownerCookies := login(t, tc, "acme", "admin", "super-secreta-1")

	rr := tc.doJSON(http.MethodPut, "/tenants/acme/settings",
		`{"theme": "dark", "mfa_required": true}`, reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = tc.doGet("/tenants/acme/settings", reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusOK, rr.Code)
	settings := decode(t, rr)["settings"].(map[string]any)
	assert.Equal(t, "dark", settings["theme"])
	assert.Equal(t, true, settings["mfa_required"])
}

func TestTenantDeactivation(t *testing.T) {
	tc := &testClient{t: t, router: NewRouter(newTestContainer(t))}
	registerTenant(t, tc)
	ownerCookies := login(t, tc, "acme", "admin", "super-secreta-1")

	// un admin no alcanza, se exige owner
	rr := tc.doJSON(http.MethodPost, "/tenants/acme/users",
		`{"username": "ada", "email": "ada@acme.test", "password": "clave-de-ada12", "role": "admin"}`,
		reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusCreated, rr.Code)
	adminCookies := login(t, tc, "acme", "ada", "clave-de-ada12")

	rr = tc.do(httptest.NewRequest(http.MethodDelete, "/tenants/acme/", nil), reqOpts{cookies: adminCookies})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = tc.do(httptest.NewRequest(http.MethodDelete, "/tenants/acme/", nil), reqOpts{cookies: ownerCookies})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	// el resolver ya no lo encuentra: requireTenant corta
	rr = tc.doJSON(http.MethodPost, "/oauth/login",
		`{"username": "admin", "password": "super-secreta-1"}`,
		reqOpts{tenantSlug: "acme"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
