package security_test

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"

	"github.com/goliatone/go-router"
	security "github.com/goliatone/go-security"
	"github.com/stretchr/testify/mock"
)

// MockContext is a stateful router.Context for exercising full session
// flows. Seed HeadersM and CookiesM with the inbound request; response
// cookies, status codes, and JSON bodies are recorded for assertions.
type MockContext struct {
	HeadersM    map[string]string
	CookiesM    map[string]string
	QueriesM    map[string]string
	ParamsM     map[string]string
	LocalsM     map[any]any
	SetCookies  []*router.Cookie
	JSONCode    int
	JSONBody    any
	BindPayload any
	BindErr     error
	StatusCode  int
	NextCalled  bool
	ctx         context.Context
}

func NewMockContext() *MockContext {
	return &MockContext{
		HeadersM: map[string]string{},
		CookiesM: map[string]string{},
		QueriesM: map[string]string{},
		ParamsM:  map[string]string{},
		LocalsM:  map[any]any{},
		ctx:      context.Background(),
	}
}

// LastCookie returns the most recently set response cookie with the given
// name, or nil.
func (m *MockContext) LastCookie(name string) *router.Cookie {
	for i := len(m.SetCookies) - 1; i >= 0; i-- {
		if m.SetCookies[i].Name == name {
			return m.SetCookies[i]
		}
	}
	return nil
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.ctx = ctx
}

func (m *MockContext) Path() string {
	return "/"
}

func (m *MockContext) Method() string {
	return "GET"
}

func (m *MockContext) Body() []byte {
	return nil
}

func (m *MockContext) Status(code int) router.Context {
	m.StatusCode = code
	return m
}

func (m *MockContext) SendString(s string) error {
	return nil
}

func (m *MockContext) Send(b []byte) error {
	return nil
}

func (m *MockContext) JSON(code int, val any) error {
	m.JSONCode = code
	m.JSONBody = val
	return nil
}

func (m *MockContext) NoContent(code int) error {
	m.StatusCode = code
	return nil
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	return nil
}

func (m *MockContext) Redirect(path string, status ...int) error {
	return nil
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	return nil
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	return nil
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	return m
}

func (m *MockContext) Header(key string) string {
	return m.HeadersM[key]
}

func (m *MockContext) Get(key string, defaultValue any) any {
	return defaultValue
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	return defaultValue
}

func (m *MockContext) GetInt(key string, def int) int {
	return def
}

func (m *MockContext) Set(key string, val any) {}

// Bind marshals BindPayload into the target, mimicking a JSON body.
func (m *MockContext) Bind(i any) error {
	if m.BindErr != nil {
		return m.BindErr
	}
	if m.BindPayload == nil {
		return nil
	}
	raw, err := json.Marshal(m.BindPayload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, i)
}

func (m *MockContext) BindJSON(i any) error {
	return m.Bind(i)
}

func (m *MockContext) BindXML(i any) error {
	return m.Bind(i)
}

func (m *MockContext) BindQuery(i any) error {
	return m.Bind(i)
}

func (m *MockContext) CookieParser(i any) error {
	return nil
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.SetCookies = append(m.SetCookies, cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := m.CookiesM[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if v, ok := m.ParamsM[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	return defaultValue
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if v, ok := m.QueriesM[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) QueryValues(key string) []string {
	if v, ok := m.QueriesM[key]; ok {
		return []string{v}
	}
	return nil
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	return defaultValue
}

func (m *MockContext) Queries() map[string]string {
	return m.QueriesM
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	if v, ok := m.HeadersM[key]; ok {
		return v
	}
	if v, ok := m.QueriesM[key]; ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.LocalsM[key] = value[0]
		return value[0]
	}
	return m.LocalsM[key]
}

func (m *MockContext) OriginalURL() string {
	return "/"
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	return value
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	return nil, nil
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) IP() string {
	return ""
}

func (m *MockContext) SendStatus(code int) error {
	m.StatusCode = code
	return nil
}

func (m *MockContext) SendStream(r io.Reader) error {
	return nil
}

func (m *MockContext) RouteName() string {
	return ""
}

func (m *MockContext) RouteParams() map[string]string {
	return m.ParamsM
}

func (m *MockContext) OnNext(callback func() error) {}

func (m *MockContext) Referer() string {
	return ""
}

var _ router.Context = (*MockContext)(nil)

// MockIdentityStore implements security.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) ResolveFromRequest(ctx context.Context, req security.RequestMetadata) (*security.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*security.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) Authenticate(ctx context.Context, identifier string, fields map[string]string) (*security.User, error) {
	args := m.Called(ctx, identifier, fields)
	user, _ := args.Get(0).(*security.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) Invalidate(ctx context.Context, user *security.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

var _ security.IdentityStore = (*MockIdentityStore)(nil)

// MockLoginPayload implements security.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

// testOptions returns a Config seeded with the reference admin and member
// accounts.
func testOptions() *security.Options {
	opts := &security.Options{
		SigningKey: "test-signing-secret",
		Users: []security.StoredUser{
			{
				ID:           "admin",
				Roles:        []string{"admin"},
				Salt:         "salty",
				PasswordHash: security.HashUserPassword("admin-pass", "salty"),
			},
			{
				ID:           "bob",
				Name:         "Bob",
				Roles:        []string{"member"},
				Salt:         "pepper",
				PasswordHash: security.HashUserPassword("bob-pass", "pepper"),
			},
		},
	}
	return opts.WithDefaults()
}
