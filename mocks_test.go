package identity_test

import (
	"context"
	"database/sql"
	"time"

	identity "github.com/campuskit/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAuthenticator implements identity.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (*identity.TokenPair, identity.Identity, error) {
	args := m.Called(ctx, identifier, password)

	var pair *identity.TokenPair
	if v := args.Get(0); v != nil {
		pair = v.(*identity.TokenPair)
	}

	var ident identity.Identity
	if v := args.Get(1); v != nil {
		ident = v.(identity.Identity)
	}

	return pair, ident, args.Error(2)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) SessionFromToken(token string) (identity.Session, error) {
	args := m.Called(token)
	if v := args.Get(0); v != nil {
		return v.(identity.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthenticator) IdentityFromSession(ctx context.Context, session identity.Session) (identity.Identity, error) {
	args := m.Called(ctx, session)
	if v := args.Get(0); v != nil {
		return v.(identity.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if v := args.Get(0); v != nil {
		return v.(identity.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if v := args.Get(0); v != nil {
		return v.(identity.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockConfig implements identity.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetAccessSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetRefreshSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAccessTokenTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetRefreshTokenTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetTokenLookup() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConfig) GetMaxFailedAttempts() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetLockDuration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetResetSecretTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

// MockAccountTracker implements identity.AccountTracker
type MockAccountTracker struct {
	mock.Mock
}

func (m *MockAccountTracker) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountTracker) TrackFailedLogin(ctx context.Context, account *identity.Account, threshold int, lockUntil time.Time) (*identity.Account, error) {
	args := m.Called(ctx, account, threshold, lockUntil)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountTracker) TrackSuccessfulLogin(ctx context.Context, account *identity.Account, at time.Time) error {
	args := m.Called(ctx, account, at)
	return args.Error(0)
}

func (m *MockAccountTracker) ClearExpiredLock(ctx context.Context, account *identity.Account, now time.Time) (*identity.Account, error) {
	args := m.Called(ctx, account, now)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockStatusStore implements identity.AccountStatusStore
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStatusStore) ChangeStatus(ctx context.Context, id uuid.UUID, from, to identity.AccountStatus, opts ...identity.StatusUpdateOption) (*identity.Account, error) {
	args := m.Called(ctx, id, from, to, opts)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAccounts stubs the slice of the accounts repository the command
// handlers touch. Unstubbed repository methods panic via the embedded nil
// interface, which is the failure we want in a test.
type MockAccounts struct {
	identity.Accounts
	mock.Mock
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.Account, error) {
	args := m.Called(ctx, tx, email)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) GetByResetSecret(ctx context.Context, secretHash string) (*identity.Account, error) {
	args := m.Called(ctx, secretHash)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, tx, account)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string, expiry time.Time) error {
	args := m.Called(ctx, tx, id, secretHash, expiry)
	return args.Error(0)
}

func (m *MockAccounts) ResetCredentialTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ChangeStatus(ctx context.Context, id uuid.UUID, from, to identity.AccountStatus, opts ...identity.StatusUpdateOption) (*identity.Account, error) {
	args := m.Called(ctx, id, from, to, opts)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRepositoryManager implements identity.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Accounts() identity.Accounts {
	args := m.Called()
	return args.Get(0).(identity.Accounts)
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockNotifier implements identity.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n identity.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockWorkflow implements identity.RegistrationWorkflow
type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) Approve(ctx context.Context, actor identity.ActorRef, account *identity.Account, opts ...identity.TransitionOption) (*identity.Account, error) {
	args := m.Called(ctx, actor, account)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkflow) Reject(ctx context.Context, actor identity.ActorRef, account *identity.Account, reason string, opts ...identity.TransitionOption) (*identity.Account, error) {
	args := m.Called(ctx, actor, account, reason)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkflow) Reactivate(ctx context.Context, actor identity.ActorRef, account *identity.Account, opts ...identity.TransitionOption) (*identity.Account, error) {
	args := m.Called(ctx, actor, account)
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkflow) BulkApprove(ctx context.Context, actor identity.ActorRef, ids []uuid.UUID, opts ...identity.TransitionOption) (*identity.BulkApprovalResult, error) {
	args := m.Called(ctx, actor, ids)
	if v := args.Get(0); v != nil {
		return v.(*identity.BulkApprovalResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkflow) CurrentStatus(account *identity.Account) identity.AccountStatus {
	args := m.Called(account)
	return args.Get(0).(identity.AccountStatus)
}

// MockLoginPayload implements identity.LoginPayload
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

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
