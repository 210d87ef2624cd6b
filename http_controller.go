package identity

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	token, ok := cookie.(*jwt.Token)
	if token == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromClaims(claims)
}

// RegisterAuthRoutes mounts the account lifecycle and auth endpoints. Admin
// decision routes sit behind the admin gate; everything else is public.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	guard := controller.Auther.AdminRoute(controller.Config, controller.authErrorHandler())
	protected := controller.Auther.ProtectedRoute(controller.Config, controller.authErrorHandler())

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("auth.pwd-forgot")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.pwd-reset")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.VerifyResetToken), controller.VerifyResetTokenGet).
		SetName("auth.pwd-verify")

	app.Post(
		fmt.Sprintf("%s/:id/reactivate", controller.Routes.Registrations),
		protected(controller.ReactivatePost),
	).SetName("auth.registration.reactivate")

	app.Post(
		fmt.Sprintf("%s/:id/approve", controller.Routes.AdminRegistrations),
		guard(controller.ApprovePost),
	).SetName("auth.admin.approve")

	app.Post(
		fmt.Sprintf("%s/:id/reject", controller.Routes.AdminRegistrations),
		guard(controller.RejectPost),
	).SetName("auth.admin.reject")

	app.Post(
		fmt.Sprintf("%s/bulk-approve", controller.Routes.AdminRegistrations),
		guard(controller.BulkApprovePost),
	).SetName("auth.admin.bulk-approve")
}

type AuthControllerRoutes struct {
	Register           string
	Login              string
	Refresh            string
	Logout             string
	ForgotPassword     string
	ResetPassword      string
	VerifyResetToken   string
	Registrations      string
	AdminRegistrations string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Config   Config
	Routes   *AuthControllerRoutes
	Auther   HTTPAuthenticator
	Workflow RegistrationWorkflow
	Notifier Notifier
	Activity ActivitySink
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:           "/auth/register",
			Login:              "/auth/login",
			Refresh:            "/auth/refresh",
			Logout:             "/auth/logout",
			ForgotPassword:     "/auth/forgot-password",
			ResetPassword:      "/auth/reset-password",
			VerifyResetToken:   "/auth/verify-reset-token",
			Registrations:      "/auth/registrations",
			AdminRegistrations: "/auth/admin/registrations",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Workflow == nil {
		c.Workflow = NewRegistrationWorkflow(
			c.Repo.Accounts(),
			WithWorkflowNotifier(c.Notifier),
			WithWorkflowActivitySink(c.Activity),
			WithWorkflowLogger(c.Logger),
		)
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerWorkflow(wf RegistrationWorkflow) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Workflow = wf
		return c
	}
}

func WithControllerNotifier(n Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = n
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = sink
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(payload))
	}

	pair, identity, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
		"token_type":    "bearer",
		"account": map[string]any{
			"id":    identity.ID(),
			"email": identity.Email(),
			"role":  identity.Role(),
		},
	})
}

// RefreshRequest carries the refresh token when it is not in the cookie.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)
	// Body is optional; the cookie is the primary transport.
	_ = ctx.Bind(payload)

	access, err := a.Auther.Refresh(ctx, payload.RefreshToken)
	if err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"access_token": access,
		"token_type":   "bearer",
	})
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.NoContent(fiber.StatusNoContent)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName  string         `form:"first_name" json:"first_name"`
	LastName   string         `form:"last_name" json:"last_name"`
	Email      string         `form:"email" json:"email"`
	Phone      string         `form:"phone_number" json:"phone_number"`
	Role       string         `form:"role" json:"role"`
	Password   string         `form:"password" json:"password"`
	Attributes map[string]any `form:"attributes" json:"attributes"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Role, validation.Required, validation.In(rolesAsAny()...)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func rolesAsAny() []any {
	roles := GetAllRoles()
	out := make([]any, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: %v", err)
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	var account *Account

	req := RegisterAccountMessage{
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Email:      payload.Email,
		Phone:      payload.Phone,
		Role:       payload.Role,
		Password:   payload.Password,
		Attributes: payload.Attributes,
		OnResponse: func(a *Account) {
			account = a
		},
	}

	registerAccount := NewRegisterAccountHandler(a.Repo)
	if err := registerAccount.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register account error: %v", err)
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, account)
}

// ForgotPasswordPayload holds values for a password reset request
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("forgot password parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Config).
		WithNotifier(a.Notifier).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("forgot password error: %v", err)
		return respondWithError(ctx, err)
	}

	// Same body for known and unknown emails.
	return ctx.JSON(fiber.StatusAccepted, map[string]any{
		"success": true,
	})
}

func (a *AuthController) VerifyResetTokenGet(ctx router.Context) error {
	secret := ctx.Param("token", "")

	var account *Account
	req := VerifyPasswordResetMessage{
		Secret: secret,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	verify := NewVerifyPasswordResetHandler(a.Repo)
	if err := verify.Execute(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"valid": true,
		"email": account.Email,
	})
}

// ResetPasswordPayload holds values to finalize a password reset
type ResetPasswordPayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset password parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	req := FinalizePasswordResetMessage{
		Secret:   payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.NoContent(fiber.StatusNoContent)
}

func (a *AuthController) ApprovePost(ctx router.Context) error {
	id, err := a.paramID(ctx)
	if err != nil {
		return a.badRequest(ctx, "Invalid registration id", nil)
	}

	actor, _ := ActorFromRouterClaims(ctx, a.Config.GetContextKey())

	var account *Account
	req := ApproveRegistrationMessage{
		AccountID: id,
		Actor:     actor,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	handler := NewRegistrationDecisionHandler(a.Repo, a.Workflow)
	if err := handler.Approve(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, account)
}

// RejectRegistrationPayload carries the rejection reason
type RejectRegistrationPayload struct {
	Reason string `form:"reason" json:"reason"`
}

// Validate will validate the payload
func (r RejectRegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

func (a *AuthController) RejectPost(ctx router.Context) error {
	id, err := a.paramID(ctx)
	if err != nil {
		return a.badRequest(ctx, "Invalid registration id", nil)
	}

	payload := new(RejectRegistrationPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	actor, _ := ActorFromRouterClaims(ctx, a.Config.GetContextKey())

	var account *Account
	req := RejectRegistrationMessage{
		AccountID: id,
		Reason:    payload.Reason,
		Actor:     actor,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	handler := NewRegistrationDecisionHandler(a.Repo, a.Workflow)
	if err := handler.Reject(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, account)
}

func (a *AuthController) ReactivatePost(ctx router.Context) error {
	id, err := a.paramID(ctx)
	if err != nil {
		return a.badRequest(ctx, "Invalid registration id", nil)
	}

	actor, _ := ActorFromRouterClaims(ctx, a.Config.GetContextKey())

	var account *Account
	req := ReactivateRegistrationMessage{
		AccountID: id,
		Actor:     actor,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	handler := NewRegistrationDecisionHandler(a.Repo, a.Workflow)
	if err := handler.Reactivate(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, account)
}

// BulkApprovePayload carries the registration ids to approve
type BulkApprovePayload struct {
	IDs []uuid.UUID `form:"ids" json:"ids"`
}

// Validate will validate the payload
func (r BulkApprovePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Length(1, 100)),
	)
}

func (a *AuthController) BulkApprovePost(ctx router.Context) error {
	payload := new(BulkApprovePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", FormatValidationErrorToMap(err))
	}

	actor, _ := ActorFromRouterClaims(ctx, a.Config.GetContextKey())

	var result *BulkApprovalResult
	req := BulkApproveRegistrationsMessage{
		AccountIDs: payload.IDs,
		Actor:      actor,
		OnResponse: func(res *BulkApprovalResult) {
			result = res
		},
	}

	handler := NewRegistrationDecisionHandler(a.Repo, a.Workflow)
	if err := handler.BulkApprove(ctx.Context(), req); err != nil {
		return respondWithError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

func (a *AuthController) paramID(ctx router.Context) (uuid.UUID, error) {
	return uuid.Parse(ctx.Param("id", ""))
}

func (a *AuthController) badRequest(ctx router.Context, message string, fields map[string]string) error {
	body := map[string]any{
		"error": map[string]any{
			"message": message,
		},
	}
	if len(fields) > 0 {
		body["error"].(map[string]any)["fields"] = fields
	}
	return ctx.JSON(fiber.StatusBadRequest, body)
}

func (a *AuthController) authErrorHandler() func(router.Context, error) error {
	if handler, ok := a.Auther.(interface {
		MakeClientRouteAuthErrorHandler(bool) func(router.Context, error) error
	}); ok {
		return handler.MakeClientRouteAuthErrorHandler(false)
	}
	return respondWithError
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field/message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
