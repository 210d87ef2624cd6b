package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AccountStatusStore is the slice of the accounts repository the workflow
// needs: loading a record and compare-and-swapping its lifecycle status.
type AccountStatusStore interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, from, to AccountStatus, opts ...StatusUpdateOption) (*Account, error)
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Account *Account
	From    AccountStatus
	To      AccountStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// RegistrationWorkflow defines lifecycle operations for account registrations.
type RegistrationWorkflow interface {
	Approve(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
	Reject(ctx context.Context, actor ActorRef, account *Account, reason string, opts ...TransitionOption) (*Account, error)
	Reactivate(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
	BulkApprove(ctx context.Context, actor ActorRef, ids []uuid.UUID, opts ...TransitionOption) (*BulkApprovalResult, error)
	CurrentStatus(account *Account) AccountStatus
}

// BulkApprovalResult partitions the outcome of a bulk approval so one bad
// id does not abort the rest of the batch.
type BulkApprovalResult struct {
	Succeeded       []uuid.UUID         `json:"succeeded"`
	AlreadyApproved []uuid.UUID         `json:"already_approved"`
	Failed          []BulkApprovalError `json:"failed"`
}

// BulkApprovalError names the id that could not be approved and why.
type BulkApprovalError struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// WorkflowOption customizes workflow construction.
type WorkflowOption func(*registrationWorkflow)

// WithWorkflowClock injects a custom clock (useful for tests).
func WithWorkflowClock(clock func() time.Time) WorkflowOption {
	return func(wf *registrationWorkflow) {
		if clock != nil {
			wf.now = clock
		}
	}
}

// WithWorkflowActivitySink sets the ActivitySink used to publish lifecycle events.
func WithWorkflowActivitySink(sink ActivitySink) WorkflowOption {
	return func(wf *registrationWorkflow) {
		wf.activitySink = normalizeActivitySink(sink)
	}
}

// WithWorkflowNotifier sets the Notifier dispatched after a decision commits.
func WithWorkflowNotifier(n Notifier) WorkflowOption {
	return func(wf *registrationWorkflow) {
		wf.notifier = normalizeNotifier(n)
	}
}

// WithWorkflowLogger overrides the logger used for sink and notifier failures.
func WithWorkflowLogger(logger Logger) WorkflowOption {
	return func(wf *registrationWorkflow) {
		if logger != nil {
			wf.logger = logger
		}
	}
}

// WithWorkflowHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithWorkflowHookErrorHandler(handler HookErrorHandler) WorkflowOption {
	return func(wf *registrationWorkflow) {
		if handler != nil {
			wf.hookErrorHandler = handler
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewRegistrationWorkflow returns the default implementation backed by the
// provided repository.
func NewRegistrationWorkflow(accounts AccountStatusStore, opts ...WorkflowOption) RegistrationWorkflow {
	wf := &registrationWorkflow{
		accounts: accounts,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			StatusPending: {
				StatusApproved: {},
				StatusRejected: {},
			},
			StatusRejected: {
				StatusPending: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		notifier:     noopNotifier{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(wf)
		}
	}

	return wf
}

type registrationWorkflow struct {
	accounts         AccountStatusStore
	transitions      map[AccountStatus]map[AccountStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	notifier         Notifier
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// Approve moves a pending registration to approved, stamping the deciding
// admin and dispatching the approval notice once the row is committed.
func (wf *registrationWorkflow) Approve(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	adminID, err := wf.requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	updated, err := wf.transition(ctx, actor, account, StatusApproved, opts,
		WithApprovalStamp(adminID, wf.now()))
	if err != nil {
		return nil, err
	}

	wf.dispatch(Notification{
		Kind:      NotificationRegistrationApproved,
		Email:     updated.Email,
		AccountID: updated.ID.String(),
	})

	return updated, nil
}

// Reject moves a pending registration to rejected with the given reason.
func (wf *registrationWorkflow) Reject(ctx context.Context, actor ActorRef, account *Account, reason string, opts ...TransitionOption) (*Account, error) {
	adminID, err := wf.requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, goerrors.New("a rejection requires a reason", goerrors.CategoryValidation).
			WithTextCode("REJECTION_REASON_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}

	opts = append(opts, WithTransitionReason(reason))

	updated, err := wf.transition(ctx, actor, account, StatusRejected, opts,
		WithRejectionStamp(adminID, wf.now(), reason))
	if err != nil {
		return nil, err
	}

	wf.dispatch(Notification{
		Kind:      NotificationRegistrationRejected,
		Email:     updated.Email,
		AccountID: updated.ID.String(),
		Reason:    reason,
	})

	return updated, nil
}

// Reactivate puts a rejected registration back in the review queue. The
// account holder may trigger this themselves, so no admin check applies,
// and the old rejection trail is cleared.
func (wf *registrationWorkflow) Reactivate(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	return wf.transition(ctx, actor, account, StatusPending, opts,
		WithRejectionCleared())
}

// BulkApprove applies Approve to every id, partitioning outcomes instead of
// failing the whole batch.
func (wf *registrationWorkflow) BulkApprove(ctx context.Context, actor ActorRef, ids []uuid.UUID, opts ...TransitionOption) (*BulkApprovalResult, error) {
	if _, err := wf.requireAdmin(actor); err != nil {
		return nil, err
	}

	result := &BulkApprovalResult{}

	for _, id := range ids {
		account, err := wf.accounts.GetByIdentifier(ctx, id.String())
		if err != nil {
			result.Failed = append(result.Failed, BulkApprovalError{
				ID:     id,
				Reason: bulkFailureReason(err),
			})
			continue
		}

		if account.IsApproved() {
			result.AlreadyApproved = append(result.AlreadyApproved, id)
			continue
		}

		if _, err := wf.Approve(ctx, actor, account, opts...); err != nil {
			result.Failed = append(result.Failed, BulkApprovalError{
				ID:     id,
				Reason: bulkFailureReason(err),
			})
			continue
		}

		result.Succeeded = append(result.Succeeded, id)
	}

	return result, nil
}

func (wf *registrationWorkflow) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}

func (wf *registrationWorkflow) transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts []TransitionOption, statusOpts ...StatusUpdateOption) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "account is nil",
		})
	}

	account.EnsureStatus()
	from := account.Status
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	// Repeating a transition is an error, not a no-op: an approved account
	// must not be re-approved (or re-notified), and a rejected one must not
	// be re-rejected. The graph has no self-edges, so this falls out of the
	// same check as any other bad transition.
	if !wf.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	options := wf.buildTransitionOptions(opts...)

	ctxData := TransitionContext{
		Actor:   actor,
		Account: account,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := wf.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	updated, err := wf.accounts.ChangeStatus(ctx, account.ID, from, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	wf.applyUpdates(account, updated, target)

	if err := wf.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	wf.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountStatusChanged,
		Actor:      actor,
		AccountID:  account.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   wf.transitionMetadata(ctxData.Meta),
	})

	return account, nil
}

func (wf *registrationWorkflow) requireAdmin(actor ActorRef) (uuid.UUID, error) {
	if actor.Type == "system" {
		return uuid.Nil, nil
	}

	if actor.Role != RoleAdmin {
		return uuid.Nil, ErrApproverNotAdmin.WithMetadata(map[string]any{
			"actor_id":   actor.ID,
			"actor_role": string(actor.Role),
		})
	}

	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return uuid.Nil, goerrors.New("actor id is not a valid account id", goerrors.CategoryValidation).
			WithTextCode("INVALID_ACTOR_ID").
			WithMetadata(map[string]any{"actor_id": actor.ID})
	}

	return id, nil
}

func (wf *registrationWorkflow) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if wf.hookErrorHandler == nil {
				return err
			}
			return wf.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (wf *registrationWorkflow) canTransition(from, to AccountStatus) bool {
	if allowed, ok := wf.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (wf *registrationWorkflow) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (wf *registrationWorkflow) applyUpdates(account, updated *Account, target AccountStatus) {
	if updated == nil {
		account.Status = target
		return
	}

	if updated.Status != "" {
		account.Status = updated.Status
	} else {
		account.Status = target
	}

	account.IsActive = updated.IsActive
	account.ApprovedBy = updated.ApprovedBy
	account.ApprovedAt = updated.ApprovedAt
	account.RejectedBy = updated.RejectedBy
	account.RejectedAt = updated.RejectedAt
	account.RejectionReason = updated.RejectionReason
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"go-identity: %s transition hook failed: %v\nAccountID: %s from=%s to=%s reason=%s\nProvide identity.WithWorkflowHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Account.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

// dispatch hands the notification to the notifier off the request path.
// Failures are logged and never surface to the caller.
func (wf *registrationWorkflow) dispatch(n Notification) {
	notifier := normalizeNotifier(wf.notifier)
	logger := wf.logger

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("notification dispatch failed kind=%s account=%s: %v", n.Kind, n.AccountID, err)
		}
	}()
}

func (wf *registrationWorkflow) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = wf.now()
	}

	sink := normalizeActivitySink(wf.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		wf.logger.Warn("workflow activity sink error: %v", err)
	}
}

func (wf *registrationWorkflow) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

func bulkFailureReason(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return err.Error()
}
