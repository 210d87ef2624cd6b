package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ApproveRegistrationMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Actor      ActorRef
	OnResponse func(account *Account)
}

func (e ApproveRegistrationMessage) Type() string { return "registration.approve" }

type RejectRegistrationMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Reason     string    `json:"reason"`
	Actor      ActorRef
	OnResponse func(account *Account)
}

func (e RejectRegistrationMessage) Type() string { return "registration.reject" }

type ReactivateRegistrationMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Actor      ActorRef
	OnResponse func(account *Account)
}

func (e ReactivateRegistrationMessage) Type() string { return "registration.reactivate" }

type BulkApproveRegistrationsMessage struct {
	AccountIDs []uuid.UUID `json:"account_ids"`
	Actor      ActorRef
	OnResponse func(result *BulkApprovalResult)
}

func (e BulkApproveRegistrationsMessage) Type() string { return "registration.bulk_approve" }

// RegistrationDecisionHandler executes admin decisions on pending
// registrations through the workflow.
type RegistrationDecisionHandler struct {
	repo     RepositoryManager
	workflow RegistrationWorkflow
}

func NewRegistrationDecisionHandler(repo RepositoryManager, workflow RegistrationWorkflow) *RegistrationDecisionHandler {
	if workflow == nil {
		workflow = NewRegistrationWorkflow(repo.Accounts())
	}
	return &RegistrationDecisionHandler{
		repo:     repo,
		workflow: workflow,
	}
}

func (h *RegistrationDecisionHandler) Approve(ctx context.Context, event ApproveRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration approval",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.load(ctx, event.AccountID)
	if err != nil {
		return err
	}

	updated, err := h.workflow.Approve(ctx, event.Actor, account)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

func (h *RegistrationDecisionHandler) Reject(ctx context.Context, event RejectRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration rejection",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.load(ctx, event.AccountID)
	if err != nil {
		return err
	}

	updated, err := h.workflow.Reject(ctx, event.Actor, account, event.Reason)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

func (h *RegistrationDecisionHandler) Reactivate(ctx context.Context, event ReactivateRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration reactivation",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.load(ctx, event.AccountID)
	if err != nil {
		return err
	}

	updated, err := h.workflow.Reactivate(ctx, event.Actor, account)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

func (h *RegistrationDecisionHandler) BulkApprove(ctx context.Context, event BulkApproveRegistrationsMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during bulk registration approval",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	result, err := h.workflow.BulkApprove(ctx, event.Actor, event.AccountIDs)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}

func (h *RegistrationDecisionHandler) load(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := h.repo.Accounts().GetByIdentifier(ctx, id.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, goerrors.New("registration not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"account_id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve registration")
	}
	return account, nil
}
