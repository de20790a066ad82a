// Package account drives the workflow-backed account operations: each one
// submits a request, polls the resulting workflow to a terminal status, and
// ends with exactly one success or error notification.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kubecloud/console-agent/internal/api"
	"github.com/kubecloud/console-agent/internal/model"
	"github.com/kubecloud/console-agent/internal/workflow"
)

// ErrWorkflowFailed is returned when the backend workflow ends in failure.
var ErrWorkflowFailed = errors.New("workflow failed")

// Backend is the slice of the REST client these flows use.
type Backend interface {
	workflow.StatusSource
	Register(ctx context.Context, req api.RegisterRequest, opts *api.RequestOptions) (string, error)
	VerifyCode(ctx context.Context, email, code string, opts *api.RequestOptions) (string, error)
	ReserveNode(ctx context.Context, nodeID int64, opts *api.RequestOptions) (string, error)
	UnreserveNode(ctx context.Context, nodeID int64, opts *api.RequestOptions) (string, error)
	ChargeBalance(ctx context.Context, amountUSD float64, opts *api.RequestOptions) (string, error)
	RedeemVoucher(ctx context.Context, code string, opts *api.RequestOptions) (string, error)
}

// Notifier shows the final outcome of a flow, implemented by notify.Center.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// Poll timings per operation. Registration involves sending mail, so its
// workflow gets a long head start; balance operations settle slowly.
const (
	registerInitialDelay = 15 * time.Second
	registerInterval     = 3 * time.Second
	verifyInitialDelay   = 3 * time.Second
	verifyInterval       = 2 * time.Second
	nodeInitialDelay     = 3 * time.Second
	nodeInterval         = time.Second
	billingInitialDelay  = 6 * time.Second
	billingInterval      = 6 * time.Second
)

type timings struct {
	initialDelay time.Duration
	interval     time.Duration
}

// Service runs account operations end to end.
type Service struct {
	backend  Backend
	notifier Notifier
	logger   *slog.Logger

	register timings
	verify   timings
	node     timings
	billing  timings
}

// NewService creates a Service. A nil logger falls back to slog.Default().
func NewService(backend Backend, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		register: timings{registerInitialDelay, registerInterval},
		verify:   timings{verifyInitialDelay, verifyInterval},
		node:     timings{nodeInitialDelay, nodeInterval},
		billing:  timings{billingInitialDelay, billingInterval},
	}
}

// Register creates an account and waits for the registration workflow.
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) error {
	taskID, err := s.backend.Register(ctx, req, &api.RequestOptions{
		LoadingMessage: "Creating your account...",
	})
	if err != nil {
		s.notifier.Error("Registration failed")
		return fmt.Errorf("register: %w", err)
	}
	return s.await(ctx, taskID, s.register,
		"Account created. Check your email for a verification code.",
		"Registration failed")
}

// VerifyCode confirms the emailed verification code.
func (s *Service) VerifyCode(ctx context.Context, email, code string) error {
	taskID, err := s.backend.VerifyCode(ctx, email, code, &api.RequestOptions{
		LoadingMessage: "Verifying code...",
	})
	if err != nil {
		s.notifier.Error("Verification failed")
		return fmt.Errorf("verify code: %w", err)
	}
	return s.await(ctx, taskID, s.verify,
		"Email verified",
		"Verification failed")
}

// ReserveNode rents a node for the account.
func (s *Service) ReserveNode(ctx context.Context, nodeID int64) error {
	taskID, err := s.backend.ReserveNode(ctx, nodeID, &api.RequestOptions{
		LoadingMessage: "Reserving node...",
	})
	if err != nil {
		s.notifier.Error("Failed to reserve node")
		return fmt.Errorf("reserve node %d: %w", nodeID, err)
	}
	return s.await(ctx, taskID, s.node,
		"Node reserved",
		"Failed to reserve node")
}

// UnreserveNode releases a rented node.
func (s *Service) UnreserveNode(ctx context.Context, nodeID int64) error {
	taskID, err := s.backend.UnreserveNode(ctx, nodeID, &api.RequestOptions{
		LoadingMessage: "Releasing node...",
	})
	if err != nil {
		s.notifier.Error("Failed to release node")
		return fmt.Errorf("unreserve node %d: %w", nodeID, err)
	}
	return s.await(ctx, taskID, s.node,
		"Node released",
		"Failed to release node")
}

// ChargeBalance tops the account balance up.
func (s *Service) ChargeBalance(ctx context.Context, amountUSD float64) error {
	taskID, err := s.backend.ChargeBalance(ctx, amountUSD, &api.RequestOptions{
		LoadingMessage: "Processing payment...",
	})
	if err != nil {
		s.notifier.Error("Failed to charge balance")
		return fmt.Errorf("charge balance: %w", err)
	}
	return s.await(ctx, taskID, s.billing,
		"Balance updated",
		"Failed to charge balance")
}

// RedeemVoucher applies a voucher code to the balance.
func (s *Service) RedeemVoucher(ctx context.Context, code string) error {
	taskID, err := s.backend.RedeemVoucher(ctx, code, &api.RequestOptions{
		LoadingMessage: "Redeeming voucher...",
	})
	if err != nil {
		s.notifier.Error("Failed to redeem voucher")
		return fmt.Errorf("redeem voucher: %w", err)
	}
	return s.await(ctx, taskID, s.billing,
		"Voucher redeemed",
		"Failed to redeem voucher")
}

// await polls the workflow and reports the outcome. A deliberate cancel ends
// the flow silently; every other outcome produces exactly one notification.
func (s *Service) await(ctx context.Context, taskID string, t timings, successMsg, errorMsg string) error {
	h := workflow.Poll(ctx, s.backend, taskID, workflow.Options{
		InitialDelay: t.initialDelay,
		Interval:     t.interval,
		Logger:       s.logger,
	})

	status, err := h.Wait(ctx)
	if err != nil {
		if errors.Is(err, workflow.ErrCancelled) {
			return err
		}
		s.notifier.Error(errorMsg)
		return err
	}

	if status != model.WorkflowCompleted {
		s.notifier.Error(errorMsg)
		return fmt.Errorf("%w: task %s ended %s", ErrWorkflowFailed, taskID, status)
	}

	s.notifier.Success(successMsg)
	return nil
}
