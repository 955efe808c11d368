package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
	"github.com/ivankudzin/modactions/internal/domain/rules"
	pgrepo "github.com/ivankudzin/modactions/internal/repo/postgres"
)

var ErrInvalidRequest = errors.New("invalid action request")
var ErrActionNotFound = errors.New("action not found")

// Gateway performs one concrete operation against the chat platform.
// Implementations classify failures via model.PlatformError.
type Gateway interface {
	Ban(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Kick(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Mute(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Unmute(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Promote(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Demote(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Warn(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Pin(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Unpin(context.Context, model.ActionRequest) (model.PlatformResult, error)
	DeleteMessage(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Restrict(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Unrestrict(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Purge(context.Context, model.ActionRequest) (model.PlatformResult, error)
	SetRole(context.Context, model.ActionRequest) (model.PlatformResult, error)
	RemoveRole(context.Context, model.ActionRequest) (model.PlatformResult, error)
	Lockdown(context.Context, model.ActionRequest) (model.PlatformResult, error)
}

// RecordStore is the durable side of the executor. Append and update
// failures never change an action's outcome.
type RecordStore interface {
	AppendActionRecord(context.Context, model.ActionRecord) error
	GetActionRecord(context.Context, string) (model.ActionRecord, error)
	UpdateActionStatus(context.Context, string, enums.ActionStatus) error
	QueryHistory(context.Context, int64, int, int, enums.ActionStatus) (model.ActionHistory, error)
	GroupStats(context.Context, int64) (model.GroupStats, error)
}

type DeadLetterStore interface {
	AppendDeadLetter(context.Context, model.DeadLetterRecord) error
}

type WarningStore interface {
	IncrementWarnings(context.Context, int64, int64, int) (int, error)
}

type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

type Dependencies struct {
	Gateway     Gateway
	Records     RecordStore
	DeadLetters DeadLetterStore
	Warnings    WarningStore
	Logger      *zap.Logger
}

type gatewayOp func(context.Context, model.ActionRequest) (model.PlatformResult, error)

type pendingAction struct {
	request    model.ActionRequest
	status     enums.ActionStatus
	startedAt  time.Time
	retryCount int
	cancelled  bool
}

// Service turns one ActionRequest into exactly one terminal ActionResponse,
// with bounded retries, best-effort persistence, and visibility of in-flight
// work. The pending registry lives only for the process lifetime.
type Service struct {
	gateway     Gateway
	records     RecordStore
	deadLetters DeadLetterStore
	warnings    WarningStore
	logger      *zap.Logger
	cfg         Config
	dispatch    map[enums.ActionType]gatewayOp
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingAction
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Service{
		gateway:     deps.Gateway,
		records:     deps.Records,
		deadLetters: deps.DeadLetters,
		warnings:    deps.Warnings,
		logger:      deps.Logger,
		cfg:         cfg,
		now:         time.Now,
		pending:     make(map[string]*pendingAction),
	}

	if g := deps.Gateway; g != nil {
		s.dispatch = map[enums.ActionType]gatewayOp{
			enums.ActionTypeBan:           g.Ban,
			enums.ActionTypeKick:          g.Kick,
			enums.ActionTypeMute:          g.Mute,
			enums.ActionTypeUnmute:        g.Unmute,
			enums.ActionTypePromote:       g.Promote,
			enums.ActionTypeDemote:        g.Demote,
			enums.ActionTypeWarn:          g.Warn,
			enums.ActionTypePin:           g.Pin,
			enums.ActionTypeUnpin:         g.Unpin,
			enums.ActionTypeDeleteMessage: g.DeleteMessage,
			enums.ActionTypeRestrict:      g.Restrict,
			enums.ActionTypeUnrestrict:    g.Unrestrict,
			enums.ActionTypePurge:         g.Purge,
			enums.ActionTypeSetRole:       g.SetRole,
			enums.ActionTypeRemoveRole:    g.RemoveRole,
			enums.ActionTypeLockdown:      g.Lockdown,
		}
	}

	return s
}

// Execute runs one action to a terminal response. Validation failures are
// returned as errors before an action id is issued; platform and persistence
// failures are captured into the response and never surface as errors.
func (s *Service) Execute(ctx context.Context, req model.ActionRequest) (model.ActionResponse, error) {
	if err := rules.ValidateActionRequest(req); err != nil {
		return model.ActionResponse{}, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	op, ok := s.dispatch[req.Type]
	if !ok {
		return model.ActionResponse{}, fmt.Errorf("no gateway operation registered for action type %q", req.Type)
	}

	actionID := uuid.NewString()
	entry := &pendingAction{
		request:   req,
		status:    enums.ActionStatusPending,
		startedAt: s.now(),
	}

	s.mu.Lock()
	s.pending[actionID] = entry
	s.mu.Unlock()

	return s.run(ctx, actionID, entry, op), nil
}

func (s *Service) run(ctx context.Context, actionID string, entry *pendingAction, op gatewayOp) (resp model.ActionResponse) {
	req := entry.request
	start := entry.startedAt

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action orchestration failed",
				zap.String("action_id", actionID),
				zap.Any("panic", r),
			)
			s.removePending(actionID)
			resp = s.buildResponse(actionID, req, enums.ActionStatusFailed, false,
				"unexpected error during execution", fmt.Sprintf("panic: %v", r), start, 0, nil)
		}
	}()

	var lastErr error
	attempts := 0
	waitAborted := false

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		attempts = attempt
		if attempt == 1 {
			s.setPendingStatus(entry, enums.ActionStatusInProgress, 0)
		} else {
			s.setPendingStatus(entry, enums.ActionStatusRetrying, attempt-1)
		}

		result, err := op(ctx, req)
		if err == nil {
			if s.isCancelled(entry) {
				return s.buildResponse(actionID, req, enums.ActionStatusCancelled, false,
					"action cancelled", "", start, attempt-1, nil)
			}

			resp := s.buildResponse(actionID, req, enums.ActionStatusSuccess, true,
				result.Message, "", start, attempt-1, result.Payload)
			s.persistRecord(ctx, resp, req)
			s.recordWarning(ctx, req)
			s.removePending(actionID)
			return resp
		}

		lastErr = err
		if !Retryable(err) {
			s.logger.Warn("action failed permanently, not retrying",
				zap.String("action_id", actionID),
				zap.String("action_type", string(req.Type)),
				zap.Error(err),
			)
			break
		}
		if attempt == s.cfg.MaxRetries {
			break
		}

		if s.isCancelled(entry) {
			return s.buildResponse(actionID, req, enums.ActionStatusCancelled, false,
				"action cancelled", "", start, attempt-1, nil)
		}

		delay := BackoffDelay(attempt, s.cfg.BackoffBase, s.cfg.MaxBackoff)
		s.logger.Warn("action attempt failed, retrying",
			zap.String("action_id", actionID),
			zap.String("action_type", string(req.Type)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepContext(ctx, delay); err != nil {
			lastErr = fmt.Errorf("retry wait aborted: %w", err)
			waitAborted = true
			break
		}
	}

	if s.isCancelled(entry) {
		return s.buildResponse(actionID, req, enums.ActionStatusCancelled, false,
			"action cancelled", "", start, attempts-1, nil)
	}

	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}
	resp = s.buildResponse(actionID, req, enums.ActionStatusFailed, false,
		fmt.Sprintf("action failed after %d attempt(s)", attempts), errText, start, attempts-1, nil)

	s.persistRecord(ctx, resp, req)
	// Dead letters mark retry exhaustion only. An aborted backoff wait is an
	// orchestration failure, not an exhausted action.
	if !waitAborted && Retryable(lastErr) {
		s.persistDeadLetter(ctx, actionID, req, errText, attempts-1)
	}
	s.removePending(actionID)
	return resp
}

// ExecuteBatch runs every request concurrently and returns one terminal
// response per request. A failure in one request never affects another;
// requests failing validation yield failed responses so the batch stays
// position-aligned with its input.
func (s *Service) ExecuteBatch(ctx context.Context, reqs []model.ActionRequest) []model.ActionResponse {
	responses := make([]model.ActionResponse, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req model.ActionRequest) {
			defer wg.Done()
			resp, err := s.Execute(ctx, req)
			if err != nil {
				resp = model.ActionResponse{
					Type:      req.Type,
					GroupID:   req.GroupID,
					UserID:    req.UserID,
					Status:    enums.ActionStatusFailed,
					Success:   false,
					Message:   "action rejected",
					Error:     err.Error(),
					Timestamp: s.now().UTC(),
				}
			}
			responses[i] = resp
		}(i, req)
	}
	wg.Wait()

	return responses
}

// GetActionStatus reports a transient status for in-flight actions and falls
// back to the persisted terminal record otherwise.
func (s *Service) GetActionStatus(ctx context.Context, actionID string) (model.ActionResponse, error) {
	s.mu.Lock()
	if entry, ok := s.pending[actionID]; ok {
		resp := model.ActionResponse{
			ActionID:   actionID,
			Type:       entry.request.Type,
			GroupID:    entry.request.GroupID,
			UserID:     entry.request.UserID,
			Status:     entry.status,
			Success:    false,
			Message:    "action is still processing",
			Timestamp:  entry.startedAt,
			RetryCount: entry.retryCount,
		}
		s.mu.Unlock()
		return resp, nil
	}
	s.mu.Unlock()

	if s.records == nil {
		return model.ActionResponse{}, ErrActionNotFound
	}

	rec, err := s.records.GetActionRecord(ctx, actionID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrActionRecordNotFound) {
			return model.ActionResponse{}, ErrActionNotFound
		}
		return model.ActionResponse{}, fmt.Errorf("load action record: %w", err)
	}

	return model.ActionResponse{
		ActionID:         rec.ActionID,
		Type:             rec.Type,
		GroupID:          rec.GroupID,
		UserID:           rec.UserID,
		Status:           rec.Status,
		Success:          rec.Success,
		Message:          rec.Message,
		Error:            rec.Error,
		Timestamp:        rec.CreatedAt,
		ExecutionTimeMS:  rec.ExecutionTimeMS,
		RetryCount:       rec.RetryCount,
		PlatformResponse: rec.PlatformResponse,
	}, nil
}

// CancelAction removes an in-flight action from the pending registry. It is
// advisory: an attempt already running against the platform is not aborted,
// but its result is discarded and no further retries are scheduled.
func (s *Service) CancelAction(ctx context.Context, actionID string) bool {
	s.mu.Lock()
	entry, ok := s.pending[actionID]
	if ok {
		entry.cancelled = true
		delete(s.pending, actionID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	if s.records != nil {
		if err := s.records.UpdateActionStatus(ctx, actionID, enums.ActionStatusCancelled); err != nil &&
			!errors.Is(err, pgrepo.ErrActionRecordNotFound) {
			s.logger.Warn("failed to mark action record cancelled",
				zap.String("action_id", actionID), zap.Error(err))
		}
	}
	return true
}

func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// History returns a page of terminal action records for a group together
// with the total match count. Status is optional.
func (s *Service) History(ctx context.Context, groupID int64, limit, skip int, status enums.ActionStatus) (model.ActionHistory, error) {
	if s.records == nil {
		return model.ActionHistory{}, fmt.Errorf("record store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if skip < 0 {
		skip = 0
	}
	return s.records.QueryHistory(ctx, groupID, limit, skip, status)
}

func (s *Service) GroupStats(ctx context.Context, groupID int64) (model.GroupStats, error) {
	if s.records == nil {
		return model.GroupStats{}, fmt.Errorf("record store is not configured")
	}
	return s.records.GroupStats(ctx, groupID)
}

func (s *Service) buildResponse(
	actionID string,
	req model.ActionRequest,
	status enums.ActionStatus,
	success bool,
	message, errText string,
	start time.Time,
	retryCount int,
	payload map[string]any,
) model.ActionResponse {
	if retryCount < 0 {
		retryCount = 0
	}
	return model.ActionResponse{
		ActionID:         actionID,
		Type:             req.Type,
		GroupID:          req.GroupID,
		UserID:           req.UserID,
		Status:           status,
		Success:          success,
		Message:          message,
		Error:            errText,
		Timestamp:        s.now().UTC(),
		ExecutionTimeMS:  s.now().Sub(start).Milliseconds(),
		RetryCount:       retryCount,
		PlatformResponse: payload,
	}
}

// persistRecord is best-effort: a persistence failure never flips the
// outcome of an executed action.
func (s *Service) persistRecord(ctx context.Context, resp model.ActionResponse, req model.ActionRequest) {
	if s.records == nil {
		return
	}

	now := s.now().UTC()
	record := model.ActionRecord{
		ActionID:         resp.ActionID,
		Type:             resp.Type,
		GroupID:          resp.GroupID,
		UserID:           resp.UserID,
		InitiatedBy:      req.InitiatedBy,
		Status:           resp.Status,
		Success:          resp.Success,
		Message:          resp.Message,
		Error:            resp.Error,
		Reason:           req.Reason,
		ExecutionTimeMS:  resp.ExecutionTimeMS,
		RetryCount:       resp.RetryCount,
		PlatformResponse: resp.PlatformResponse,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.records.AppendActionRecord(ctx, record); err != nil {
		s.logger.Warn("failed to persist action record",
			zap.String("action_id", resp.ActionID), zap.Error(err))
	}
}

func (s *Service) persistDeadLetter(ctx context.Context, actionID string, req model.ActionRequest, errText string, retryCount int) {
	if s.deadLetters == nil {
		return
	}
	if retryCount < 0 {
		retryCount = 0
	}

	record := model.DeadLetterRecord{
		ActionID:   actionID,
		Request:    req,
		Error:      errText,
		RetryCount: retryCount,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.deadLetters.AppendDeadLetter(ctx, record); err != nil {
		s.logger.Warn("failed to persist dead letter",
			zap.String("action_id", actionID), zap.Error(err))
	}
}

func (s *Service) recordWarning(ctx context.Context, req model.ActionRequest) {
	if s.warnings == nil || req.Type != enums.ActionTypeWarn {
		return
	}
	if _, err := s.warnings.IncrementWarnings(ctx, req.GroupID, req.UserID, 1); err != nil {
		s.logger.Warn("failed to increment warning counter",
			zap.Int64("group_id", req.GroupID),
			zap.Int64("user_id", req.UserID),
			zap.Error(err),
		)
	}
}

func (s *Service) setPendingStatus(entry *pendingAction, status enums.ActionStatus, retryCount int) {
	s.mu.Lock()
	entry.status = status
	entry.retryCount = retryCount
	s.mu.Unlock()
}

func (s *Service) isCancelled(entry *pendingAction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entry.cancelled
}

func (s *Service) removePending(actionID string) {
	s.mu.Lock()
	delete(s.pending, actionID)
	s.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
