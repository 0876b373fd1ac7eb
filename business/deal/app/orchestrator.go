package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/asset"
	"github.com/fd1az/fxdesk/internal/logger"
)

const (
	maxCancelAttempts = 3

	reasonNoCounterparty   = "No suitable counterparty found"
	reasonExecutionTimeout = "Execution timeout"
)

var slippageWarnPercent = decimal.NewFromInt(1)

// OrchestratorConfig holds the execution settings of the orchestrator.
type OrchestratorConfig struct {
	// ExecutionTimeout bounds fill monitoring.
	ExecutionTimeout      time.Duration
	PollInterval          time.Duration
	MinCounterpartyRating float64
	MinCompletedTrades    int
	PaymentMethod         string
	Registry              *asset.Registry
}

// DefaultOrchestratorConfig returns a config with a five minute execution budget.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ExecutionTimeout: 5 * time.Minute,
		PollInterval:     2 * time.Second,
		Registry:         asset.DefaultRegistry(),
	}
}

// CreateDealRequest is the input of CreateDeal.
type CreateDealRequest struct {
	PartnerID   string           `json:"partnerId"`
	Symbol      string           `json:"symbol"`
	Side        domain.Side      `json:"side"`
	Amount      decimal.Decimal  `json:"amount"`
	MaxRate     *decimal.Decimal `json:"maxRate,omitempty"`
	MinRate     *decimal.Decimal `json:"minRate,omitempty"`
	AutoExecute bool             `json:"autoExecute"`
	Notes       string           `json:"notes,omitempty"`
}

// StatsFilter narrows GetDealStats. Zero values match everything.
type StatsFilter struct {
	PartnerID string
	From      *time.Time
	To        *time.Time
}

// FailedEvent is the payload of deal.failed.
type FailedEvent struct {
	Deal   domain.Deal `json:"deal"`
	Reason string      `json:"reason"`
}

func (e FailedEvent) EventKey() string { return e.Deal.ID }

// ExecutedEvent is the payload of deal.executed.
type ExecutedEvent struct {
	Deal   domain.Deal            `json:"deal"`
	Result domain.ExecutionResult `json:"result"`
}

func (e ExecutedEvent) EventKey() string { return e.Deal.ID }

type orchestratorMetrics struct {
	created     metric.Int64Counter
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
}

// Orchestrator drives deals from creation through P2P execution.
type Orchestrator struct {
	deals    DealRepository
	partners PartnerDirectory
	pricer   Pricer
	matcher  CounterpartyMatcher
	gateway  OrderGateway
	notifier Notifier
	config   OrchestratorConfig
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	metrics  *orchestratorMetrics
	now      func() time.Time
	newID    func() string
	wg       sync.WaitGroup
}

// NewOrchestrator creates a deal orchestrator. notifier may be nil.
func NewOrchestrator(
	deals DealRepository,
	partners PartnerDirectory,
	pricer Pricer,
	matcher CounterpartyMatcher,
	gateway OrderGateway,
	notifier Notifier,
	cfg OrchestratorConfig,
	log logger.LoggerInterface,
) (*Orchestrator, error) {
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = DefaultOrchestratorConfig().ExecutionTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultOrchestratorConfig().PollInterval
	}
	if cfg.Registry == nil {
		cfg.Registry = asset.DefaultRegistry()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	o := &Orchestrator{
		deals:    deals,
		partners: partners,
		pricer:   pricer,
		matcher:  matcher,
		gateway:  gateway,
		notifier: notifier,
		config:   cfg,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.created, err = meter.Int64Counter(
		"deals_created_total",
		metric.WithDescription("Total deals created"),
	)
	if err != nil {
		return err
	}

	o.metrics.transitions, err = meter.Int64Counter(
		"deal_transitions_total",
		metric.WithDescription("Total deal status transitions"),
	)
	if err != nil {
		return err
	}

	o.metrics.duration, err = meter.Float64Histogram(
		"deal_execution_duration_ms",
		metric.WithDescription("Deal execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// CreateDeal validates, prices and persists a deal. With AutoExecute the deal
// starts APPROVED and executes in the background; the call does not wait.
func (o *Orchestrator) CreateDeal(ctx context.Context, req CreateDealRequest) (*domain.Deal, error) {
	ctx, span := o.tracer.Start(ctx, "deal.orchestrator.create",
		trace.WithAttributes(
			attribute.String("partner_id", req.PartnerID),
			attribute.String("symbol", req.Symbol),
			attribute.Bool("auto_execute", req.AutoExecute),
		),
	)
	defer span.End()

	symbol, side, err := o.validateCreate(req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	partner, err := o.partners.GetPartner(ctx, req.PartnerID)
	if err != nil {
		if apperror.GetCode(err) == apperror.CodePartnerNotFound {
			err = apperror.New(apperror.CodeInvalidPartner,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("partner %s not found", req.PartnerID)))
		}
		recordSpanError(span, err)
		return nil, err
	}
	if !partner.IsActive {
		err := apperror.New(apperror.CodeInvalidPartner,
			apperror.WithContext(fmt.Sprintf("partner %s is inactive", partner.ID)))
		recordSpanError(span, err)
		return nil, err
	}
	if err := partner.CheckAmount(req.Amount); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	pricing, err := o.pricer.Quote(ctx, symbol, partner.ID)
	if err != nil {
		wrapped := apperror.New(apperror.CodePricingUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s: %s", symbol, failureReason(err))))
		recordSpanError(span, wrapped)
		return nil, wrapped
	}

	rate := pricing.FinalRate
	if req.MaxRate != nil && rate.GreaterThan(*req.MaxRate) {
		err := apperror.Validation(apperror.CodeRateExceedsMaximum,
			fmt.Sprintf("computed rate %s exceeds maximum %s", rate, req.MaxRate))
		recordSpanError(span, err)
		return nil, err
	}
	if req.MinRate != nil && rate.LessThan(*req.MinRate) {
		err := apperror.Validation(apperror.CodeRateBelowMinimum,
			fmt.Sprintf("computed rate %s below minimum %s", rate, req.MinRate))
		recordSpanError(span, err)
		return nil, err
	}

	initial := domain.StatusPending
	if req.AutoExecute {
		initial = domain.StatusApproved
	}

	meta := domain.Metadata{
		SpotRate:             pricing.SpotRate,
		P2PRate:              pricing.P2PIndicativeRate,
		Spread:               pricing.TotalSpread(),
		VolatilityAdjustment: pricing.VolatilitySpread,
		Confidence:           pricing.Confidence,
		Source:               pricing.Metadata.SpotSource,
	}

	now := o.now()
	deal, err := domain.NewDeal(o.newID(), partner.ID, symbol, side, req.Amount, rate, meta, initial, now)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if req.Notes != "" {
		deal.AppendNote(req.Notes, now)
	}

	if err := o.deals.Create(ctx, deal); err != nil {
		o.logger.Error(ctx, "failed to persist deal",
			"deal_id", deal.ID,
			"partner_id", deal.PartnerID,
			"symbol", deal.Symbol,
			"error", err)
		recordSpanError(span, err)
		return nil, err
	}

	o.metrics.created.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", deal.Symbol),
		attribute.String("side", string(deal.Side)),
	))
	span.SetAttributes(
		attribute.String("deal_id", deal.ID),
		attribute.String("rate", deal.Rate.String()),
	)
	o.logger.Info(ctx, "deal created",
		"deal_id", deal.ID,
		"partner_id", deal.PartnerID,
		"symbol", deal.Symbol,
		"side", deal.Side,
		"amount", deal.Amount.String(),
		"rate", deal.Rate.String(),
		"status", deal.Status)

	o.notifier.Notify(ctx, domain.EventDealCreated, *deal)

	if req.AutoExecute {
		o.executeAsync(ctx, deal.ID)
	}

	return deal, nil
}

func (o *Orchestrator) validateCreate(req CreateDealRequest) (string, domain.Side, error) {
	if req.PartnerID == "" {
		return "", "", apperror.Validation(apperror.CodeRequiredField, "partnerId is required")
	}
	pair, err := o.config.Registry.ParsePair(req.Symbol)
	if err != nil {
		return "", "", apperror.New(apperror.CodeInvalidSymbol,
			apperror.WithCause(err),
			apperror.WithContext(req.Symbol))
	}
	side, err := domain.ParseSide(string(req.Side))
	if err != nil {
		return "", "", err
	}
	if !req.Amount.IsPositive() {
		return "", "", apperror.Validation(apperror.CodeInvalidInput, "amount must be positive")
	}
	if req.MaxRate != nil && req.MinRate != nil && req.MinRate.GreaterThan(*req.MaxRate) {
		return "", "", apperror.Validation(apperror.CodeInvalidInput, "minRate must not exceed maxRate")
	}
	return pair.Symbol(), side, nil
}

func (o *Orchestrator) executeAsync(ctx context.Context, dealID string) {
	ctx = context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error(ctx, "deal execution panicked",
					"deal_id", dealID,
					"panic", r)
			}
		}()

		result, err := o.ExecuteDeal(ctx, dealID)
		if err != nil {
			o.logger.Error(ctx, "auto execution failed",
				"deal_id", dealID,
				"error", err)
			return
		}
		o.logger.Debug(ctx, "auto execution finished",
			"deal_id", dealID,
			"success", result.Success)
	}()
}

// Wait blocks until background executions have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ExecuteDeal finds a counterparty, places the P2P order and monitors it to a
// fill. Handled failures leave the deal FAILED and return Success false with
// a nil error.
func (o *Orchestrator) ExecuteDeal(ctx context.Context, dealID string) (*domain.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "deal.orchestrator.execute",
		trace.WithAttributes(attribute.String("deal_id", dealID)),
	)
	defer span.End()
	start := o.now()

	deal, err := o.deals.Get(ctx, dealID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if !deal.Status.IsExecutable() {
		err := domain.StateConflict(deal.ID, deal.Status, domain.StatusPending, domain.StatusApproved)
		recordSpanError(span, err)
		return nil, err
	}
	if err := o.transition(ctx, deal, domain.StatusExecuting); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	// Once EXECUTING the deal is driven to a terminal status regardless of the caller.
	ctx = context.WithoutCancel(ctx)
	result := &domain.ExecutionResult{DealID: deal.ID}

	counterparty, err := o.matcher.FindCounterparty(ctx, domain.CounterpartyQuery{
		Symbol:             deal.Symbol,
		Side:               deal.Side,
		Amount:             deal.Amount,
		MinRating:          o.config.MinCounterpartyRating,
		MinCompletedTrades: o.config.MinCompletedTrades,
		PaymentMethod:      o.config.PaymentMethod,
	})
	if err != nil || counterparty == nil {
		if err != nil {
			o.logger.Warn(ctx, "counterparty search failed",
				"deal_id", deal.ID,
				"symbol", deal.Symbol,
				"error", err)
		}
		return o.failDeal(ctx, span, deal, result, reasonNoCounterparty, start)
	}
	result.Metadata.CounterpartyFound = true

	orderID, err := o.gateway.PlaceOrder(ctx, domain.OrderRequest{
		DealID:         deal.ID,
		Symbol:         deal.Symbol,
		Side:           deal.Side,
		Amount:         deal.Amount,
		Rate:           deal.Rate,
		CounterpartyID: counterparty.ID,
		PaymentMethod:  counterparty.PaymentMethod,
	})
	if err != nil {
		o.logger.Warn(ctx, "order placement failed",
			"deal_id", deal.ID,
			"counterparty_id", counterparty.ID,
			"error", err)
		return o.failDeal(ctx, span, deal, result, failureReason(err), start)
	}
	result.P2POrderID = orderID

	deal.Counterparty = counterparty
	deal.P2POrderID = &orderID
	deal.UpdatedAt = o.now()
	if err := o.deals.UpdateIfStatus(ctx, deal, domain.StatusExecuting); err != nil {
		return nil, o.abandonOrder(ctx, span, deal, orderID, err)
	}

	fill, err := o.monitor(ctx, orderID)
	if err != nil {
		reason := failureReason(err)
		if apperror.GetCode(err) == apperror.CodeExecutionTimeout {
			reason = reasonExecutionTimeout
			if cerr := o.gateway.CancelOrder(ctx, orderID); cerr != nil {
				o.logger.Warn(ctx, "failed to cancel timed out order",
					"deal_id", deal.ID,
					"order_id", orderID,
					"error", cerr)
			}
		}
		return o.failDeal(ctx, span, deal, result, reason, start)
	}
	if fill.State != domain.OrderFilled {
		reason := fill.Reason
		if reason == "" {
			reason = fmt.Sprintf("Order %s", fill.State)
		}
		return o.failDeal(ctx, span, deal, result, reason, start)
	}

	return o.completeDeal(ctx, span, deal, result, fill, start)
}

func (o *Orchestrator) completeDeal(
	ctx context.Context,
	span trace.Span,
	deal *domain.Deal,
	result *domain.ExecutionResult,
	fill *domain.OrderStatus,
	start time.Time,
) (*domain.ExecutionResult, error) {
	executedRate := fill.ExecutedRate
	executedAmount := fill.ExecutedAmount
	slippage := fill.SlippagePercent

	result.Success = true
	result.ExecutedRate = &executedRate
	result.ExecutedAmount = &executedAmount
	result.Metadata.SlippagePercent = &slippage
	if executedAmount.LessThan(deal.Amount) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Partial fill: executed %s of %s", executedAmount, deal.Amount))
	}
	if slippage.Abs().GreaterThan(slippageWarnPercent) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("High slippage: %s%%", slippage.StringFixed(2)))
	}

	if err := o.transition(ctx, deal, domain.StatusExecuted); err != nil {
		return nil, o.abandonOrder(ctx, span, deal, result.P2POrderID, err)
	}
	result.Metadata.ExecutionTime = o.now().Sub(start).Milliseconds()
	o.notifier.Notify(ctx, domain.EventDealExecuted, ExecutedEvent{Deal: *deal, Result: *result})

	for _, next := range []domain.Status{domain.StatusSettling, domain.StatusCompleted} {
		if err := o.transition(ctx, deal, next); err != nil {
			o.logger.Error(ctx, "failed to settle executed deal",
				"deal_id", deal.ID,
				"partner_id", deal.PartnerID,
				"symbol", deal.Symbol,
				"status", deal.Status,
				"error", err)
			recordSpanError(span, err)
			return nil, err
		}
	}

	result.Metadata.ExecutionTime = o.now().Sub(start).Milliseconds()
	o.metrics.duration.Record(ctx, float64(result.Metadata.ExecutionTime), metric.WithAttributes(
		attribute.String("symbol", deal.Symbol),
		attribute.String("outcome", "completed"),
	))
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.String("order_id", result.P2POrderID),
	)
	o.logger.Info(ctx, "deal completed",
		"deal_id", deal.ID,
		"order_id", result.P2POrderID,
		"executed_rate", executedRate.String(),
		"executed_amount", executedAmount.String(),
		"execution_ms", result.Metadata.ExecutionTime)

	return result, nil
}

// failDeal records FAILED with the reason in notes. The returned error is
// non-nil only when the failure itself could not be persisted.
func (o *Orchestrator) failDeal(
	ctx context.Context,
	span trace.Span,
	deal *domain.Deal,
	result *domain.ExecutionResult,
	reason string,
	start time.Time,
) (*domain.ExecutionResult, error) {
	deal.AppendNote("Failed: "+reason, o.now())
	if err := o.transition(ctx, deal, domain.StatusFailed); err != nil {
		if apperror.GetCode(err) == apperror.CodeInvalidDealState {
			o.logger.Warn(ctx, "deal changed state during execution",
				"deal_id", deal.ID,
				"reason", reason,
				"error", err)
		} else {
			o.logger.Error(ctx, "failed to record deal failure",
				"deal_id", deal.ID,
				"partner_id", deal.PartnerID,
				"symbol", deal.Symbol,
				"reason", reason,
				"error", err)
		}
		recordSpanError(span, err)
		return nil, err
	}

	result.Success = false
	result.Error = reason
	result.Metadata.ExecutionTime = o.now().Sub(start).Milliseconds()

	o.metrics.duration.Record(ctx, float64(result.Metadata.ExecutionTime), metric.WithAttributes(
		attribute.String("symbol", deal.Symbol),
		attribute.String("outcome", "failed"),
	))
	span.SetAttributes(attribute.Bool("success", false))
	span.SetStatus(codes.Error, reason)
	o.logger.Warn(ctx, "deal failed",
		"deal_id", deal.ID,
		"partner_id", deal.PartnerID,
		"symbol", deal.Symbol,
		"reason", reason)

	o.notifier.Notify(ctx, domain.EventDealFailed, FailedEvent{Deal: *deal, Reason: reason})
	return result, nil
}

// abandonOrder handles a lost compare-and-set after an order was placed: the
// upstream order is cancelled best-effort and the conflict returned.
func (o *Orchestrator) abandonOrder(ctx context.Context, span trace.Span, deal *domain.Deal, orderID string, cause error) error {
	if cerr := o.gateway.CancelOrder(ctx, orderID); cerr != nil {
		o.logger.Warn(ctx, "failed to cancel orphaned order",
			"deal_id", deal.ID,
			"order_id", orderID,
			"error", cerr)
	}
	if apperror.GetCode(cause) == apperror.CodeInvalidDealState {
		o.logger.Warn(ctx, "deal changed state during execution",
			"deal_id", deal.ID,
			"order_id", orderID,
			"error", cause)
	} else {
		o.logger.Error(ctx, "failed to update executing deal",
			"deal_id", deal.ID,
			"partner_id", deal.PartnerID,
			"symbol", deal.Symbol,
			"order_id", orderID,
			"error", cause)
	}
	recordSpanError(span, cause)
	return cause
}

// monitor waits for a final order state, by push when the gateway supports
// it and by polling otherwise, bounded by the execution timeout.
func (o *Orchestrator) monitor(ctx context.Context, orderID string) (*domain.OrderStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.ExecutionTimeout)
	defer cancel()

	if watcher, ok := o.gateway.(FillWatcher); ok {
		updates, err := watcher.WatchOrder(ctx, orderID)
		if err == nil {
			status, done, err := o.watch(ctx, orderID, updates)
			if done {
				return status, err
			}
		} else {
			o.logger.Warn(ctx, "fill stream unavailable, polling",
				"order_id", orderID,
				"error", err)
		}
	}
	return o.poll(ctx, orderID)
}

// watch consumes updates until a final state. done is false when the stream
// closed early and the caller should fall back to polling.
func (o *Orchestrator) watch(ctx context.Context, orderID string, updates <-chan domain.OrderStatus) (*domain.OrderStatus, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, true, executionTimeout(orderID)
		case status, ok := <-updates:
			if !ok {
				o.logger.Warn(ctx, "fill stream closed, polling", "order_id", orderID)
				return nil, false, nil
			}
			if status.State.IsFinal() {
				return &status, true, nil
			}
		}
	}
}

func (o *Orchestrator) poll(ctx context.Context, orderID string) (*domain.OrderStatus, error) {
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		status, err := o.gateway.GetOrderStatus(ctx, orderID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, executionTimeout(orderID)
		case err != nil && !apperror.IsRetryable(err):
			return nil, err
		case err != nil:
			o.logger.Debug(ctx, "order status unavailable",
				"order_id", orderID,
				"error", err)
		case status.State.IsFinal():
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, executionTimeout(orderID)
		case <-ticker.C:
		}
	}
}

func executionTimeout(orderID string) error {
	return apperror.New(apperror.CodeExecutionTimeout, apperror.WithContext("order "+orderID))
}

// ApproveDeal moves a PENDING deal to APPROVED.
func (o *Orchestrator) ApproveDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	ctx, span := o.tracer.Start(ctx, "deal.orchestrator.approve",
		trace.WithAttributes(attribute.String("deal_id", dealID)),
	)
	defer span.End()

	deal, err := o.deals.Get(ctx, dealID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if deal.Status != domain.StatusPending {
		err := domain.StateConflict(deal.ID, deal.Status, domain.StatusPending)
		recordSpanError(span, err)
		return nil, err
	}
	if err := o.transition(ctx, deal, domain.StatusApproved); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	o.logger.Info(ctx, "deal approved", "deal_id", deal.ID)
	o.notifier.Notify(ctx, domain.EventDealApproved, *deal)
	return deal, nil
}

// CancelDeal cancels an in-flight deal, appending the reason to its notes.
// Terminal deals are refused with INVALID_DEAL_STATE.
func (o *Orchestrator) CancelDeal(ctx context.Context, dealID, reason string) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "deal.orchestrator.cancel",
		trace.WithAttributes(attribute.String("deal_id", dealID)),
	)
	defer span.End()

	if reason == "" {
		reason = "no reason given"
	}

	var (
		deal *domain.Deal
		err  error
	)
	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		deal, err = o.deals.Get(ctx, dealID)
		if err != nil {
			recordSpanError(span, err)
			return false, err
		}
		if deal.Status.IsTerminal() {
			err = domain.StateConflict(deal.ID, deal.Status,
				domain.StatusPending, domain.StatusApproved, domain.StatusExecuting,
				domain.StatusExecuted, domain.StatusSettling)
			recordSpanError(span, err)
			return false, err
		}

		deal.AppendNote("Cancelled: "+reason, o.now())
		err = o.transition(ctx, deal, domain.StatusCancelled)
		if err == nil {
			break
		}
		if apperror.GetCode(err) != apperror.CodeInvalidDealState {
			recordSpanError(span, err)
			return false, err
		}
		// status moved between read and write; re-read
	}
	if err != nil {
		recordSpanError(span, err)
		return false, err
	}

	if deal.P2POrderID != nil {
		if err := o.gateway.CancelOrder(context.WithoutCancel(ctx), *deal.P2POrderID); err != nil {
			o.logger.Warn(ctx, "upstream order cancel failed",
				"deal_id", deal.ID,
				"order_id", *deal.P2POrderID,
				"error", err)
		}
	}

	o.logger.Info(ctx, "deal cancelled",
		"deal_id", deal.ID,
		"reason", reason)
	o.notifier.Notify(ctx, domain.EventDealCancelled, *deal)
	return true, nil
}

// GetDeal returns a deal by id.
func (o *Orchestrator) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	return o.deals.Get(ctx, dealID)
}

// ListDeals returns deals matching filter, newest first.
func (o *Orchestrator) ListDeals(ctx context.Context, filter domain.ListFilter) ([]domain.Deal, error) {
	return o.deals.List(ctx, filter)
}

// GetDealStats aggregates persisted deals matching filter.
func (o *Orchestrator) GetDealStats(ctx context.Context, filter StatsFilter) (*domain.DealStats, error) {
	ctx, span := o.tracer.Start(ctx, "deal.orchestrator.stats")
	defer span.End()

	deals, err := o.deals.List(ctx, domain.ListFilter{
		PartnerID: filter.PartnerID,
		From:      filter.From,
		To:        filter.To,
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	stats := domain.ComputeStats(deals)
	return &stats, nil
}

// transition applies next to deal and writes it with a compare-and-set on the
// status it had before.
func (o *Orchestrator) transition(ctx context.Context, deal *domain.Deal, next domain.Status) error {
	from := deal.Status
	if err := deal.Transition(next, o.now()); err != nil {
		return err
	}
	if err := o.deals.UpdateIfStatus(ctx, deal, from); err != nil {
		return err
	}

	o.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(next)),
	))
	o.logger.Debug(ctx, "deal transitioned",
		"deal_id", deal.ID,
		"from", from,
		"to", next)
	return nil
}

// failureReason extracts a caller-facing message from a collaborator error.
func failureReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Context != "" {
			return appErr.Message + ": " + appErr.Context
		}
		return appErr.Message
	}
	return err.Error()
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) {}
