package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// States visited by a single invocation. None of them is persisted; the
// controller starts from StateCheckPrimary every time it is triggered.
const (
	StateCheckPrimary   = "CHECK_PRIMARY"
	StateCheckSecondary = "CHECK_SECONDARY"
	StatePromoting      = "PROMOTING"
	StateHealthy        = "HEALTHY"
	StateBothDown       = "BOTH_DOWN"
	StateFailedOver     = "FAILED_OVER"
	StateErrored        = "ERRORED"
)

// Outcome is the terminal result of one controller invocation.
type Outcome string

const (
	OutcomePrimaryHealthy        Outcome = "primary_healthy"
	OutcomeFailedOverToSecondary Outcome = "failed_over_to_secondary"
	OutcomeBothUnavailable       Outcome = "both_unavailable"
	OutcomeCheckError            Outcome = "check_error"
)

// Alert subjects sent to operators.
const (
	SubjectFailoverTriggered = "RDS Failover Triggered"
	SubjectAllInstancesDown  = "Critical: All RDS Instances Down"
	SubjectPromotionFailed   = "Critical: RDS Replica Promotion Failed"
)

// Result describes what one invocation observed and decided.
type Result struct {
	InvocationID    string          `json:"invocation_id"`
	Outcome         Outcome         `json:"outcome"`
	State           string          `json:"state"`
	PrimaryStatus   *DatabaseStatus `json:"primary_status,omitempty"`
	SecondaryStatus *DatabaseStatus `json:"secondary_status,omitempty"`
	Promoted        bool            `json:"promoted"`
	AlertSubject    string          `json:"alert_subject,omitempty"`
	AlertDelivered  bool            `json:"alert_delivered"`
	Err             error           `json:"-"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
}

// FailoverController runs the primary/secondary failover decision. It holds
// only immutable collaborator handles, so concurrent invocations are safe.
type FailoverController struct {
	primary   DatabaseControlPlane
	secondary DatabaseControlPlane
	notifier  Notifier
	source    ConfigSource
	resolve   ResolveOptions
	recorders []Recorder
	logger    *zap.Logger
}

// ControllerDeps groups the capabilities the controller depends on.
// Source is only needed by Invoke; Recorders are optional.
type ControllerDeps struct {
	Primary   DatabaseControlPlane
	Secondary DatabaseControlPlane
	Notifier  Notifier
	Source    ConfigSource
	Resolve   ResolveOptions
	Recorders []Recorder
	Logger    *zap.Logger
}

func NewFailoverController(deps ControllerDeps) *FailoverController {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailoverController{
		primary:   deps.Primary,
		secondary: deps.Secondary,
		notifier:  deps.Notifier,
		source:    deps.Source,
		resolve:   deps.Resolve,
		recorders: deps.Recorders,
		logger:    logger,
	}
}

// Invoke resolves the failover configuration once and runs the check.
// A *ConfigError is returned when resolution fails; in that case no status
// query, promotion or alert happens.
func (fc *FailoverController) Invoke(ctx context.Context) (Result, error) {
	var (
		cfg FailoverConfig
		err error
	)
	if fc.source == nil {
		err = &ConfigError{Err: errors.New("no config source configured")}
	} else {
		cfg, err = ResolveFailoverConfig(ctx, fc.source, fc.resolve)
	}
	if err != nil {
		invocationsTotal.WithLabelValues("config_error").Inc()
		fc.logger.Error("Failed to resolve failover configuration", zap.Error(err))
		return Result{}, err
	}
	return fc.RunFailoverCheck(ctx, cfg), nil
}

// RunFailoverCheck drives one invocation from CheckPrimary to exactly one
// terminal state. It never retries and never returns without an outcome.
func (fc *FailoverController) RunFailoverCheck(ctx context.Context, cfg FailoverConfig) Result {
	res := Result{
		InvocationID: uuid.NewString(),
		State:        StateCheckPrimary,
		StartedAt:    time.Now(),
	}
	log := fc.logger.With(
		zap.String("invocation_id", res.InvocationID),
		zap.String("primary", cfg.Primary.String()),
		zap.String("secondary", cfg.Secondary.String()),
	)
	log.Info("Starting failover check")

	fc.evaluate(ctx, log, cfg, &res)

	res.FinishedAt = time.Now()
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	invocationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	log.Info("Failover check finished",
		zap.String("outcome", string(res.Outcome)),
		zap.String("state", res.State),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	)

	fc.record(ctx, log, cfg, res)
	return res
}

func (fc *FailoverController) evaluate(ctx context.Context, log *zap.Logger, cfg FailoverConfig, res *Result) {
	primary, err := fc.describe(ctx, fc.primary, cfg.Primary)
	if err != nil {
		fc.transition(log, res, StateErrored)
		res.Outcome = OutcomeCheckError
		res.Err = err
		log.Error("Primary status query failed", zap.Error(err))
		return
	}
	res.PrimaryStatus = &primary

	if primary.Available() {
		fc.transition(log, res, StateHealthy)
		res.Outcome = OutcomePrimaryHealthy
		log.Info("Primary DB is healthy and available",
			zap.String("identifier", cfg.Primary.Identifier))
		return
	}

	log.Warn("Primary DB unavailable",
		zap.String("identifier", cfg.Primary.Identifier),
		zap.String("status", primary.State))
	fc.transition(log, res, StateCheckSecondary)

	secondary, err := fc.describe(ctx, fc.secondary, cfg.Secondary)
	if err != nil {
		// An unqueryable replica cannot be promoted; treat it as down.
		log.Warn("Secondary status query failed", zap.Error(err))
		secondary = QueryFailedStatus(err)
	}
	res.SecondaryStatus = &secondary

	if !secondary.Available() {
		fc.transition(log, res, StateBothDown)
		res.Outcome = OutcomeBothUnavailable
		log.Error("Both primary and replica databases are unavailable",
			zap.String("secondary_status", secondary.State))
		fc.alert(ctx, log, cfg, res, bothDownAlert(cfg, primary, secondary))
		return
	}

	fc.transition(log, res, StatePromoting)
	log.Info("Replica available, promoting read replica",
		zap.String("identifier", cfg.Secondary.Identifier))

	if err := fc.promote(ctx, cfg.Secondary); err != nil {
		fc.transition(log, res, StateErrored)
		res.Outcome = OutcomeCheckError
		res.Err = err
		log.Error("Replica promotion rejected", zap.Error(err))
		fc.alert(ctx, log, cfg, res, promotionFailedAlert(cfg, primary, err))
		return
	}

	res.Promoted = true
	fc.transition(log, res, StateFailedOver)
	res.Outcome = OutcomeFailedOverToSecondary
	log.Info("Promotion of replica accepted",
		zap.String("identifier", cfg.Secondary.Identifier))
	fc.alert(ctx, log, cfg, res, failoverAlert(cfg, primary))
}

func (fc *FailoverController) transition(log *zap.Logger, res *Result, to string) {
	log.Debug("State transition", zap.String("from", res.State), zap.String("to", to))
	stateTransitionsTotal.WithLabelValues(res.State, to).Inc()
	res.State = to
}

func (fc *FailoverController) describe(ctx context.Context, cp DatabaseControlPlane, id DatabaseIdentity) (DatabaseStatus, error) {
	start := time.Now()
	status, err := cp.DescribeStatus(ctx, id.Identifier)
	statusQueryDuration.WithLabelValues(id.Region).Observe(time.Since(start).Seconds())
	if err != nil {
		return DatabaseStatus{}, &QueryFailedError{Identity: id, Err: err}
	}
	return status, nil
}

func (fc *FailoverController) promote(ctx context.Context, id DatabaseIdentity) error {
	if err := fc.secondary.PromoteReplica(ctx, id.Identifier); err != nil {
		promotionsTotal.WithLabelValues("rejected").Inc()
		return &PromotionRejectedError{Identity: id, Err: err}
	}
	promotionsTotal.WithLabelValues("accepted").Inc()
	return nil
}

// alert hands msg to the notifier. The outcome is already fixed, so a
// delivery failure is only logged.
func (fc *FailoverController) alert(ctx context.Context, log *zap.Logger, cfg FailoverConfig, res *Result, msg AlertMessage) {
	res.AlertSubject = msg.Subject
	if err := fc.notifier.Send(ctx, cfg.AlertDestination, msg); err != nil {
		alertsTotal.WithLabelValues("failed").Inc()
		derr := &DeliveryFailedError{Destination: cfg.AlertDestination, Err: err}
		log.Warn("Alert delivery failed", zap.String("subject", msg.Subject), zap.Error(derr))
		return
	}
	alertsTotal.WithLabelValues("sent").Inc()
	res.AlertDelivered = true
	log.Info("Alert sent", zap.String("subject", msg.Subject))
}

func (fc *FailoverController) record(ctx context.Context, log *zap.Logger, cfg FailoverConfig, res Result) {
	run := Run{Config: cfg, Result: res}
	for _, r := range fc.recorders {
		if err := r.Record(ctx, run); err != nil {
			log.Warn("Failed to record failover run", zap.Error(err))
		}
	}
}

func failoverAlert(cfg FailoverConfig, primary DatabaseStatus) AlertMessage {
	return AlertMessage{
		Subject: SubjectFailoverTriggered,
		Body: fmt.Sprintf(
			"Primary DB is down. Promoted the cross-region read replica.\n\n"+
				"Primary: %s (status: %s)\nPromoted replica: %s%s",
			cfg.Primary, primary.State, cfg.Secondary, endpointSuffix(cfg.Secondary)),
	}
}

func bothDownAlert(cfg FailoverConfig, primary, secondary DatabaseStatus) AlertMessage {
	return AlertMessage{
		Subject: SubjectAllInstancesDown,
		Body: fmt.Sprintf(
			"Both Primary and Replica RDS instances are unavailable.\n\n"+
				"Primary: %s (status: %s)\nReplica: %s (status: %s)",
			cfg.Primary, primary.State, cfg.Secondary, secondary.Describe()),
	}
}

func promotionFailedAlert(cfg FailoverConfig, primary DatabaseStatus, err error) AlertMessage {
	return AlertMessage{
		Subject: SubjectPromotionFailed,
		Body: fmt.Sprintf(
			"Primary DB is down and promotion of the cross-region read replica failed.\n\n"+
				"Primary: %s (status: %s)\nReplica: %s\nError: %v",
			cfg.Primary, primary.State, cfg.Secondary, err),
	}
}

func endpointSuffix(id DatabaseIdentity) string {
	if id.Endpoint == "" {
		return ""
	}
	return "\nEndpoint: " + id.Endpoint
}
