package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	"github.com/edgareichner01-sys/bot-rdv/internal/availability"
	"github.com/edgareichner01-sys/bot-rdv/internal/calendar"
	"github.com/edgareichner01-sys/bot-rdv/internal/notify"
	"github.com/edgareichner01-sys/bot-rdv/internal/session"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Status tells the transport whether the assistant is waiting for more input.
type Status string

const (
	StatusOK        Status = "ok"
	StatusNeedsInfo Status = "needs_info"
)

// Reply is the outcome of one turn. Text is always a user-facing sentence.
type Reply struct {
	Text   string `json:"reply"`
	Status Status `json:"status"`
}

// MessageRequest is one inbound chat message.
type MessageRequest struct {
	TenantID string
	UserID   string
	Message  string
	History  []ChatMessage
}

// TenantConfigs resolves per-tenant settings.
type TenantConfigs interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
}

// AppointmentStore commits bookings idempotently. On a slot conflict it
// returns the existing row with created=false. Release frees the user's own
// row for a booking that was never finished.
type AppointmentStore interface {
	Book(ctx context.Context, req appointments.BookRequest) (*appointments.Appointment, bool, error)
	Release(ctx context.Context, tenantID, userID, date, tm string) error
}

// AvailabilityChecker is the combined local + calendar conflict check.
type AvailabilityChecker interface {
	Check(ctx context.Context, q availability.Query) (bool, error)
}

// EventCreator writes the booking to the tenant's external calendar.
type EventCreator interface {
	CreateEvent(ctx context.Context, req calendar.EventRequest) (string, error)
}

// BookingNotifier tells the business owner about a committed booking.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, b notify.Booking) error
}

// Metrics receives per-turn observations.
type Metrics interface {
	ObserveTurn(stage, status string, seconds float64)
	ObserveClassification(source, intent string)
	ObserveBooking(outcome string)
}

// EngineDeps are the engine's collaborators. Calendar, Notifier and Metrics are optional.
type EngineDeps struct {
	Tenants      TenantConfigs
	Sessions     session.Store
	Appointments AppointmentStore
	Availability AvailabilityChecker
	Calendar     EventCreator
	Classifier   Classifier
	Notifier     BookingNotifier
	Metrics      Metrics
	Logger       *logging.Logger
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	// ProbeStep and MaxProbes control the search for an alternative slot
	// after a conflict.
	ProbeStep time.Duration
	MaxProbes int
	Now       func() time.Time
}

const (
	defaultProbeStep = 60 * time.Minute
	defaultMaxProbes = 4
)

// Engine runs the booking state machine, one turn per message.
type Engine struct {
	tenants      TenantConfigs
	sessions     session.Store
	appointments AppointmentStore
	availability AvailabilityChecker
	calendar     EventCreator
	classifier   Classifier
	notifier     BookingNotifier
	metrics      Metrics
	logger       *logging.Logger
	tracer       trace.Tracer

	probeStep time.Duration
	maxProbes int
	now       func() time.Time
}

// NewEngine validates dependencies and applies defaults.
func NewEngine(deps EngineDeps, cfg EngineConfig) (*Engine, error) {
	switch {
	case deps.Tenants == nil:
		return nil, errors.New("conversation: tenant configs required")
	case deps.Sessions == nil:
		return nil, errors.New("conversation: session store required")
	case deps.Appointments == nil:
		return nil, errors.New("conversation: appointment store required")
	case deps.Availability == nil:
		return nil, errors.New("conversation: availability checker required")
	}
	if deps.Classifier == nil {
		deps.Classifier = NewLLMClassifier(nil, "", 0, deps.Logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.ProbeStep <= 0 {
		cfg.ProbeStep = defaultProbeStep
	}
	if cfg.MaxProbes < 0 {
		cfg.MaxProbes = 0
	} else if cfg.MaxProbes == 0 {
		cfg.MaxProbes = defaultMaxProbes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		tenants:      deps.Tenants,
		sessions:     deps.Sessions,
		appointments: deps.Appointments,
		availability: deps.Availability,
		calendar:     deps.Calendar,
		classifier:   deps.Classifier,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		tracer:       otel.Tracer("botrdv.internal.conversation"),
		probeStep:    cfg.ProbeStep,
		maxProbes:    cfg.MaxProbes,
		now:          cfg.Now,
	}, nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveTurn(string, string, float64)  {}
func (noopMetrics) ObserveClassification(string, string) {}
func (noopMetrics) ObserveBooking(string)                {}

// turn carries the state of one HandleMessage call.
type turn struct {
	req     MessageRequest
	cfg     *tenant.Config
	sess    *session.Session
	now     time.Time
	intent  Intent
	answer  string
	changed bool
	// slotMentioned is set when the message carried a date or a time.
	slotMentioned bool
	log           *logging.Logger
}

// HandleMessage processes one message and returns the reply. The error is
// for logging only: the reply is usable even when it is non-nil.
func (e *Engine) HandleMessage(ctx context.Context, req MessageRequest) (Reply, error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "conversation.handle_message", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
	))
	defer span.End()

	stage := string(session.StageIdle)
	reply, err := e.handle(ctx, req, &stage)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("stage", stage), attribute.String("status", string(reply.Status)))
	e.metrics.ObserveTurn(stage, string(reply.Status), time.Since(started).Seconds())
	return reply, err
}

func (e *Engine) handle(ctx context.Context, req MessageRequest, stageOut *string) (Reply, error) {
	log := e.logger.With("tenant_id", req.TenantID, "user_id", req.UserID)

	cfg, err := e.tenants.Get(ctx, req.TenantID)
	if err != nil {
		log.Error("failed to load tenant config", "error", err)
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, fmt.Errorf("conversation: tenant config: %w", err)
	}

	unlock, err := e.sessions.Lock(ctx, req.TenantID, req.UserID)
	if err != nil {
		log.Warn("session lock not acquired", "error", err)
		if errors.Is(err, session.ErrLockTimeout) {
			return Reply{Text: replyBusy, Status: StatusNeedsInfo}, err
		}
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	sess, err := e.sessions.Get(ctx, req.TenantID, req.UserID)
	if err != nil {
		log.Error("failed to load session", "error", err)
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, fmt.Errorf("conversation: load session: %w", err)
	}
	defer func() { *stageOut = string(sess.Stage) }()

	t := &turn{
		req:  req,
		cfg:  cfg,
		sess: sess,
		now:  e.now().In(cfg.Location()),
		log:  log,
	}
	if err := e.understand(ctx, t); err != nil {
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, err
	}

	if err := e.releaseAbandoned(ctx, t); err != nil {
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, err
	}

	if t.intent == IntentCancel {
		if err := e.sessions.Clear(ctx, req.TenantID, req.UserID); err != nil {
			log.Error("failed to clear session on cancel", "error", err)
			return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, fmt.Errorf("conversation: clear session: %w", err)
		}
		sess.Reset()
		log.Info("booking request cancelled")
		return Reply{Text: replyCancelled, Status: StatusOK}, nil
	}

	affirmative := isAffirmative(req.Message) || t.intent == IntentConfirm

	if sess.Stage == session.StageConfirming {
		switch {
		case t.changed:
			sess.Stage = session.StageCollecting
			return e.collect(ctx, t)
		case affirmative:
			return e.commit(ctx, t)
		default:
			return Reply{Text: replyConfirmPrompt(sess.Draft), Status: StatusNeedsInfo}, nil
		}
	}

	if t.intent == IntentFAQ && !(sess.Stage == session.StageCollecting && t.changed) {
		return e.answerFAQ(t), nil
	}

	// A bare "Paul, 2025-06-10, 14:00" is a booking even when the classifier saw no intent.
	startsBooking := t.intent == IntentBook || (t.intent == IntentOther && t.slotMentioned)
	if startsBooking || sess.Stage == session.StageCollecting {
		if sess.Stage == session.StageCollecting && sess.SuggestedTime != "" && !t.changed && affirmative {
			sess.Draft.Time = sess.SuggestedTime
			sess.SuggestedTime = ""
		}
		sess.Stage = session.StageCollecting
		return e.collect(ctx, t)
	}

	return Reply{Text: replyHelp, Status: StatusOK}, nil
}

// understand classifies the message, runs the extractor alongside, merges
// the proposals into the draft and persists it.
func (e *Engine) understand(ctx context.Context, t *turn) error {
	classified := make(chan Classification, 1)
	go func() {
		classified <- e.classifier.Classify(ctx, ClassifyRequest{
			Message:      t.req.Message,
			History:      t.req.History,
			FAQ:          t.cfg.FAQ,
			BusinessName: t.cfg.Name,
			Now:          t.now,
		})
	}()
	fields := ExtractFields(t.req.Message, t.now)
	c := <-classified
	e.metrics.ObserveClassification(c.Source, string(c.Intent))

	t.intent = resolveIntent(c.Intent, t.req.Message)
	t.answer = c.Answer

	proposal := mergeProposals(c, fields, t.sess.Stage)
	t.slotMentioned = proposal.Date != "" || proposal.Time != ""
	prevTime := t.sess.Draft.Time
	t.changed = t.sess.Draft.Apply(proposal)
	if t.sess.Draft.Time != prevTime {
		t.sess.SuggestedTime = ""
	}
	t.log.Debug("message understood",
		"intent", t.intent,
		"source", c.Source,
		"stage", t.sess.Stage,
		"draft_changed", t.changed,
	)

	if !t.changed && t.sess.Stage == session.StageIdle {
		return nil
	}
	return e.save(ctx, t)
}

// releaseAbandoned frees the row written by a half-finished commit once the
// user cancels or the draft no longer matches it. Held stays set until the
// release succeeds so a failed release is retried on the next turn.
func (e *Engine) releaseAbandoned(ctx context.Context, t *turn) error {
	held := t.sess.Held
	if held == nil || (t.intent != IntentCancel && *held == t.sess.Draft) {
		return nil
	}
	if err := e.appointments.Release(ctx, t.req.TenantID, t.req.UserID, held.Date, held.Time); err != nil {
		t.log.Error("failed to release pending appointment", "date", held.Date, "time", held.Time, "error", err)
		return fmt.Errorf("conversation: release pending appointment: %w", err)
	}
	t.log.Info("pending appointment released", "date", held.Date, "time", held.Time)
	e.metrics.ObserveBooking("released")
	t.sess.Held = nil
	t.sess.PendingCommit = false
	return e.save(ctx, t)
}

// resolveIntent lets explicit cancel and booking keywords override a
// classifier that answered OTHER or FAQ. Cancellation always wins.
func resolveIntent(classified Intent, message string) Intent {
	if classified == IntentCancel || hasCancelKeyword(message) {
		return IntentCancel
	}
	if (classified == IntentOther || classified == IntentFAQ) && hasBookKeyword(message) {
		return IntentBook
	}
	return classified
}

// mergeProposals prefers well-formed classifier values and fills the rest
// from the extractor. While confirming, a bare short message is not taken
// as a new name.
func mergeProposals(c Classification, f Fields, stage session.Stage) session.Draft {
	var p session.Draft
	if c.Source == SourceLLM {
		p.Name = c.Name
		if IsValidDate(c.Date) {
			p.Date = c.Date
		}
		if IsValidTime(c.Time) {
			p.Time = c.Time
		}
	}
	if p.Name == "" && !(f.nameGuessed && stage == session.StageConfirming) {
		p.Name = f.Name
	}
	if p.Date == "" {
		p.Date = f.Date
	}
	if p.Time == "" {
		p.Time = f.Time
	}
	return p
}

func (e *Engine) answerFAQ(t *turn) Reply {
	if t.answer != "" {
		return Reply{Text: t.answer, Status: StatusOK}
	}
	if answer, ok := matchFAQ(t.cfg, t.req.Message); ok {
		return Reply{Text: answer, Status: StatusOK}
	}
	return Reply{Text: replyFAQDisambiguate, Status: StatusOK}
}

// collect validates the draft in order: presence, format, past, opening
// hours, availability. Passing every check moves to confirming.
func (e *Engine) collect(ctx context.Context, t *turn) (Reply, error) {
	sess := t.sess
	sess.Stage = session.StageCollecting

	if sess.Draft.Date != "" && !IsValidDate(sess.Draft.Date) {
		sess.Draft.Date = ""
	}
	if sess.Draft.Time != "" && !IsValidTime(sess.Draft.Time) {
		sess.Draft.Time = ""
	}

	verdict, reply, err := e.vetSlot(ctx, t, replySlotTaken)
	switch {
	case err != nil:
		reply = Reply{Text: replyCheckFailed, Status: StatusNeedsInfo}
	case verdict == slotFree:
		sess.Stage = session.StageConfirming
		sess.SuggestedTime = ""
		reply = Reply{Text: replyRecap(sess.Draft), Status: StatusNeedsInfo}
	}
	if saveErr := e.save(ctx, t); saveErr != nil {
		return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, saveErr
	}
	return reply, err
}

type slotVerdict int

const (
	slotFree slotVerdict = iota
	slotRejected
	slotTaken
)

// vetSlot runs the business rules on the draft. A rejection comes with the
// reply to send; for a taken slot the nearest free alternative is remembered
// as SuggestedTime. err is an availability failure (fail closed).
func (e *Engine) vetSlot(ctx context.Context, t *turn, taken func(alt string) string) (slotVerdict, Reply, error) {
	d := t.sess.Draft
	if missing := d.Missing(); len(missing) > 0 {
		return slotRejected, Reply{Text: replyMissing(missing), Status: StatusNeedsInfo}, nil
	}
	if IsPast(d.Date, d.Time, t.now) {
		return slotRejected, Reply{Text: replyPast, Status: StatusNeedsInfo}, nil
	}
	if !InOpeningHours(t.cfg.BusinessHours, d.Date, d.Time) {
		return slotRejected, Reply{Text: replyOutsideHours(t.cfg.BusinessHours, d.Date), Status: StatusNeedsInfo}, nil
	}

	free, err := e.availability.Check(ctx, e.slotQuery(t, d.Time))
	if err != nil {
		t.log.Warn("availability check failed", "date", d.Date, "time", d.Time, "error", err)
		return slotRejected, Reply{}, fmt.Errorf("conversation: availability: %w", err)
	}
	if free {
		return slotFree, Reply{}, nil
	}

	alt := e.nextFreeSlot(ctx, t)
	t.sess.SuggestedTime = alt
	return slotTaken, Reply{Text: taken(alt), Status: StatusNeedsInfo}, nil
}

func (e *Engine) slotQuery(t *turn, tm string) availability.Query {
	q := availability.Query{
		TenantID:   t.req.TenantID,
		Date:       t.sess.Draft.Date,
		Time:       tm,
		Location:   t.cfg.Location(),
		Duration:   t.cfg.AppointmentDuration(),
		CalendarID: t.cfg.CalendarID,
	}
	if t.sess.PendingCommit {
		q.OwnUserID = t.req.UserID
	}
	return q
}

// nextFreeSlot probes later times on the same day. Every candidate must be
// in the future, inside opening hours and free. Probing stops at the first
// availability error so a failing backend is not hammered.
func (e *Engine) nextFreeSlot(ctx context.Context, t *turn) string {
	start, ok := slotTime(t.sess.Draft.Date, t.sess.Draft.Time, t.now.Location())
	if !ok {
		return ""
	}
	for i := 1; i <= e.maxProbes; i++ {
		candidate := start.Add(time.Duration(i) * e.probeStep)
		if candidate.Format(dateLayout) != t.sess.Draft.Date {
			return ""
		}
		tm := candidate.Format(timeLayout)
		if IsPast(t.sess.Draft.Date, tm, t.now) || !InOpeningHours(t.cfg.BusinessHours, t.sess.Draft.Date, tm) {
			continue
		}
		free, err := e.availability.Check(ctx, e.slotQuery(t, tm))
		if err != nil {
			t.log.Warn("alternative slot probe failed", "time", tm, "error", err)
			return ""
		}
		if free {
			return tm
		}
	}
	return ""
}

// commit books a confirmed draft: re-check, local insert, calendar event,
// then clear. A failure after the insert keeps the session with
// PendingCommit set so the next "yes" resumes without a duplicate row.
func (e *Engine) commit(ctx context.Context, t *turn) (Reply, error) {
	sess := t.sess
	d := sess.Draft

	if !d.Complete() || !IsValidDate(d.Date) || !IsValidTime(d.Time) {
		return e.collect(ctx, t)
	}

	verdict, reply, err := e.vetSlot(ctx, t, replySlotJustTaken)
	if err != nil {
		// Stay in confirming so a plain "yes" retries the check.
		return Reply{Text: replyCheckFailed, Status: StatusNeedsInfo}, err
	}
	if verdict != slotFree {
		sess.Stage = session.StageCollecting
		if verdict == slotTaken {
			e.metrics.ObserveBooking("conflict")
		}
		if saveErr := e.save(ctx, t); saveErr != nil {
			return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, saveErr
		}
		return reply, nil
	}

	appt, created, err := e.appointments.Book(ctx, appointments.BookRequest{
		TenantID: t.req.TenantID,
		UserID:   t.req.UserID,
		Name:     d.Name,
		Date:     d.Date,
		Time:     d.Time,
	})
	if err != nil {
		e.metrics.ObserveBooking("store_error")
		t.log.Error("failed to insert appointment", "date", d.Date, "time", d.Time, "error", err)
		return Reply{Text: replyCommitFailed, Status: StatusNeedsInfo}, fmt.Errorf("conversation: book: %w", err)
	}
	resumed := !created && sess.PendingCommit && appt.UserID == t.req.UserID
	if !created && !resumed {
		e.metrics.ObserveBooking("conflict")
		t.log.Info("slot taken between check and commit", "date", d.Date, "time", d.Time)
		sess.Stage = session.StageCollecting
		sess.SuggestedTime = e.nextFreeSlot(ctx, t)
		reply := Reply{Text: replySlotJustTaken(sess.SuggestedTime), Status: StatusNeedsInfo}
		if saveErr := e.save(ctx, t); saveErr != nil {
			return Reply{Text: replyTechnical, Status: StatusNeedsInfo}, saveErr
		}
		return reply, nil
	}
	if created {
		held := d
		sess.PendingCommit = true
		sess.Held = &held
		if err := e.save(ctx, t); err != nil {
			// Without the session marker nothing could release the row later.
			if relErr := e.appointments.Release(ctx, t.req.TenantID, t.req.UserID, d.Date, d.Time); relErr != nil {
				t.log.Error("failed to release unmarked appointment", "date", d.Date, "time", d.Time, "error", relErr)
			}
			e.metrics.ObserveBooking("store_error")
			return Reply{Text: replyCommitFailed, Status: StatusNeedsInfo}, err
		}
	}

	link, err := e.createEvent(ctx, t)
	if err != nil {
		e.metrics.ObserveBooking("calendar_error")
		t.log.Error("calendar event creation failed, keeping session for retry", "date", d.Date, "time", d.Time, "error", err)
		return Reply{Text: replyCommitFailed, Status: StatusNeedsInfo}, err
	}

	if err := e.sessions.Clear(ctx, t.req.TenantID, t.req.UserID); err != nil {
		t.log.Warn("failed to clear session after booking", "error", err)
	}
	sess.Reset()
	e.metrics.ObserveBooking("committed")
	t.log.Info("appointment committed", "date", d.Date, "time", d.Time, "resumed", resumed)

	e.notifyOwner(ctx, t, d, link)
	return Reply{Text: replyConfirmed(d, t.cfg.Name), Status: StatusOK}, nil
}

// createEvent returns "" without error when the tenant has no linked calendar.
func (e *Engine) createEvent(ctx context.Context, t *turn) (string, error) {
	if e.calendar == nil {
		return "", nil
	}
	d := t.sess.Draft
	start, ok := slotTime(d.Date, d.Time, t.cfg.Location())
	if !ok {
		return "", fmt.Errorf("conversation: malformed slot %s %s", d.Date, d.Time)
	}
	link, err := e.calendar.CreateEvent(ctx, calendar.EventRequest{
		TenantID:    t.req.TenantID,
		CalendarID:  t.cfg.CalendarID,
		Summary:     "Appointment - " + d.Name,
		Description: fmt.Sprintf("Booked via chat assistant.\nCustomer: %s\nChat user: %s", d.Name, t.req.UserID),
		Start:       start,
		Duration:    t.cfg.AppointmentDuration(),
	})
	if errors.Is(err, calendar.ErrNotConnected) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("conversation: create calendar event: %w", err)
	}
	return link, nil
}

func (e *Engine) notifyOwner(ctx context.Context, t *turn, d session.Draft, link string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.NotifyBooking(ctx, notify.Booking{
		TenantID:     t.req.TenantID,
		BusinessName: t.cfg.Name,
		To:           t.cfg.NotifyEmail,
		CustomerName: d.Name,
		Date:         d.Date,
		Time:         d.Time,
		CalendarLink: link,
	})
	if err != nil {
		t.log.Warn("booking notification failed", "error", err)
	}
}

func (e *Engine) save(ctx context.Context, t *turn) error {
	t.sess.UpdatedAt = t.now.UTC()
	if err := e.sessions.Save(ctx, t.sess); err != nil {
		t.log.Error("failed to save session", "stage", t.sess.Stage, "error", err)
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}
