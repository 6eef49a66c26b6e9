package bootstrap

import (
	"fmt"

	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	"github.com/edgareichner01-sys/bot-rdv/internal/availability"
	"github.com/edgareichner01-sys/bot-rdv/internal/calendar"
	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/internal/session"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// EngineParts are the already-built collaborators of the conversation engine.
// Calendar, LLM, Notifier and Metrics may be nil.
type EngineParts struct {
	Tenants      conversation.TenantConfigs
	Sessions     session.Store
	Appointments *appointments.Service
	Calendar     *calendar.Service
	LLM          conversation.LLMClient
	Notifier     conversation.BookingNotifier
	Metrics      conversation.Metrics
}

// BuildEngine assembles the availability oracle, the classifier and the engine.
func BuildEngine(cfg *appconfig.Config, parts EngineParts, logger *logging.Logger) (*conversation.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if parts.Appointments == nil {
		return nil, fmt.Errorf("bootstrap: appointment service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	deps := conversation.EngineDeps{
		Tenants:      parts.Tenants,
		Sessions:     parts.Sessions,
		Appointments: parts.Appointments,
		Classifier:   conversation.NewLLMClassifier(parts.LLM, cfg.BedrockModelID, cfg.LLMTimeout, logger),
		Notifier:     parts.Notifier,
		Metrics:      parts.Metrics,
		Logger:       logger,
	}
	// Interface fields stay nil unless the calendar is really configured.
	if parts.Calendar != nil {
		deps.Availability = availability.NewOracle(parts.Appointments, parts.Calendar, cfg.AvailabilityTimeout, logger)
		deps.Calendar = parts.Calendar
	} else {
		deps.Availability = availability.NewOracle(parts.Appointments, nil, cfg.AvailabilityTimeout, logger)
	}

	engine, err := conversation.NewEngine(deps, conversation.EngineConfig{
		ProbeStep: cfg.SlotProbeStep,
		MaxProbes: cfg.SlotProbeMax,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build engine: %w", err)
	}
	return engine, nil
}
