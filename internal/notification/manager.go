package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
)

// Broadcast modes.
const (
	ModeSingle    = "single"
	ModeAllActive = "all_active"
)

// UserDirectory enumerates active subscriber recipients. The snapshot is
// taken per delivery so mid-batch subscription changes apply to the next
// signal, never mid-fanout.
type UserDirectory interface {
	ActiveRecipients(ctx context.Context) ([]string, error)
}

// Manager fans messages out across notifiers and recipients. Delivery
// failures are counted per recipient and never abort the batch.
type Manager struct {
	notifiers   []Notifier
	directory   UserDirectory
	mode        string
	defaultChat string
	log         zerolog.Logger
}

func NewManager(mode, defaultChat string, directory UserDirectory, log zerolog.Logger) *Manager {
	if mode == "" {
		mode = ModeSingle
	}
	return &Manager{
		mode:        mode,
		defaultChat: defaultChat,
		directory:   directory,
		log:         log,
	}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SendSignal formats and delivers a signal. It returns the delivered and
// failed recipient counts; err is set only when nothing could be sent at
// all.
func (m *Manager) SendSignal(ctx context.Context, sig *strategy.Signal) (int, int, error) {
	return m.deliver(ctx, FormatSignal(sig))
}

// SendSummary delivers the end-of-batch digest.
func (m *Manager) SendSummary(ctx context.Context, summary *pipeline.BatchSummary) error {
	delivered, failed, err := m.deliver(ctx, FormatSummary(summary))
	if err != nil {
		return err
	}
	if failed > 0 {
		m.log.Warn().Int("delivered", delivered).Int("failed", failed).Msg("summary delivery partially failed")
	}
	return nil
}

func (m *Manager) deliver(ctx context.Context, message string) (int, int, error) {
	recipients, err := m.recipients(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(recipients) == 0 {
		return 0, 0, fmt.Errorf("no recipients configured for mode %q", m.mode)
	}

	delivered, failed := 0, 0
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		for _, recipient := range recipients {
			if err := n.Send(ctx, recipient, message); err != nil {
				failed++
				m.log.Warn().Str("notifier", n.Name()).Str("recipient", recipient).Err(err).Msg("delivery failed")
				continue
			}
			delivered++
		}
	}

	if delivered == 0 && failed > 0 {
		return delivered, failed, fmt.Errorf("all %d deliveries failed", failed)
	}
	return delivered, failed, nil
}

func (m *Manager) recipients(ctx context.Context) ([]string, error) {
	if m.mode == ModeAllActive && m.directory != nil {
		recipients, err := m.directory.ActiveRecipients(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing subscribers: %w", err)
		}
		return recipients, nil
	}
	if m.defaultChat == "" {
		return nil, nil
	}
	return []string{m.defaultChat}, nil
}
