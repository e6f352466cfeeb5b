// Package validator реализует конечный автомат проверки кодов посещения:
// IDLE → VALIDATING → SUCCESS|FAILURE → (сброс оператором) → IDLE.
package validator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/workspace-africa/partner-console/internal/model"
	"github.com/workspace-africa/partner-console/internal/portal"
	"github.com/workspace-africa/partner-console/internal/scaninput"
)

// State — состояние автомата проверки.
type State string

const (
	StateIdle       State = "IDLE"
	StateValidating State = "VALIDATING"
	StateSuccess    State = "SUCCESS"
	StateFailure    State = "FAILURE"
)

// Verifier описывает контракт удалённой проверки кода участника.
type Verifier interface {
	ValidateCode(ctx context.Context, access, code, spaceID string) (*model.Member, error)
}

// CredentialSource отдаёт текущие учётные данные оператора.
type CredentialSource interface {
	Get() (model.Credential, bool)
}

// Snapshot — наблюдаемое состояние автомата для поверхности консоли.
type Snapshot struct {
	State  State                   `json:"state"`
	Code   *model.CandidateCode    `json:"code,omitempty"`
	Result *model.ValidationResult `json:"result,omitempty"`
}

// Machine владеет состоянием проверки кодов для одного сеанса сканирования.
// Пока автомат в VALIDATING, новые кандидаты отбрасываются: один
// одноразовый код не должен быть погашен дважды.
type Machine struct {
	input    *scaninput.Adapter
	verifier Verifier
	creds    CredentialSource
	spaceID  string

	onUnauthorized func()
	logger         *zap.Logger

	mu        sync.Mutex
	state     State
	candidate *model.CandidateCode
	result    *model.ValidationResult
	stopped   bool
	gen       uint64
}

// NewMachine создаёт автомат проверки, привязанный к пространству оператора.
// onUnauthorized вызывается при отказе аутентификации удалённым сервисом
// и обязан очистить сессию всей консоли.
func NewMachine(input *scaninput.Adapter, verifier Verifier, creds CredentialSource, spaceID string, onUnauthorized func(), logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		input:          input,
		verifier:       verifier,
		creds:          creds,
		spaceID:        spaceID,
		onUnauthorized: onUnauthorized,
		logger:         logger,
		state:          StateIdle,
	}
}

// Run потребляет поток кандидатов до закрытия адаптера или отмены контекста.
// Запускается в отдельной горутине один раз на сеанс сканирования.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case candidate, ok := <-m.input.Codes():
			if !ok {
				return
			}
			m.validate(ctx, candidate)
		}
	}
}

// Stop останавливает автомат. Ответ проверки, пришедший после остановки,
// не применяется к состоянию.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Reset — действие оператора «сканировать следующего»: терминальное
// состояние возвращается в IDLE, удержанные кандидат и результат очищаются.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSuccess && m.state != StateFailure {
		return
	}

	m.state = StateIdle
	m.candidate = nil
	m.result = nil
	m.gen++
}

// Snapshot возвращает копию текущего состояния автомата.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{State: m.state}
	if m.candidate != nil {
		c := *m.candidate
		snap.Code = &c
	}
	if m.result != nil {
		r := *m.result
		snap.Result = &r
	}
	return snap
}

func (m *Machine) validate(ctx context.Context, candidate model.CandidateCode) {
	m.mu.Lock()
	if m.stopped || m.state != StateIdle {
		// Кандидат пришёл в терминальном состоянии: отбрасываем,
		// но подтверждаем цикл, чтобы не заглушить поток навсегда.
		m.mu.Unlock()
		m.input.RoundTripDone()
		return
	}
	m.state = StateValidating
	c := candidate
	m.candidate = &c
	gen := m.gen
	m.mu.Unlock()

	attempt := uuid.NewString()
	m.logger.Info("validation started",
		zap.String("attempt", attempt),
		zap.String("source", string(candidate.Source)),
		zap.String("space", m.spaceID),
	)

	cred, ok := m.creds.Get()
	if !ok {
		// Сессия исчезла между активацией экрана и сканированием.
		m.discard(gen)
		m.input.RoundTripDone()
		if m.onUnauthorized != nil {
			m.onUnauthorized()
		}
		return
	}

	member, err := m.verifier.ValidateCode(ctx, cred.AccessToken, candidate.Value, m.spaceID)
	result, unauthorized := m.triage(member, err, attempt)

	if unauthorized {
		m.discard(gen)
		m.input.RoundTripDone()
		if m.onUnauthorized != nil {
			m.onUnauthorized()
		}
		return
	}

	m.apply(gen, result)
	m.input.RoundTripDone()
}

// triage превращает ответ удалённой проверки в результат для отображения.
func (m *Machine) triage(member *model.Member, err error, attempt string) (*model.ValidationResult, bool) {
	switch {
	case err == nil:
		m.logger.Info("validation succeeded",
			zap.String("attempt", attempt),
			zap.String("plan", member.PlanName),
		)
		return &model.ValidationResult{
			Status: model.StatusSuccess,
			Member: member,
		}, false

	case errors.Is(err, portal.ErrUnauthorized):
		m.logger.Warn("validation rejected by auth", zap.String("attempt", attempt))
		return nil, true

	default:
		var be *portal.BusinessError
		if errors.As(err, &be) {
			m.logger.Info("validation rejected",
				zap.String("attempt", attempt),
				zap.String("reason", be.ReasonCode),
			)
			return &model.ValidationResult{
				Status: model.StatusFailure,
				Reason: &model.Reason{Code: be.ReasonCode, Message: be.Message},
			}, false
		}

		m.logger.Warn("validation transport failure",
			zap.String("attempt", attempt),
			zap.Error(err),
		)
		return &model.ValidationResult{
			Status: model.StatusFailure,
			Reason: &model.Reason{
				Code:    model.ReasonUnavailable,
				Message: "validation service unavailable, try again",
			},
		}, false
	}
}

// apply переводит автомат в терминальное состояние, если за время проверки
// не случилось ни сброса, ни остановки.
func (m *Machine) apply(gen uint64, result *model.ValidationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.gen != gen || m.state != StateValidating {
		return
	}

	m.result = result
	if result.Status == model.StatusSuccess {
		m.state = StateSuccess
	} else {
		m.state = StateFailure
	}
}

// discard возвращает автомат в IDLE, не оставляя результата.
func (m *Machine) discard(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.state != StateValidating {
		return
	}
	m.state = StateIdle
	m.candidate = nil
	m.result = nil
}
