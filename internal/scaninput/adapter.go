// Package scaninput объединяет два канала получения кода участника —
// ручной ввод и распознавание QR камерой — в один упорядоченный поток
// кандидатов для проверки.
package scaninput

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/workspace-africa/partner-console/internal/model"
	"github.com/workspace-africa/partner-console/internal/validation"
)

// ErrInvalidFormat возвращается при ручном вводе кода неверного формата.
// Такой ввод не порождает кандидата и сетевых вызовов.
var ErrInvalidFormat = errors.New("code must be exactly six digits")

// ErrBusy возвращается, когда проверка предыдущего кода ещё не завершена.
var ErrBusy = errors.New("validation in progress")

// Adapter — единственный производитель кандидатов для валидатора.
//
// Инварианты:
//   - в полёте не более одного кандидата; новые эмиссии во время проверки
//     отбрасываются, а не ставятся в очередь;
//   - удерживаемый в кадре QR не порождает повторных эмиссий, пока не
//     завершится полный цикл проверки того же значения.
type Adapter struct {
	mu sync.Mutex

	codes  chan model.CandidateCode
	closed bool

	inFlight    bool
	lastEmitted string
	repeatArmed bool
}

// NewAdapter создаёт адаптер с единственным потребителем потока кандидатов.
func NewAdapter() *Adapter {
	return &Adapter{
		codes: make(chan model.CandidateCode, 1),
	}
}

// Codes возвращает поток кандидатов. Канал закрывается вызовом Close.
func (a *Adapter) Codes() <-chan model.CandidateCode {
	return a.codes
}

// SubmitManual принимает код, введённый оператором вручную и явно
// отправленный. Частичный или неформатный ввод никогда не эмитится.
func (a *Adapter) SubmitManual(value string) error {
	value = strings.TrimSpace(value)
	if !validation.IsValidCheckinCode(value) {
		return ErrInvalidFormat
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrBusy
	}
	if a.inFlight {
		return ErrBusy
	}

	a.emitLocked(value, model.SourceManual)
	return nil
}

// SubmitCameraDecode принимает очередное значение, распознанное камерой.
// Шум распознавания и повторы удерживаемого кода отбрасываются молча.
func (a *Adapter) SubmitCameraDecode(value string) {
	value = strings.TrimSpace(value)
	if !validation.IsValidCheckinCode(value) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.inFlight {
		return
	}
	if value == a.lastEmitted && !a.repeatArmed {
		return
	}

	a.emitLocked(value, model.SourceCamera)
}

// RoundTripDone — подтверждение потребителя о завершении полного цикла
// проверки. Снимает блокировку эмиссий и разрешает повтор того же значения.
func (a *Adapter) RoundTripDone() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inFlight = false
	a.repeatArmed = true
}

// Close останавливает поток кандидатов. Эмиссии после закрытия
// отбрасываются: камера не должна писать в мёртвый валидатор.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	close(a.codes)
}

func (a *Adapter) emitLocked(value string, source model.CodeSource) {
	candidate := model.CandidateCode{
		Value:      value,
		Source:     source,
		CapturedAt: time.Now(),
	}

	select {
	case a.codes <- candidate:
		a.inFlight = true
		a.lastEmitted = value
		a.repeatArmed = false
	default:
		// Потребитель ещё не забрал предыдущего кандидата: отбрасываем.
	}
}
