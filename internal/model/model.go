// Package model содержит доменные сущности консоли партнёра.
package model

import "time"

// Role описывает роль аутентифицированного пользователя портала.
type Role string

const (
	RolePartner Role = "PARTNER"
	RoleAdmin   Role = "ADMIN"
	RoleOther   Role = "OTHER"
)

// In сообщает, входит ли роль в список разрешённых.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// Credential содержит учётные данные текущей сессии оператора.
// В системе существует не более одного живого экземпляра: отсутствие
// учётных данных означает, что оператор не авторизован.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Role         Role   `json:"role"`
}

// ManagedSpace описывает пространство, закреплённое за партнёром.
// Данные принадлежат бэкенду и читаются консолью по запросу.
type ManagedSpace struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Address          string `json:"address"`
	PayoutPerCheckin int64  `json:"payout_per_checkin"`
	Capacity         int    `json:"capacity"`
	OperatingHours   string `json:"operating_hours"`
}

// CodeSource описывает канал, из которого получен код участника.
type CodeSource string

const (
	SourceManual CodeSource = "MANUAL"
	SourceCamera CodeSource = "CAMERA"
)

// CandidateCode — код участника, готовый к одной попытке проверки.
// Сущность эфемерна и никогда не сохраняется.
type CandidateCode struct {
	Value      string     `json:"value"`
	Source     CodeSource `json:"source"`
	CapturedAt time.Time  `json:"captured_at"`
}

// ResultStatus описывает итог попытки проверки кода.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "SUCCESS"
	StatusFailure ResultStatus = "FAILURE"
)

// ReasonUnavailable — код причины отказа при транспортном сбое на пути
// к удалённому сервису проверки.
const ReasonUnavailable = "UNAVAILABLE"

// Member содержит данные участника, возвращённые при успешной проверке.
type Member struct {
	MemberName         string `json:"member_name"`
	PlanName           string `json:"plan_name"`
	RemainingAllowance int    `json:"remaining_allowance"`
}

// Reason содержит причину отказа в проверке кода.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult — итог одной попытки проверки: либо участник,
// либо причина отказа. Хранится только до сброса оператором.
type ValidationResult struct {
	Status ResultStatus `json:"status"`
	Member *Member      `json:"member,omitempty"`
	Reason *Reason      `json:"reason,omitempty"`
}

// CheckInRecord — неизменяемая запись о посещении, принадлежащая бэкенду.
// Консоль только читает и агрегирует такие записи.
type CheckInRecord struct {
	ID        string    `json:"id"`
	MemberRef string    `json:"member_ref"`
	SpaceRef  string    `json:"space_ref"`
	Timestamp time.Time `json:"timestamp"`
}
