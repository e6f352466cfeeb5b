// Package dashboard агрегирует записи о посещениях для сводки партнёра.
// Чистое чтение и подсчёт: пакет ничего не изменяет и не ходит в сеть.
package dashboard

import (
	"time"

	"github.com/workspace-africa/partner-console/internal/model"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Window ограничивает период агрегации. Нулевая граница означает
// отсутствие ограничения с соответствующей стороны.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains сообщает, попадает ли момент времени в период.
func (w Window) Contains(ts time.Time) bool {
	if !w.From.IsZero() && ts.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Summary — сводка посещений за период. Выплата считается в минорных
// единицах валюты: количество посещений × ставка за посещение.
type Summary struct {
	Total           int            `json:"total"`
	ByDay           map[string]int `json:"by_day"`
	ByMonth         map[string]int `json:"by_month"`
	EstimatedPayout int64          `json:"estimated_payout"`
}

// Aggregate строит сводку по записям о посещениях. Пустой набор записей —
// штатная ситуация: возвращаются нулевые агрегаты, а не ошибка.
func Aggregate(records []model.CheckInRecord, window Window, payoutPerCheckin int64) Summary {
	summary := Summary{
		ByDay:   make(map[string]int),
		ByMonth: make(map[string]int),
	}

	for _, rec := range records {
		if !window.Contains(rec.Timestamp) {
			continue
		}
		summary.Total++
		summary.ByDay[rec.Timestamp.Format(dayLayout)]++
		summary.ByMonth[rec.Timestamp.Format(monthLayout)]++
	}

	summary.EstimatedPayout = int64(summary.Total) * payoutPerCheckin
	return summary
}
