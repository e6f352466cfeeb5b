// Package session реализует охрану сессии оператора: проверку наличия
// учётных данных и роли перед доступом к защищённым ресурсам консоли.
package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workspace-africa/partner-console/internal/credential"
	"github.com/workspace-africa/partner-console/internal/model"
)

// LoginPath — точка входа, на которую перенаправляется неавторизованный
// оператор.
const LoginPath = "/login"

// Decision — решение охраны сессии по конкретному запросу.
type Decision string

const (
	DecisionAllow    Decision = "ALLOW"
	DecisionRedirect Decision = "REDIRECT"
)

// Guard проверяет сессию оператора по содержимому хранилища учётных данных.
// Проверка выполняется один раз на активацию защищённого ресурса.
type Guard struct {
	store *credential.Store
}

// NewGuard создаёт охрану сессии поверх указанного хранилища.
func NewGuard(store *credential.Store) *Guard {
	return &Guard{store: store}
}

// Check решает, допускать ли оператора к ресурсу, требующему одной из
// указанных ролей. Несовпадение роли трактуется как устаревшая или
// подделанная сессия: учётные данные очищаются, чтобы исключить
// бесконечные перенаправления.
func (g *Guard) Check(required ...model.Role) Decision {
	cred, ok := g.store.Get()
	if !ok {
		return DecisionRedirect
	}

	if tokenExpired(cred.AccessToken) {
		_ = g.store.Clear()
		return DecisionRedirect
	}

	if len(required) > 0 && !cred.Role.In(required...) {
		_ = g.store.Clear()
		return DecisionRedirect
	}

	return DecisionAllow
}

// Invalidate — глобальный обработчик ответа 401: очищает учётные данные
// независимо от того, какой компонент получил отказ. Идемпотентен.
func (g *Guard) Invalidate() {
	_ = g.store.Clear()
}

// Middleware возвращает HTTP middleware, закрывающее группу маршрутов
// требованием одной из указанных ролей. При отказе клиенту возвращается
// 401 с адресом точки входа.
func (g *Guard) Middleware(required ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Check(required...) != DecisionAllow {
				WriteRedirect(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRedirect отправляет клиенту указание перейти на точку входа.
func WriteRedirect(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"redirect": LoginPath})
}

// tokenExpired локально проверяет срок действия токена доступа без
// проверки подписи: подпись валидирует портал, здесь важен только exp.
// Непрозрачные токены без exp считаются действующими до ответа 401.
func tokenExpired(access string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
