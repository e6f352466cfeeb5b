// Package service реализует прикладную логику консоли партнёра:
// вход и выход оператора, жизненный цикл сеанса сканирования и сводку
// посещений.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/workspace-africa/partner-console/internal/credential"
	"github.com/workspace-africa/partner-console/internal/dashboard"
	"github.com/workspace-africa/partner-console/internal/model"
	"github.com/workspace-africa/partner-console/internal/portal"
	"github.com/workspace-africa/partner-console/internal/scaninput"
	"github.com/workspace-africa/partner-console/internal/session"
	"github.com/workspace-africa/partner-console/internal/validator"
)

// Ошибки прикладного уровня.
var (
	// ErrSessionExpired возвращается, когда портал отверг учётные данные:
	// слот уже очищен, оператору нужно войти заново.
	ErrSessionExpired = errors.New("session expired")
	// ErrRoleDenied возвращается при входе под аккаунтом без партнёрской роли.
	ErrRoleDenied = errors.New("account has no partner access")
	// ErrNoSpace возвращается, если за оператором не закреплено пространство.
	ErrNoSpace = errors.New("operator has no managed space")
	// ErrScannerActive возвращается при попытке запустить второй сеанс сканирования.
	ErrScannerActive = errors.New("scanner session already active")
	// ErrScannerInactive возвращается для операций сканирования без активного сеанса.
	ErrScannerInactive = errors.New("scanner session not active")
)

// Portal описывает контракт внешнего API портала, используемый сервисом.
type Portal interface {
	Authenticate(ctx context.Context, identifier, secret string) (portal.TokenPair, error)
	Register(ctx context.Context, name, email, secret string) error
	Profile(ctx context.Context, access string) (*portal.UserProfile, error)
	Space(ctx context.Context, access string) (*model.ManagedSpace, error)
	ValidateCode(ctx context.Context, access, code, spaceID string) (*model.Member, error)
	CheckIns(ctx context.Context, access string, from, to time.Time) ([]model.CheckInRecord, error)
}

// Service связывает хранилище учётных данных, охрану сессии и клиент
// портала в операции консоли.
type Service struct {
	portal Portal
	store  *credential.Store
	guard  *session.Guard
	logger *zap.Logger

	mu      sync.Mutex
	scanner *scannerSession
}

type scannerSession struct {
	adapter *scaninput.Adapter
	machine *validator.Machine
	cancel  context.CancelFunc
	spaceID string
}

// NewService создаёт сервис консоли.
func NewService(p Portal, store *credential.Store, guard *session.Guard, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		portal: p,
		store:  store,
		guard:  guard,
		logger: logger,
	}
}

// Login выполняет вход оператора: обмен учётных данных на токены, проверку
// роли по профилю и сохранение слота. Аккаунт без партнёрской роли не
// сохраняется вовсе.
func (s *Service) Login(ctx context.Context, identifier, secret string) (model.Role, error) {
	pair, err := s.portal.Authenticate(ctx, identifier, secret)
	if err != nil {
		return "", err
	}

	profile, err := s.portal.Profile(ctx, pair.Access)
	if err != nil {
		// 401 на свежем токене равнозначен неудачному входу.
		if errors.Is(err, portal.ErrUnauthorized) {
			return "", portal.ErrInvalidCredentials
		}
		return "", err
	}

	if !profile.Role.In(model.RolePartner, model.RoleAdmin) {
		s.logger.Warn("login denied", zap.String("role", string(profile.Role)))
		return "", ErrRoleDenied
	}

	cred := model.Credential{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		Role:         profile.Role,
	}
	if err := s.store.Set(cred); err != nil {
		return "", err
	}

	s.logger.Info("operator logged in", zap.String("role", string(profile.Role)))
	return profile.Role, nil
}

// Signup создаёт заявку на партнёрский аккаунт. Вход не выполняется:
// аккаунт ожидает одобрения на стороне портала.
func (s *Service) Signup(ctx context.Context, name, email, secret string) error {
	return s.portal.Register(ctx, name, email, secret)
}

// Logout завершает сессию оператора: останавливает сеанс сканирования
// и очищает слот. Повторный вызов безопасен.
func (s *Service) Logout() error {
	_ = s.StopScanner()
	return s.store.Clear()
}

// CurrentRole возвращает роль текущей сессии, если она есть.
func (s *Service) CurrentRole() (model.Role, bool) {
	cred, ok := s.store.Get()
	if !ok {
		return "", false
	}
	return cred.Role, true
}

// StartScanner открывает сеанс сканирования: привязывает валидатор к
// пространству оператора и запускает автомат. Одновременно допускается
// не более одного сеанса.
func (s *Service) StartScanner(ctx context.Context) error {
	cred, ok := s.store.Get()
	if !ok {
		return ErrSessionExpired
	}

	profile, err := s.portal.Profile(ctx, cred.AccessToken)
	if err != nil {
		if s.unauthorized(err) {
			return ErrSessionExpired
		}
		return err
	}
	if profile.ManagedSpaceID == "" {
		return ErrNoSpace
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner != nil {
		return ErrScannerActive
	}

	adapter := scaninput.NewAdapter()
	machine := validator.NewMachine(adapter, s.portal, s.store, profile.ManagedSpaceID, s.onUnauthorized, s.logger)

	// Сеанс живёт дольше HTTP-запроса, которым его открыли.
	runCtx, cancel := context.WithCancel(context.Background())
	go machine.Run(runCtx)

	s.scanner = &scannerSession{
		adapter: adapter,
		machine: machine,
		cancel:  cancel,
		spaceID: profile.ManagedSpaceID,
	}

	s.logger.Info("scanner session started", zap.String("space", profile.ManagedSpaceID))
	return nil
}

// StopScanner закрывает сеанс сканирования: поток камеры останавливается,
// незавершённая проверка не применяется к состоянию. Идемпотентен.
func (s *Service) StopScanner() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner == nil {
		return nil
	}

	s.scanner.machine.Stop()
	s.scanner.adapter.Close()
	s.scanner.cancel()
	s.scanner = nil

	s.logger.Info("scanner session stopped")
	return nil
}

// SubmitManual передаёт вручную введённый код в сеанс сканирования.
func (s *Service) SubmitManual(value string) error {
	sess, err := s.activeScanner()
	if err != nil {
		return err
	}
	return sess.adapter.SubmitManual(value)
}

// SubmitCameraDecode передаёт значение, распознанное камерой.
func (s *Service) SubmitCameraDecode(value string) error {
	sess, err := s.activeScanner()
	if err != nil {
		return err
	}
	sess.adapter.SubmitCameraDecode(value)
	return nil
}

// ResetScanner — действие «сканировать следующего».
func (s *Service) ResetScanner() error {
	sess, err := s.activeScanner()
	if err != nil {
		return err
	}
	sess.machine.Reset()
	return nil
}

// ScannerState возвращает наблюдаемое состояние автомата проверки.
func (s *Service) ScannerState() (validator.Snapshot, error) {
	sess, err := s.activeScanner()
	if err != nil {
		return validator.Snapshot{}, err
	}
	return sess.machine.Snapshot(), nil
}

// SpaceInfo возвращает пространство, закреплённое за оператором.
func (s *Service) SpaceInfo(ctx context.Context) (*model.ManagedSpace, error) {
	cred, ok := s.store.Get()
	if !ok {
		return nil, ErrSessionExpired
	}

	space, err := s.portal.Space(ctx, cred.AccessToken)
	if err != nil {
		if s.unauthorized(err) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return space, nil
}

// Dashboard строит сводку посещений за период: записи и ставка выплаты
// читаются из портала, подсчёт выполняется локально.
func (s *Service) Dashboard(ctx context.Context, from, to time.Time) (*dashboard.Summary, error) {
	cred, ok := s.store.Get()
	if !ok {
		return nil, ErrSessionExpired
	}

	space, err := s.portal.Space(ctx, cred.AccessToken)
	if err != nil {
		if s.unauthorized(err) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	records, err := s.portal.CheckIns(ctx, cred.AccessToken, from, to)
	if err != nil {
		if s.unauthorized(err) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	summary := dashboard.Aggregate(records, dashboard.Window{From: from, To: to}, space.PayoutPerCheckin)
	return &summary, nil
}

// unauthorized применяет глобальную политику ответа 401: любой такой отказ
// очищает сессию целиком, независимо от вызвавшей операции.
func (s *Service) unauthorized(err error) bool {
	if !errors.Is(err, portal.ErrUnauthorized) {
		return false
	}
	s.onUnauthorized()
	return true
}

// onUnauthorized — обработчик, который получает и автомат проверки.
func (s *Service) onUnauthorized() {
	s.logger.Warn("portal rejected session, logging out")
	s.guard.Invalidate()
	_ = s.StopScanner()
}

func (s *Service) activeScanner() (*scannerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner == nil {
		return nil, ErrScannerInactive
	}
	return s.scanner, nil
}
