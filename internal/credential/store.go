// Package credential реализует хранилище учётных данных оператора.
//
// Хранилище — единственное изменяемое состояние ядра консоли: один слот
// с учётными данными, переживающий перезапуск процесса за счёт файла
// состояния. Отсутствие слота означает, что оператор не авторизован.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/workspace-africa/partner-console/internal/model"
)

// Store хранит текущие учётные данные оператора.
// Читать слот может любой компонент; записывают только поток
// аутентификации и глобальный обработчик ответа 401.
type Store struct {
	mu   sync.RWMutex
	path string
	cred *model.Credential
}

// NewStore создаёт хранилище, привязанное к файлу состояния по указанному
// пути. Отсутствующий или повреждённый файл трактуется как «не авторизован».
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("credential store: empty state file path")
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.AccessToken == "" {
		// Повреждённый слот равнозначен его отсутствию.
		return s, nil
	}

	s.cred = &cred
	return s, nil
}

// Set заменяет текущие учётные данные новыми. Содержимое локально
// не проверяется: источником истины остаётся портал.
func (s *Store) Set(cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(&cred); err != nil {
		return err
	}

	s.cred = &cred
	return nil
}

// Get возвращает текущие учётные данные или признак их отсутствия.
func (s *Store) Get() (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return model.Credential{}, false
	}
	return *s.cred, true
}

// Clear удаляет учётные данные. Операция идемпотентна: повторный вызов
// оставляет систему в том же состоянии «не авторизован».
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

func (s *Store) persist(cred *model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
