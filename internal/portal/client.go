// Package portal предоставляет клиент для внешнего API портала:
// аутентификация, профиль оператора, проверка кодов посещения и
// чтение записей о посещениях.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/workspace-africa/partner-console/internal/model"
)

// Ошибки клиента. Любой аутентифицированный вызов единообразно
// транслирует HTTP 401 в ErrUnauthorized.
var (
	ErrUnauthorized       = errors.New("portal rejected credentials")
	ErrInvalidCredentials = errors.New("invalid identifier or secret")
	ErrUnavailable        = errors.New("portal unavailable")
)

// BusinessError описывает бизнес-отказ портала: код просрочен,
// уже использован, не относится к пространству и т.п.
type BusinessError struct {
	ReasonCode string `json:"reason_code"`
	Message    string `json:"message"`
}

// Error реализует интерфейс error.
func (e *BusinessError) Error() string {
	return fmt.Sprintf("portal rejected request: %s: %s", e.ReasonCode, e.Message)
}

// TokenPair содержит пару токенов, выданную порталом при входе.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// UserProfile описывает профиль аутентифицированного пользователя портала.
type UserProfile struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           model.Role `json:"role"`
	ManagedSpaceID string     `json:"managed_space_id"`
}

// Client инкапсулирует HTTP-взаимодействие с API портала.
//
// Идемпотентные GET-запросы ходят через retryablehttp; POST проверки кода
// выполняется без повторов: повторная отправка могла бы дважды погасить
// одноразовый код.
type Client struct {
	baseURL    string
	postClient *http.Client
	getClient  *http.Client
}

// NewClient создаёт клиент портала по указанному базовому адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		postClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		getClient: rc.StandardClient(),
	}
}

func (c *Client) endpoint(path string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", errors.New("portal client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path, nil
}

// Authenticate обменивает идентификатор и секрет оператора на пару токенов.
func (c *Client) Authenticate(ctx context.Context, identifier, secret string) (TokenPair, error) {
	reqBody := map[string]string{
		"identifier": identifier,
		"secret":     secret,
	}

	resp, err := c.postJSON(ctx, "/api/auth/token/", reqBody, "")
	if err != nil {
		return TokenPair{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return TokenPair{}, ErrInvalidCredentials
	default:
		return TokenPair{}, statusError(resp)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, fmt.Errorf("decode token response: %w", err)
	}
	if pair.Access == "" {
		return TokenPair{}, errors.New("portal returned empty access token")
	}
	return pair, nil
}

// Register создаёт заявку на новый партнёрский аккаунт. Созданный аккаунт
// ожидает одобрения, автоматического входа не происходит.
func (c *Client) Register(ctx context.Context, name, email, secret string) error {
	reqBody := map[string]string{
		"name":   name,
		"email":  email,
		"secret": secret,
	}

	resp, err := c.postJSON(ctx, "/api/auth/register/", reqBody, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return businessError(resp)
	default:
		return statusError(resp)
	}
}

// Profile запрашивает профиль владельца токена доступа.
func (c *Client) Profile(ctx context.Context, access string) (*UserProfile, error) {
	resp, err := c.getAuthenticated(ctx, "/api/users/me/", access, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := authStatus(resp); err != nil {
		return nil, err
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return &profile, nil
}

// Space запрашивает пространство, закреплённое за текущим партнёром.
func (c *Client) Space(ctx context.Context, access string) (*model.ManagedSpace, error) {
	resp, err := c.getAuthenticated(ctx, "/api/partner/space/", access, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := authStatus(resp); err != nil {
		return nil, err
	}

	var space model.ManagedSpace
	if err := json.NewDecoder(resp.Body).Decode(&space); err != nil {
		return nil, fmt.Errorf("decode space response: %w", err)
	}
	return &space, nil
}

// ValidateCode отправляет код участника на проверку для указанного
// пространства. Бизнес-отказ возвращается как *BusinessError с причиной
// портала; транспортный сбой — как ErrUnavailable.
func (c *Client) ValidateCode(ctx context.Context, access, code, spaceID string) (*model.Member, error) {
	reqBody := map[string]string{
		"code":     code,
		"space_id": spaceID,
	}

	resp, err := c.postJSON(ctx, "/api/check-in/validate/", reqBody, access)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, businessError(resp)
	default:
		return nil, statusError(resp)
	}

	var member model.Member
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, fmt.Errorf("decode validation response: %w", err)
	}
	return &member, nil
}

// CheckIns запрашивает записи о посещениях пространства за указанный период.
func (c *Client) CheckIns(ctx context.Context, access string, from, to time.Time) ([]model.CheckInRecord, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("to", to.Format(time.RFC3339))
	}

	resp, err := c.getAuthenticated(ctx, "/api/partner/checkins/", access, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := authStatus(resp); err != nil {
		return nil, err
	}

	var records []model.CheckInRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode check-ins response: %w", err)
	}
	return records, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, access string) (*http.Response, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.postClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *Client) getAuthenticated(ctx context.Context, path, access string, query url.Values) (*http.Response, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.getClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func authStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return statusError(resp)
	}
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status: %d", resp.StatusCode)
}

func businessError(resp *http.Response) error {
	be := &BusinessError{}
	if err := json.NewDecoder(resp.Body).Decode(be); err != nil || be.ReasonCode == "" {
		be.ReasonCode = "REJECTED"
		be.Message = http.StatusText(resp.StatusCode)
	}
	return be
}
