package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/domain/rbac"
	"github.com/mbins999/instant-gov-mail/internal/repository"
)

// --- Mock repositories ---

// mockSessionRepo — мок SessionRepository для unit-тестов.
type mockSessionRepo struct {
	insertFn     func(ctx context.Context, s *model.Session) error
	getByTokenFn func(ctx context.Context, token string) (*model.Session, error)
}

func (m *mockSessionRepo) Insert(ctx context.Context, s *model.Session) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, repository.ErrNotFound
}

// mockUserRepo — мок UserRepository для unit-тестов.
type mockUserRepo struct {
	getByIDFn       func(ctx context.Context, userID int64) (*model.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	getRoleFn       func(ctx context.Context, userID int64) (string, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetRole(ctx context.Context, userID int64) (string, error) {
	if m.getRoleFn != nil {
		return m.getRoleFn(ctx, userID)
	}
	return "", repository.ErrNotFound
}

func newTestAuthService(sessions *mockSessionRepo, users *mockUserRepo, ttl time.Duration) *AuthService {
	return NewAuthService(sessions, users, ttl, 16, time.Minute, slog.Default())
}

func testUser(hash string) *model.User {
	return &model.User{
		ID:           42,
		Username:     "ivanov",
		PasswordHash: hash,
		FullName:     "Иванов И.И.",
		EntityID:     "ent-7",
		EntityName:   "Департамент",
	}
}

// --- Тесты Login ---

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	var inserted *model.Session
	sessions := &mockSessionRepo{
		insertFn: func(_ context.Context, s *model.Session) error {
			inserted = s
			return nil
		},
	}
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, username string) (*model.User, error) {
			if username != "ivanov" {
				return nil, repository.ErrNotFound
			}
			return testUser(string(hash)), nil
		},
		getRoleFn: func(_ context.Context, _ int64) (string, error) {
			return "moderator", nil
		},
	}

	svc := newTestAuthService(sessions, users, time.Hour)

	session, identity, err := svc.Login(context.Background(), "ivanov", "secret-password")
	if err != nil {
		t.Fatalf("Login() ошибка: %v", err)
	}
	if session.Token == "" {
		t.Error("Токен не должен быть пустым")
	}
	if inserted == nil || inserted.Token != session.Token {
		t.Error("Сессия не сохранена в репозитории")
	}
	ttl := session.ExpiresAt.Sub(session.IssuedAt)
	if ttl != time.Hour {
		t.Errorf("TTL сессии = %v, хотели 1h", ttl)
	}
	if identity.UserID != 42 || identity.Role != "moderator" {
		t.Errorf("Identity = %+v, хотели UserID=42, Role=moderator", identity)
	}
	if identity.EntityName != "Департамент" {
		t.Errorf("EntityName = %q, хотели %q", identity.EntityName, "Департамент")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, _ string) (*model.User, error) {
			return testUser(string(hash)), nil
		},
	}
	svc := newTestAuthService(&mockSessionRepo{}, users, time.Hour)

	_, _, err := svc.Login(context.Background(), "ivanov", "wrong")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Для неверного пароля ожидали ErrUnauthenticated, получили: %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := newTestAuthService(&mockSessionRepo{}, &mockUserRepo{}, time.Hour)

	// Неизвестный пользователь неотличим от неверного пароля
	_, _, err := svc.Login(context.Background(), "ghost", "whatever")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Для неизвестного пользователя ожидали ErrUnauthenticated, получили: %v", err)
	}
}

// --- Тесты Resolve ---

func TestResolve(t *testing.T) {
	now := time.Now().UTC()
	getByTokenCalls := 0
	sessions := &mockSessionRepo{
		getByTokenFn: func(_ context.Context, token string) (*model.Session, error) {
			getByTokenCalls++
			if token != "valid-token" {
				return nil, repository.ErrNotFound
			}
			return &model.Session{
				ID: "s1", UserID: 42, Token: token,
				IssuedAt: now, ExpiresAt: now.Add(time.Hour),
			}, nil
		},
	}
	users := &mockUserRepo{
		getByIDFn: func(_ context.Context, userID int64) (*model.User, error) {
			return testUser("x"), nil
		},
	}

	svc := newTestAuthService(sessions, users, time.Hour)

	identity, err := svc.Resolve(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("Resolve() ошибка: %v", err)
	}
	if identity.UserID != 42 {
		t.Errorf("UserID = %d, хотели 42", identity.UserID)
	}
	// Роль по умолчанию при отсутствии записи в user_roles
	if identity.Role != rbac.DefaultRole {
		t.Errorf("Role = %q, хотели роль по умолчанию %q", identity.Role, rbac.DefaultRole)
	}

	// Повторный Resolve обслуживается из кэша, без похода в БД
	if _, err := svc.Resolve(context.Background(), "valid-token"); err != nil {
		t.Fatalf("Повторный Resolve() ошибка: %v", err)
	}
	if getByTokenCalls != 1 {
		t.Errorf("GetByToken вызван %d раз, хотели 1 (кэш)", getByTokenCalls)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	svc := newTestAuthService(&mockSessionRepo{}, &mockUserRepo{}, time.Hour)

	if _, err := svc.Resolve(context.Background(), "no-such-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Для неизвестного токена ожидали ErrUnauthenticated, получили: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Для пустого токена ожидали ErrUnauthenticated, получили: %v", err)
	}
}

func TestResolve_ExpiredSession(t *testing.T) {
	now := time.Now().UTC()
	sessions := &mockSessionRepo{
		getByTokenFn: func(_ context.Context, token string) (*model.Session, error) {
			return &model.Session{
				ID: "s1", UserID: 42, Token: token,
				IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
			}, nil
		},
	}
	svc := newTestAuthService(sessions, &mockUserRepo{}, time.Hour)

	if _, err := svc.Resolve(context.Background(), "old-token"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Для истёкшей сессии ожидали ErrSessionExpired, получили: %v", err)
	}
}

// TestResolve_CachedSessionExpires проверяет, что кэшированная сессия
// не переживает собственный expires_at.
func TestResolve_CachedSessionExpires(t *testing.T) {
	now := time.Now().UTC()
	sessions := &mockSessionRepo{
		getByTokenFn: func(_ context.Context, token string) (*model.Session, error) {
			return &model.Session{
				ID: "s1", UserID: 42, Token: token,
				IssuedAt: now, ExpiresAt: now.Add(100 * time.Millisecond),
			}, nil
		},
	}
	users := &mockUserRepo{
		getByIDFn: func(_ context.Context, _ int64) (*model.User, error) {
			return testUser("x"), nil
		},
	}
	svc := newTestAuthService(sessions, users, time.Hour)

	// Первый Resolve успешен и кэширует сессию
	if _, err := svc.Resolve(context.Background(), "short-token"); err != nil {
		t.Fatalf("Resolve() ошибка: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	// Попадание в кэш, но срок проверяется заново
	if _, err := svc.Resolve(context.Background(), "short-token"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Для истёкшей кэшированной сессии ожидали ErrSessionExpired, получили: %v", err)
	}
}

// --- Тесты RequireRole ---

func TestRequireRole(t *testing.T) {
	svc := newTestAuthService(&mockSessionRepo{}, &mockUserRepo{}, time.Hour)

	moderator := &model.Identity{UserID: 1, Role: rbac.RoleModerator}

	if err := svc.RequireRole(moderator, rbac.RoleModerator, rbac.RoleAdmin); err != nil {
		t.Errorf("RequireRole() для допустимой роли: %v", err)
	}
	if err := svc.RequireRole(moderator, rbac.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequireRole() для недопустимой роли: ожидали ErrForbidden, получили: %v", err)
	}
	if err := svc.RequireRole(nil, rbac.RoleUser); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("RequireRole(nil): ожидали ErrUnauthenticated, получили: %v", err)
	}
}

// --- Тесты IssueSession ---

func TestIssueSession_UniqueTokens(t *testing.T) {
	svc := newTestAuthService(&mockSessionRepo{}, &mockUserRepo{}, time.Hour)

	s1, err := svc.IssueSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("IssueSession() ошибка: %v", err)
	}
	s2, err := svc.IssueSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("IssueSession() ошибка: %v", err)
	}
	if s1.Token == s2.Token {
		t.Error("Токены двух сессий не должны совпадать")
	}
	// 32 байта в base64url без паддинга — 43 символа
	if len(s1.Token) != 43 {
		t.Errorf("Длина токена = %d, хотели 43", len(s1.Token))
	}
}
