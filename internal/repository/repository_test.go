package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mbins999/instant-gov-mail/internal/config"
	"github.com/mbins999/instant-gov-mail/internal/database"
	"github.com/mbins999/instant-gov-mail/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("igm_test"),
		postgres.WithUsername("igm"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("IGM_DB_HOST", host)
	t.Setenv("IGM_DB_PORT", port.Port())
	t.Setenv("IGM_DB_NAME", "igm_test")
	t.Setenv("IGM_DB_USER", "igm")
	t.Setenv("IGM_DB_PASSWORD", "test-password")
	t.Setenv("IGM_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// insertTestUser создаёт пользователя напрямую (таблица users управляется извне).
func insertTestUser(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username, password_hash, full_name, entity_id, entity_name)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		username, "$2a$10$fakehashfakehashfakehashfakehash", "Тестовый Пользователь", "ent-1", "Тестовая Организация",
	).Scan(&id)
	if err != nil {
		t.Fatalf("Не удалось создать тестового пользователя: %v", err)
	}
	return id
}

// --- Тесты UserRepository ---

func TestUserRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	userID := insertTestUser(t, pool, "ivanov")

	// GetByID
	u, err := repo.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if u.Username != "ivanov" {
		t.Errorf("Username = %q, хотели %q", u.Username, "ivanov")
	}

	// GetByUsername
	u2, err := repo.GetByUsername(ctx, "ivanov")
	if err != nil {
		t.Fatalf("GetByUsername() ошибка: %v", err)
	}
	if u2.ID != userID {
		t.Errorf("ID = %d, хотели %d", u2.ID, userID)
	}

	// GetByUsername — несуществующий
	if _, err := repo.GetByUsername(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Для несуществующего пользователя ожидали ErrNotFound, получили: %v", err)
	}

	// GetRole — записи нет, ожидаем ErrNotFound (роль по умолчанию — дело сервиса)
	if _, err := repo.GetRole(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRole без записи: ожидали ErrNotFound, получили: %v", err)
	}

	// GetRole — после вставки роли
	_, err = pool.Exec(ctx,
		`INSERT INTO user_roles (id, user_id, role) VALUES ($1, $2, $3)`,
		uuid.New().String(), userID, "moderator",
	)
	if err != nil {
		t.Fatalf("Вставка роли: %v", err)
	}
	role, err := repo.GetRole(ctx, userID)
	if err != nil {
		t.Fatalf("GetRole() ошибка: %v", err)
	}
	if role != "moderator" {
		t.Errorf("GetRole() = %q, хотели %q", role, "moderator")
	}
}

// --- Тесты SessionRepository ---

func TestSessionRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(pool)

	userID := insertTestUser(t, pool, "petrov")
	now := time.Now().UTC().Truncate(time.Microsecond)

	s := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     "test-token-abc",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	// Insert
	if err := repo.Insert(ctx, s); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// GetByToken
	got, err := repo.GetByToken(ctx, "test-token-abc")
	if err != nil {
		t.Fatalf("GetByToken() ошибка: %v", err)
	}
	if got.UserID != userID {
		t.Errorf("UserID = %d, хотели %d", got.UserID, userID)
	}
	if !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, хотели %v", got.ExpiresAt, s.ExpiresAt)
	}

	// GetByToken — несуществующий токен
	if _, err := repo.GetByToken(ctx, "no-such-token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Для несуществующего токена ожидали ErrNotFound, получили: %v", err)
	}

	// Insert — дублирующийся токен
	dup := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     "test-token-abc",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := repo.Insert(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Для дублирующегося токена ожидали ErrConflict, получили: %v", err)
	}
}

// --- Тесты CorrespondenceRepository ---

func testCorrespondence(createdBy int64) *model.Correspondence {
	notes := "примечание"
	return &model.Correspondence{
		ID:                uuid.New().String(),
		Number:            "ИСХ-2026-001",
		Type:              "outgoing",
		Subject:           "О предоставлении информации",
		Content:           "Текст письма.",
		FromEntity:        "Департамент",
		ReceivedByEntity:  "Министерство",
		Date:              time.Now().UTC().Truncate(time.Microsecond),
		Greeting:          "Уважаемый Иван Иванович!",
		ResponsiblePerson: "Сидоров С.С.",
		DisplayType:       model.DisplayTypeContent,
		Attachments:       []string{},
		Notes:             &notes,
		CreatedBy:         &createdBy,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:         time.Now().UTC().Truncate(time.Microsecond),
		Status:            model.StatusDraft,
		Version:           1,
	}
}

func TestCorrespondenceInsertGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCorrespondenceRepository(pool)

	userID := insertTestUser(t, pool, "author1")
	c := testCorrespondence(userID)

	if err := repo.Insert(ctx, c); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Subject != c.Subject {
		t.Errorf("Subject = %q, хотели %q", got.Subject, c.Subject)
	}
	if got.DisplayType != model.DisplayTypeContent {
		t.Errorf("DisplayType = %q, хотели %q", got.DisplayType, model.DisplayTypeContent)
	}
	if got.Status != model.StatusDraft {
		t.Errorf("Status = %q, хотели %q", got.Status, model.StatusDraft)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, хотели 1", got.Version)
	}
	if got.Notes == nil || *got.Notes != "примечание" {
		t.Errorf("Notes = %v, хотели %q", got.Notes, "примечание")
	}

	if _, err := repo.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Для несуществующего id ожидали ErrNotFound, получили: %v", err)
	}
}

func TestCorrespondenceLockState(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCorrespondenceRepository(pool)

	userID := insertTestUser(t, pool, "author2")
	c := testCorrespondence(userID)
	if err := repo.Insert(ctx, c); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	state, err := repo.GetLockState(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetLockState() ошибка: %v", err)
	}
	if state.Locked() {
		t.Error("Черновик не должен быть заблокирован")
	}
	if state.Version != 1 {
		t.Errorf("Version = %d, хотели 1", state.Version)
	}

	// Архивируем и проверяем блокировку
	c.Archived = true
	c.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, c, 1); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	state2, err := repo.GetLockState(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetLockState() после архивации: %v", err)
	}
	if !state2.Locked() {
		t.Error("Архивная запись должна быть заблокирована")
	}
	if state2.Version != 2 {
		t.Errorf("Version после Update = %d, хотели 2", state2.Version)
	}
}

func TestCorrespondenceUpdateCAS(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCorrespondenceRepository(pool)

	userID := insertTestUser(t, pool, "author3")
	c := testCorrespondence(userID)
	if err := repo.Insert(ctx, c); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// Обновление с верной версией
	c.Subject = "Изменённая тема"
	c.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, c, 1); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	got, _ := repo.GetByID(ctx, c.ID)
	if got.Subject != "Изменённая тема" {
		t.Errorf("Subject = %q, хотели %q", got.Subject, "Изменённая тема")
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, хотели 2", got.Version)
	}

	// Обновление с устаревшей версией
	if err := repo.Update(ctx, c, 1); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Для устаревшей версии ожидали ErrVersionConflict, получили: %v", err)
	}

	// Обновление несуществующей записи
	ghost := testCorrespondence(userID)
	if err := repo.Update(ctx, ghost, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Для несуществующей записи ожидали ErrNotFound, получили: %v", err)
	}
}

func TestCorrespondenceList(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCorrespondenceRepository(pool)

	userID := insertTestUser(t, pool, "author4")

	// Три записи с разными датами и типами
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, typ := range []string{"incoming", "outgoing", "incoming"} {
		c := testCorrespondence(userID)
		c.Type = typ
		c.Date = base.Add(time.Duration(i) * time.Hour)
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("Insert() #%d ошибка: %v", i, err)
		}
	}

	// Без фильтров: порядок по дате по убыванию
	items, total, err := repo.List(ctx, ListFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("List() total=%d, len=%d; хотели 3 и 3", total, len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Date.After(items[i-1].Date) {
			t.Errorf("Нарушен порядок сортировки по дате: %v после %v", items[i-1].Date, items[i].Date)
		}
	}

	// Фильтр по типу
	typ := "incoming"
	items2, total2, err := repo.List(ctx, ListFilters{Type: &typ}, 10, 0)
	if err != nil {
		t.Fatalf("List() с фильтром ошибка: %v", err)
	}
	if total2 != 2 || len(items2) != 2 {
		t.Errorf("List(type=incoming) total=%d, len=%d; хотели 2 и 2", total2, len(items2))
	}

	// Пагинация
	items3, total3, err := repo.List(ctx, ListFilters{}, 2, 2)
	if err != nil {
		t.Fatalf("List() с пагинацией ошибка: %v", err)
	}
	if total3 != 3 || len(items3) != 1 {
		t.Errorf("List(limit=2, offset=2) total=%d, len=%d; хотели 3 и 1", total3, len(items3))
	}
}

// --- Тесты AttachmentRepository ---

func TestAttachmentRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAttachmentRepository(pool)

	userID := insertTestUser(t, pool, "uploader1")
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    "scan.pdf",
		ContentHash: "aabbcc001122",
		SizeBytes:   2048,
		MimeType:    "application/pdf",
		Kind:        model.KindAttachment,
		StoragePath: "attachments/" + uuid.New().String() + ".pdf",
		UploadedBy:  userID,
		UploadedAt:  now,
	}

	// Insert
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// GetByID
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.FileName != "scan.pdf" {
		t.Errorf("FileName = %q, хотели %q", got.FileName, "scan.pdf")
	}

	// GetByContentHash
	got2, err := repo.GetByContentHash(ctx, "aabbcc001122")
	if err != nil {
		t.Fatalf("GetByContentHash() ошибка: %v", err)
	}
	if got2.ID != a.ID {
		t.Errorf("ID = %q, хотели %q", got2.ID, a.ID)
	}

	// Повторный Insert того же хэша kind=attachment — конфликт уникальности
	dup := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    "scan-copy.pdf",
		ContentHash: "aabbcc001122",
		SizeBytes:   2048,
		MimeType:    "application/pdf",
		Kind:        model.KindAttachment,
		StoragePath: "attachments/" + uuid.New().String() + ".pdf",
		UploadedBy:  userID,
		UploadedAt:  now,
	}
	if err := repo.Insert(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Для дублирующегося хэша ожидали ErrConflict, получили: %v", err)
	}

	// Тот же хэш, но kind=signature — конфликта нет (индекс частичный)
	sig := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    "sign.png",
		ContentHash: "aabbcc001122",
		SizeBytes:   512,
		MimeType:    "image/png",
		Kind:        model.KindSignature,
		StoragePath: "signatures/" + uuid.New().String() + ".png",
		UploadedBy:  userID,
		UploadedAt:  now,
	}
	if err := repo.Insert(ctx, sig); err != nil {
		t.Errorf("Insert() подписи с тем же хэшем: %v", err)
	}

	// GetByContentHash по-прежнему возвращает запись kind=attachment
	got3, err := repo.GetByContentHash(ctx, "aabbcc001122")
	if err != nil {
		t.Fatalf("GetByContentHash() после вставки подписи: %v", err)
	}
	if got3.Kind != model.KindAttachment {
		t.Errorf("Kind = %q, хотели %q", got3.Kind, model.KindAttachment)
	}
}

// TestAttachmentInsertOrGet: транзакционная вставка с дедупликацией —
// первый вызов вставляет, повторный с тем же хэшем возвращает победителя.
func TestAttachmentInsertOrGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAttachmentRepository(pool)

	userID := insertTestUser(t, pool, "uploader2")
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    "report.pdf",
		ContentHash: "ddeeff334455",
		SizeBytes:   4096,
		MimeType:    "application/pdf",
		Kind:        model.KindAttachment,
		StoragePath: "attachments/" + uuid.New().String() + ".pdf",
		UploadedBy:  userID,
		UploadedAt:  now,
	}

	stored, deduplicated, err := repo.InsertOrGet(ctx, first)
	if err != nil {
		t.Fatalf("InsertOrGet() ошибка: %v", err)
	}
	if deduplicated {
		t.Error("Первая вставка не должна быть дедуплицирована")
	}
	if stored.ID != first.ID {
		t.Errorf("ID = %q, хотели %q", stored.ID, first.ID)
	}

	// Те же байты, другая запись: возвращается победитель
	second := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    "report-copy.pdf",
		ContentHash: "ddeeff334455",
		SizeBytes:   4096,
		MimeType:    "application/pdf",
		Kind:        model.KindAttachment,
		StoragePath: "attachments/" + uuid.New().String() + ".pdf",
		UploadedBy:  userID,
		UploadedAt:  now,
	}

	winner, deduplicated, err := repo.InsertOrGet(ctx, second)
	if err != nil {
		t.Fatalf("InsertOrGet() повтора ошибка: %v", err)
	}
	if !deduplicated {
		t.Error("Повтор тех же байт: ожидали deduplicated=true")
	}
	if winner.ID != first.ID {
		t.Errorf("ID победителя = %q, хотели %q", winner.ID, first.ID)
	}

	// Проигравшая запись не сохранена
	if _, err := repo.GetByID(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Проигравшая запись не должна существовать, получили: %v", err)
	}
}
