package movie

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jaysandjay/ModernWebFinal/internal/auth"
	"github.com/Jaysandjay/ModernWebFinal/internal/session"
)

type stubCatalog struct {
	movies     map[uuid.UUID]*Movie
	updated    *Movie
	deleted    []uuid.UUID
	posterPath string
	createErr  error
	updateErr  error
}

func newStubCatalog(movies ...*Movie) *stubCatalog {
	s := &stubCatalog{movies: map[uuid.UUID]*Movie{}}
	for _, m := range movies {
		s.movies[m.ID] = m
	}
	return s
}

func (s *stubCatalog) Create(ctx context.Context, ownerID uuid.UUID, in Input) (*Movie, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	m := &Movie{ID: uuid.New(), Name: in.Name, Year: in.Year, Genre: in.Genre, OwnerID: ownerID}
	s.movies[m.ID] = m
	return m, nil
}

func (s *stubCatalog) List(ctx context.Context, viewerID uuid.UUID) ([]Movie, error) {
	movies := make([]Movie, 0, len(s.movies))
	for _, m := range s.movies {
		movies = append(movies, *m)
	}
	return movies, nil
}

func (s *stubCatalog) Get(ctx context.Context, id uuid.UUID) (*Movie, error) {
	m, exists := s.movies[id]
	if !exists {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *stubCatalog) Update(ctx context.Context, id uuid.UUID, in Input) (*Movie, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	current, exists := s.movies[id]
	if !exists {
		return nil, ErrNotFound
	}
	m := &Movie{ID: id, Name: in.Name, Year: in.Year, Genre: in.Genre, OwnerID: current.OwnerID}
	s.updated = m
	return m, nil
}

func (s *stubCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubCatalog) SetPosterPath(ctx context.Context, id uuid.UUID, path string) error {
	s.posterPath = path
	return nil
}

type stubStorage struct {
	saved map[string][]byte
}

func newStubStorage() *stubStorage {
	return &stubStorage{saved: map[string][]byte{}}
}

func (s *stubStorage) Save(ctx context.Context, path string, data []byte) error {
	s.saved[path] = data
	return nil
}

func (s *stubStorage) Open(ctx context.Context, path string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *stubStorage) Delete(ctx context.Context, path string) error {
	delete(s.saved, path)
	return nil
}

// loginAs は RequireLogin 通過後の状態を再現するテスト用ミドルウェアです。
func loginAs(identity auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(session.ContextIdentityKey, identity)
		c.Next()
	}
}

func TestRequireOwnerInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := newStubCatalog()

	router := gin.New()
	router.DELETE("/api/movies/:id", loginAs(auth.Identity{ID: uuid.New()}), RequireOwner(catalog), DeleteHandler(catalog))

	req := httptest.NewRequest(http.MethodDelete, "/api/movies/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRequireOwnerUnknownMovie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := newStubCatalog()

	router := gin.New()
	router.DELETE("/api/movies/:id", loginAs(auth.Identity{ID: uuid.New()}), RequireOwner(catalog), DeleteHandler(catalog))

	req := httptest.NewRequest(http.MethodDelete, "/api/movies/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "MOVIE_NOT_FOUND" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestRequireOwnerForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	m := &Movie{ID: uuid.New(), Name: "Seven Samurai", Year: 1954, Genre: "Drama", OwnerID: owner}
	catalog := newStubCatalog(m)

	router := gin.New()
	// 所有者ではないログイン済みアカウントでアクセスする
	router.DELETE("/api/movies/:id", loginAs(auth.Identity{ID: uuid.New()}), RequireOwner(catalog), DeleteHandler(catalog))

	req := httptest.NewRequest(http.MethodDelete, "/api/movies/"+m.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if len(catalog.deleted) != 0 {
		t.Fatalf("delete must not be reached: %v", catalog.deleted)
	}
}

func TestRequireOwnerPassesRecordToHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	m := &Movie{ID: uuid.New(), Name: "Seven Samurai", Year: 1954, Genre: "Drama", OwnerID: owner}
	catalog := newStubCatalog(m)

	var received *Movie
	router := gin.New()
	router.DELETE("/api/movies/:id", loginAs(auth.Identity{ID: owner}), RequireOwner(catalog), func(c *gin.Context) {
		received, _ = ownedMovie(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/movies/"+m.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if received == nil || received.ID != m.ID {
		t.Fatalf("guard did not pass fetched record: %+v", received)
	}
}

func TestUpdateHandlerAsOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	m := &Movie{ID: uuid.New(), Name: "Seven Samurai", Year: 1954, Genre: "Drama", OwnerID: owner}
	catalog := newStubCatalog(m)

	router := gin.New()
	router.PUT("/api/movies/:id", loginAs(auth.Identity{ID: owner}), RequireOwner(catalog), UpdateHandler(catalog))

	body, _ := json.Marshal(Input{Name: "Ran", Year: 1985, Genre: "Drama"})
	req := httptest.NewRequest(http.MethodPut, "/api/movies/"+m.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if catalog.updated == nil || catalog.updated.Name != "Ran" {
		t.Fatalf("update not applied: %+v", catalog.updated)
	}
	if catalog.updated.OwnerID != owner {
		t.Fatalf("owner changed on update: %s", catalog.updated.OwnerID)
	}
}

func TestCreateHandlerDuplicateName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := newStubCatalog()
	catalog.createErr = ErrNameTaken

	router := gin.New()
	router.POST("/api/movies", loginAs(auth.Identity{ID: uuid.New()}), CreateHandler(catalog))

	body, _ := json.Marshal(Input{Name: "Seven Samurai", Year: 1954, Genre: "Drama"})
	req := httptest.NewRequest(http.MethodPost, "/api/movies", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateHandlerValidationErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := newStubCatalog()
	catalog.createErr = ValidationErrors{
		{Field: "name", Message: "タイトルを入力してください。"},
		{Field: "genre", Message: "ジャンルを入力してください。"},
	}

	router := gin.New()
	router.POST("/api/movies", loginAs(auth.Identity{ID: uuid.New()}), CreateHandler(catalog))

	body, _ := json.Marshal(Input{})
	req := httptest.NewRequest(http.MethodPost, "/api/movies", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Code   string            `json:"code"`
		Errors []ValidationError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Code != "VALIDATION_FAILED" || len(payload.Errors) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUploadPosterRejectsUnsupportedMedia(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	m := &Movie{ID: uuid.New(), Name: "Seven Samurai", Year: 1954, Genre: "Drama", OwnerID: owner}
	catalog := newStubCatalog(m)
	store := newStubStorage()

	router := gin.New()
	router.POST("/api/movies/:id/poster",
		loginAs(auth.Identity{ID: owner}),
		RequireOwner(catalog),
		UploadPosterHandler(catalog, store, 1024*1024),
	)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("poster", "poster.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	// 拡張子は .jpg だが中身はテキスト
	if _, err := io.Copy(fileWriter, bytes.NewReader([]byte("plain text payload"))); err != nil {
		t.Fatalf("failed to write dummy file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/movies/"+m.ID.String()+"/poster", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "UNSUPPORTED_MEDIA" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved: %v", store.saved)
	}
}

func TestUploadPosterAcceptsPNG(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	m := &Movie{ID: uuid.New(), Name: "Seven Samurai", Year: 1954, Genre: "Drama", OwnerID: owner}
	catalog := newStubCatalog(m)
	store := newStubStorage()

	router := gin.New()
	router.POST("/api/movies/:id/poster",
		loginAs(auth.Identity{ID: owner}),
		RequireOwner(catalog),
		UploadPosterHandler(catalog, store, 1024*1024),
	)

	// 最小のPNGシグネチャ付きデータ
	pngData := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("poster", "poster.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(pngData)); err != nil {
		t.Fatalf("failed to write png data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/movies/"+m.ID.String()+"/poster", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	expectedPath := "posters/" + m.ID.String() + ".png"
	if _, saved := store.saved[expectedPath]; !saved {
		t.Fatalf("poster not saved at %s: %v", expectedPath, store.saved)
	}
	if catalog.posterPath != expectedPath {
		t.Fatalf("poster path not recorded: %s", catalog.posterPath)
	}
}
