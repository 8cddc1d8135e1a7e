package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/kv"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/service"
	"github.com/PaulBabatuyi/files-manager/internal/session"
	"github.com/PaulBabatuyi/files-manager/internal/storage"
)

const (
	ownerID    = "550e8400-e29b-41d4-a716-446655440000"
	strangerID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
)

type enqueued struct {
	topic   string
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, topic string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, enqueued{topic: topic, payload: payload})
	return "job", nil
}

func (q *fakeQueue) topics() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.topic)
	}
	return out
}

type fileEnv struct {
	svc   *service.FileService
	db    *database.MemoryDB
	fs    *storage.FilesystemStorage
	queue *fakeQueue
}

func setupFiles(t *testing.T) *fileEnv {
	t.Helper()
	fs, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	db := database.NewMemoryDB()
	q := &fakeQueue{}
	return &fileEnv{
		svc:   service.NewFileService(db, fs, q, zap.NewNop()),
		db:    db,
		fs:    fs,
		queue: q,
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func assertKind(t *testing.T, err error, kind service.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, service.KindOf(err))
	if msg != "" {
		assert.Equal(t, msg, service.MessageOf(err))
	}
}

func TestUpload_FolderCanParentFiles(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	folder, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "Images", Type: "folder"})
	require.NoError(t, err)
	assert.Empty(t, folder.LocalPath)
	assert.True(t, folder.ParentID.IsRoot())

	file, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{
		Name:     "notes.txt",
		Type:     "file",
		ParentID: models.ParentID(folder.ID),
		Data:     b64("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, folder.ID, file.ParentID.String())
	assert.NotEmpty(t, file.LocalPath)

	data, err := env.fs.Read(ctx, file.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.Empty(t, env.queue.topics(), "only images schedule jobs")
}

func TestUpload_Validation(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	plain, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "a.txt", Type: "file", Data: b64("x")})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  service.UploadRequest
		msg  string
	}{
		{"missing name", service.UploadRequest{Type: "file", Data: b64("x")}, "Missing name"},
		{"missing type", service.UploadRequest{Name: "a"}, "Missing type"},
		{"unknown type", service.UploadRequest{Name: "a", Type: "video", Data: b64("x")}, "Missing type"},
		{"missing data", service.UploadRequest{Name: "a", Type: "image"}, "Missing data"},
		{"parent not uuid", service.UploadRequest{Name: "a", Type: "folder", ParentID: "abc"}, "Parent not found"},
		{"parent absent", service.UploadRequest{Name: "a", Type: "folder", ParentID: strangerID}, "Parent not found"},
		{"parent is a file", service.UploadRequest{Name: "a", Type: "folder", ParentID: models.ParentID(plain.ID)}, "Parent not found"},
		{"invalid data", service.UploadRequest{Name: "a", Type: "file", Data: "!!not base64!!"}, "Invalid data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Upload(ctx, ownerID, tt.req)
			assertKind(t, err, service.KindBadRequest, tt.msg)
		})
	}
}

func TestUpload_ParentOwnedByOtherUser(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	folder, err := env.svc.Upload(ctx, strangerID, service.UploadRequest{Name: "theirs", Type: "folder", IsPublic: true})
	require.NoError(t, err)

	child, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "mine", Type: "folder", ParentID: models.ParentID(folder.ID)})
	require.NoError(t, err)
	assert.Equal(t, models.ParentID(folder.ID), child.ParentID)
	assert.Equal(t, ownerID, child.UserID)
}

func TestUpload_RequiresUser(t *testing.T) {
	env := setupFiles(t)

	_, err := env.svc.Upload(context.Background(), "", service.UploadRequest{Name: "p.png", Type: "image", Data: b64("x")})
	assert.True(t, errors.Is(err, service.ErrUnauthorized))
	assert.Empty(t, env.queue.topics())
}

func TestUpload_ImageEnqueuesThumbnails(t *testing.T) {
	env := setupFiles(t)

	img, err := env.svc.Upload(context.Background(), ownerID, service.UploadRequest{Name: "p.png", Type: "image", Data: b64("png")})
	require.NoError(t, err)

	require.Len(t, env.queue.jobs, 1)
	assert.Equal(t, models.TopicFile, env.queue.jobs[0].topic)
	assert.Equal(t, models.ThumbnailPayload{FileID: img.ID, UserID: ownerID}, env.queue.jobs[0].payload)
}

func TestUpload_EnqueueFailureDoesNotFail(t *testing.T) {
	env := setupFiles(t)
	env.queue.err = errors.New("queue down")

	img, err := env.svc.Upload(context.Background(), ownerID, service.UploadRequest{Name: "p.png", Type: "image", Data: b64("png")})
	require.NoError(t, err)
	assert.NotEmpty(t, img.ID)
}

func TestGetFileForViewer_MasksPrivateFiles(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	private, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "secret.txt", Type: "file", Data: b64("s")})
	require.NoError(t, err)
	public, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "open.txt", Type: "file", Data: b64("o"), IsPublic: true})
	require.NoError(t, err)

	got, err := env.svc.GetFileForViewer(ctx, private.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, private.ID, got.ID)

	_, err = env.svc.GetFileForViewer(ctx, private.ID, strangerID)
	assertKind(t, err, service.KindNotFound, "Not found")

	_, err = env.svc.GetFileForViewer(ctx, private.ID, "")
	assertKind(t, err, service.KindNotFound, "Not found")

	got, err = env.svc.GetFileForViewer(ctx, public.ID, "")
	require.NoError(t, err)
	assert.Equal(t, public.ID, got.ID)

	_, err = env.svc.GetFileForViewer(ctx, "not-an-id", ownerID)
	assertKind(t, err, service.KindNotFound, "")
}

func TestGetFileData(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	folder, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "dir", Type: "folder"})
	require.NoError(t, err)
	img, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "pic.png", Type: "image", Data: b64("original")})
	require.NoError(t, err)

	t.Run("original", func(t *testing.T) {
		content, err := env.svc.GetFileData(ctx, img, 0)
		require.NoError(t, err)
		assert.Equal(t, "original", string(content.Data))
		assert.Equal(t, "image/png", content.ContentType)
	})

	t.Run("folder has no content", func(t *testing.T) {
		_, err := env.svc.GetFileData(ctx, folder, 0)
		assertKind(t, err, service.KindBadRequest, "A folder doesn't have content")
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := env.svc.GetFileData(ctx, img, 42)
		assertKind(t, err, service.KindBadRequest, "Invalid size")
	})

	t.Run("derivative absent", func(t *testing.T) {
		_, err := env.svc.GetFileData(ctx, img, 100)
		assertKind(t, err, service.KindNotFound, "Not found")
	})

	t.Run("derivative present", func(t *testing.T) {
		require.NoError(t, env.fs.Write(ctx, service.DerivativePath(img.LocalPath, 100), []byte("small")))
		content, err := env.svc.GetFileData(ctx, img, 100)
		require.NoError(t, err)
		assert.Equal(t, "small", string(content.Data))
	})

	t.Run("derivative does not need the original", func(t *testing.T) {
		orphan := *img
		orphan.LocalPath = env.fs.NewPath()
		require.NoError(t, env.fs.Write(ctx, service.DerivativePath(orphan.LocalPath, 250), []byte("mid")))

		_, err := env.svc.GetFileData(ctx, &orphan, 0)
		assertKind(t, err, service.KindNotFound, "")

		content, err := env.svc.GetFileData(ctx, &orphan, 250)
		require.NoError(t, err)
		assert.Equal(t, "mid", string(content.Data))
	})
}

func TestPublishUnpublish(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	f, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "a.txt", Type: "file", Data: b64("a")})
	require.NoError(t, err)
	require.False(t, f.IsPublic)

	for i := 0; i < 2; i++ {
		got, err := env.svc.PublishUnpublish(ctx, f.ID, ownerID, true)
		require.NoError(t, err)
		assert.True(t, got.IsPublic)
		assert.Equal(t, f.Name, got.Name)
	}

	got, err := env.svc.PublishUnpublish(ctx, f.ID, ownerID, false)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)

	_, err = env.svc.PublishUnpublish(ctx, f.ID, strangerID, true)
	assertKind(t, err, service.KindNotFound, "Not found")

	_, err = env.svc.PublishUnpublish(ctx, f.ID, "", true)
	assertKind(t, err, service.KindUnauthorized, "Unauthorized")
}

func TestListByParent_Pagination(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	folder, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "dir", Type: "folder"})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 45; i++ {
		f, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{
			Name:     "f.txt",
			Type:     "file",
			ParentID: models.ParentID(folder.ID),
			Data:     b64("x"),
		})
		require.NoError(t, err)
		ids = append(ids, f.ID)
	}

	for page, want := range [][]string{ids[0:20], ids[20:40], ids[40:45], {}} {
		files, err := env.svc.ListByParent(ctx, ownerID, models.ParentID(folder.ID), page)
		require.NoError(t, err)
		got := make([]string, 0, len(files))
		for _, f := range files {
			got = append(got, f.ID)
		}
		assert.Equal(t, want, got, "page %d", page)
	}

	root, err := env.svc.ListByParent(ctx, ownerID, models.RootParentID, 0)
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, folder.ID, root[0].ID)
}

func TestListByParent_SharedFolderShowsVisibleChildren(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	folder, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "shared", Type: "folder", IsPublic: true})
	require.NoError(t, err)
	parent := models.ParentID(folder.ID)

	mine, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "mine.txt", Type: "file", ParentID: parent, Data: b64("a")})
	require.NoError(t, err)
	theirsPublic, err := env.svc.Upload(ctx, strangerID, service.UploadRequest{Name: "pub.txt", Type: "file", ParentID: parent, IsPublic: true, Data: b64("b")})
	require.NoError(t, err)
	_, err = env.svc.Upload(ctx, strangerID, service.UploadRequest{Name: "priv.txt", Type: "file", ParentID: parent, Data: b64("c")})
	require.NoError(t, err)

	ids := func(files []*models.FileRecord) []string {
		out := make([]string, 0, len(files))
		for _, f := range files {
			out = append(out, f.ID)
		}
		return out
	}

	files, err := env.svc.ListByParent(ctx, ownerID, parent, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID, theirsPublic.ID}, ids(files))

	files, err = env.svc.ListByParent(ctx, strangerID, parent, 0)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestListByParent_UnknownParentIsEmpty(t *testing.T) {
	env := setupFiles(t)
	ctx := context.Background()

	f, err := env.svc.Upload(ctx, ownerID, service.UploadRequest{Name: "a.txt", Type: "file", Data: b64("a")})
	require.NoError(t, err)
	private, err := env.svc.Upload(ctx, strangerID, service.UploadRequest{Name: "theirs", Type: "folder"})
	require.NoError(t, err)

	for _, parent := range []string{"garbage", strangerID, f.ID, private.ID} {
		files, err := env.svc.ListByParent(ctx, ownerID, models.ParentID(parent), 0)
		require.NoError(t, err)
		assert.NotNil(t, files)
		assert.Empty(t, files)
	}
}

type userEnv struct {
	svc   *service.UserService
	db    *database.MemoryDB
	queue *fakeQueue
	now   *time.Time
}

func setupUsers(t *testing.T) *userEnv {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env := &userEnv{db: database.NewMemoryDB(), queue: &fakeQueue{}, now: &now}
	sessions := session.NewStore(kv.NewMemoryStore(func() time.Time { return *env.now }), session.DefaultTTL)
	env.svc = service.NewUserService(env.db, sessions, env.queue, zap.NewNop()).WithHashCost(bcrypt.MinCost)
	return env
}

func TestRegister(t *testing.T) {
	env := setupUsers(t)
	ctx := context.Background()

	u, err := env.svc.Register(ctx, "a@b.com", "p")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.NotEqual(t, "p", u.PasswordHash)
	assert.Equal(t, []string{models.TopicUser}, env.queue.topics())

	_, err = env.svc.Register(ctx, "a@b.com", "other")
	assertKind(t, err, service.KindBadRequest, "Already exist")

	_, err = env.svc.Register(ctx, "", "p")
	assertKind(t, err, service.KindBadRequest, "Missing email")

	_, err = env.svc.Register(ctx, "c@d.com", "")
	assertKind(t, err, service.KindBadRequest, "Missing password")
}

func TestSessionLifecycle(t *testing.T) {
	env := setupUsers(t)
	ctx := context.Background()

	u, err := env.svc.Register(ctx, "a@b.com", "p")
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, "a@b.com", "wrong")
	assertKind(t, err, service.KindUnauthorized, "")
	_, err = env.svc.Authenticate(ctx, "nobody@b.com", "p")
	assertKind(t, err, service.KindUnauthorized, "")

	token, err := env.svc.Authenticate(ctx, "a@b.com", "p")
	require.NoError(t, err)

	me, err := env.svc.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)

	require.NoError(t, env.svc.Deauthenticate(ctx, token))
	err = env.svc.Deauthenticate(ctx, token)
	assertKind(t, err, service.KindUnauthorized, "Unauthorized")

	_, err = env.svc.CurrentUser(ctx, token)
	assertKind(t, err, service.KindUnauthorized, "")
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	env := setupUsers(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "a@b.com", "p")
	require.NoError(t, err)
	token, err := env.svc.Authenticate(ctx, "a@b.com", "p")
	require.NoError(t, err)

	*env.now = env.now.Add(24*time.Hour - time.Second)
	_, err = env.svc.CurrentUser(ctx, token)
	require.NoError(t, err)

	*env.now = env.now.Add(time.Second)
	_, err = env.svc.CurrentUser(ctx, token)
	assertKind(t, err, service.KindUnauthorized, "")
}

func TestAppService(t *testing.T) {
	db := database.NewMemoryDB()
	store := kv.NewMemoryStore(nil)
	app := service.NewAppService(store, db)
	ctx := context.Background()

	assert.Equal(t, service.Status{KV: true, DB: true}, app.Status(ctx))

	_, err := db.CreateUser(ctx, &models.User{Email: "a@b.com"})
	require.NoError(t, err)
	_, err = db.CreateFile(ctx, &models.FileRecord{UserID: ownerID, Name: "dir", Type: models.FileTypeFolder})
	require.NoError(t, err)

	stats, err := app.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.Stats{Users: 1, Files: 1}, stats)

	require.NoError(t, store.Close())
	assert.Equal(t, service.Status{KV: false, DB: true}, app.Status(ctx))
}
