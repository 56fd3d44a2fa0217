package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/alv/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), DefaultCacheDir), nil)
	require.NoError(t, err)

	return s
}

func TestNew_CreatesDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", DefaultCacheDir)

	_, err := New(dir, nil)
	require.NoError(t, err)

	for _, name := range []string{logsFile, classesFile, orgsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.JSONEq(t, `{}`, string(data), name)
	}
}

func TestNew_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DefaultCacheDir)

	s, err := New(dir, nil)
	require.NoError(t, err)

	_, err = s.Put("dev", WithLogs([]models.LogEntity{{ID: "L1"}}, time.Now()))
	require.NoError(t, err)

	before, err := os.ReadFile(filepath.Join(dir, logsFile))
	require.NoError(t, err)

	s2, err := New(dir, nil)
	require.NoError(t, err)

	after, err := os.ReadFile(filepath.Join(dir, logsFile))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "reopening must not touch existing documents")
	assert.Len(t, s2.Get("dev").Logs, 1)
}

func TestGet_AbsentAliasReturnsDefaults(t *testing.T) {
	s := newStore(t)

	rec := s.Get("never-written")
	assert.NotNil(t, rec.Logs)
	assert.Empty(t, rec.Logs)
	assert.NotNil(t, rec.Paths)
	assert.Empty(t, rec.Downloaded)
	assert.True(t, rec.LastFetched.IsZero())
	assert.Nil(t, rec.SelectedOrg)
}

func TestPut_ThenGetReflectsPatch(t *testing.T) {
	s := newStore(t)
	fetched := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	logs := []models.LogEntity{
		{ID: "L1", Operation: "ApexTestHandler", LastModified: "2024-01-01T10:00:01.000+0000"},
		{ID: "L2", Operation: "Api", LastModified: "2024-01-01T09:00:00.000+0000"},
	}

	_, err := s.Put("dev", WithLogs(logs, fetched))
	require.NoError(t, err)

	rec := s.Get("dev")
	if diff := cmp.Diff(logs, rec.Logs); diff != "" {
		t.Errorf("logs mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rec.LastFetched.Equal(fetched))

	_, err = s.Put("dev", MarkDownloaded("L2", "/tmp/L2.log"))
	require.NoError(t, err)

	rec = s.Get("dev")
	assert.Equal(t, []string{"L2"}, rec.Downloaded)
	p, ok := rec.Path("L2")
	require.True(t, ok)
	assert.Equal(t, "/tmp/L2.log", p)
	assert.True(t, rec.Logs[1].Downloaded)
	assert.Equal(t, "/tmp/L2.log", rec.Logs[1].LocalPath)

	// a later listing keeps the download state
	_, err = s.Put("dev", WithLogs([]models.LogEntity{{ID: "L3"}, {ID: "L2"}}, fetched.Add(time.Minute)))
	require.NoError(t, err)

	rec = s.Get("dev")
	assert.False(t, rec.Logs[0].Downloaded)
	assert.True(t, rec.Logs[1].Downloaded)
}

func TestPut_OtherAliasesUntouched(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("dev", WithLogs([]models.LogEntity{{ID: "D1"}}, time.Now()))
	require.NoError(t, err)
	_, err = s.Put("uat", WithLogs([]models.LogEntity{{ID: "U1"}}, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "D1", s.Get("dev").Logs[0].ID)
	assert.Equal(t, "U1", s.Get("uat").Logs[0].ID)
}

func TestPut_MarkDownloadedTwiceKeepsOneID(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("dev", MarkDownloaded("L1", "/a"), MarkDownloaded("L1", "/b"))
	require.NoError(t, err)

	rec := s.Get("dev")
	assert.Equal(t, []string{"L1"}, rec.Downloaded)
	assert.Equal(t, "/b", rec.Paths["L1"])
}

func TestPut_SelectedOrg(t *testing.T) {
	s := newStore(t)
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Put("dev", WithSelectedOrg(models.OrgContext{Alias: "dev", Username: "d@x"}, at))
	require.NoError(t, err)

	rec := s.Get("dev")
	require.NotNil(t, rec.SelectedOrg)
	assert.Equal(t, "d@x", rec.SelectedOrg.Username)
	assert.True(t, rec.SelectedAt.Equal(at))
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("dev", WithLogs([]models.LogEntity{{ID: "L1"}}, time.Now()))
	require.NoError(t, err)

	rec := s.Get("dev")
	rec.Logs[0].ID = "mutated"

	assert.Equal(t, "L1", s.Get("dev").Logs[0].ID)
}

func TestCorruptDocumentTreatedAsEmpty(t *testing.T) {
	s := newStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), logsFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), orgsFile), []byte("garbage"), 0o644))

	rec := s.Get("dev")
	assert.Empty(t, rec.Logs)

	_, ok := s.OrgSnapshot(OrgListTTL)
	assert.False(t, ok)

	_, err := s.Put("dev", WithLogs([]models.LogEntity{{ID: "L1"}}, time.Now()))
	require.NoError(t, err)
	assert.Len(t, s.Get("dev").Logs, 1, "a write after corruption replaces the document")
}

func TestClear(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("dev", WithLogs([]models.LogEntity{{ID: "L1"}}, time.Now()))
	require.NoError(t, err)
	_, err = s.Put("uat", WithLogs([]models.LogEntity{{ID: "U1"}}, time.Now()))
	require.NoError(t, err)
	_, err = s.PutTestClasses("dev", []models.TestClass{{Name: "ATest"}})
	require.NoError(t, err)
	path, err := s.SaveLogBody("dev", "L1", "body")
	require.NoError(t, err)

	require.NoError(t, s.Clear("dev"))

	assert.Empty(t, s.Get("dev").Logs)
	assert.Len(t, s.Get("uat").Logs, 1)
	_, ok := s.TestClasses("dev")
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestClearAll(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("dev", WithLogs([]models.LogEntity{{ID: "L1"}}, time.Now()))
	require.NoError(t, err)
	_, err = s.PutOrgSnapshot(models.OrgList{Standard: []models.OrgContext{{Alias: "dev"}}})
	require.NoError(t, err)
	_, err = s.SaveLogBody("dev", "L1", "body")
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())

	assert.Empty(t, s.Get("dev").Logs)
	_, ok := s.OrgSnapshot(OrgListTTL)
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(s.Root(), downloadsDir))

	for _, name := range []string{logsFile, classesFile, orgsFile} {
		assert.FileExists(t, filepath.Join(s.Root(), name))
	}
}

func TestOrgSnapshot_TTL(t *testing.T) {
	s := newStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	list := models.OrgList{Standard: []models.OrgContext{{Alias: "dev", Username: "d@x", Category: models.CategoryStandard}}}
	_, err := s.PutOrgSnapshot(list)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), orgsFile))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "orgs")
	assert.JSONEq(t, "1709294400000", string(raw["timestamp"]))

	tests := []struct {
		name   string
		age    time.Duration
		wantOK bool
	}{
		{"fresh", time.Hour, true},
		{"just under ttl", OrgListTTL - time.Millisecond, true},
		{"at ttl", OrgListTTL, false},
		{"twenty five hours", 25 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return now.Add(tt.age) }

			snap, ok := s.OrgSnapshot(OrgListTTL)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, "dev", snap.Orgs.Standard[0].Alias)
			}
		})
	}

	// expired snapshots stay on disk until superseded
	_, err = os.Stat(filepath.Join(s.Root(), orgsFile))
	require.NoError(t, err)
	data2, err := os.ReadFile(filepath.Join(s.Root(), orgsFile))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(data2))
}

func TestTestClasses(t *testing.T) {
	s := newStore(t)

	_, ok := s.TestClasses("dev")
	assert.False(t, ok)

	classes := []models.TestClass{{ID: "01p1", Name: "AccountTest", Methods: []string{"testInsert"}}}
	_, err := s.PutTestClasses("dev", classes)
	require.NoError(t, err)

	got, ok := s.TestClasses("dev")
	require.True(t, ok)
	if diff := cmp.Diff(classes, got.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestPut_SerializedWithinStore(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Put("dev", MarkDownloaded(string(rune('a'+i)), "/p"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Get("dev").Downloaded, 20)
}

func TestRecord_Fresh(t *testing.T) {
	now := time.Now()

	assert.False(t, Record{}.Fresh(time.Minute, now))
	assert.True(t, Record{LastFetched: now.Add(-30 * time.Second)}.Fresh(time.Minute, now))
	assert.False(t, Record{LastFetched: now.Add(-time.Minute)}.Fresh(time.Minute, now))
}
