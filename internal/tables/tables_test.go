package tables

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/database"
	"github.com/assoc-site/backend/pkg/remote"
)

func checkSchema[T any](t *testing.T, s remote.Schema[T]) {
	t.Helper()
	var item T
	assert.Len(t, s.Values(&item), len(s.Columns), "values of %s", s.Table)
	assert.Len(t, s.Dest(&item), len(s.Columns), "dest of %s", s.Table)

	sql := database.SetupSQL(s.Table)
	require.NotEmpty(t, sql, "setup sql for %s", s.Table)
	for _, c := range s.Columns {
		assert.True(t, strings.Contains(sql, "\n    "+c+" "), "%s.%s missing from migration", s.Table, c)
	}
}

func TestSchemasMatchMigrations(t *testing.T) {
	checkSchema(t, Members)
	checkSchema(t, Events)
	checkSchema(t, Courses)
	checkSchema(t, Articles)
	checkSchema(t, TherapyPrograms)
	checkSchema(t, ForParentArticles)
	checkSchema(t, MembershipForms)
	checkSchema(t, ContactForms)
	checkSchema(t, Reservations)
	checkSchema(t, EventRegistrations)
}

func TestValuesNeverSendNilLists(t *testing.T) {
	vals := Members.Values(&models.Member{Name: "Dana"})
	assert.Equal(t, []string{}, vals[6])

	vals = Courses.Values(&models.Course{Title: "ABA"})
	assert.Equal(t, []models.Section{}, vals[8])
}

func TestReviewDefaultsToPending(t *testing.T) {
	vals := ContactForms.Values(&models.ContactForm{Name: "Omar"})
	assert.Equal(t, "pending", vals[5])
}

func TestEventBucketDefaultsToUpcoming(t *testing.T) {
	vals := Events.Values(&models.Event{Title: "Autism Day"})
	assert.Equal(t, "upcoming", vals[9])

	vals = Events.Values(&models.Event{Title: "Autism Day", Bucket: models.BucketPast})
	assert.Equal(t, "past", vals[9])
}

func TestAfterScanRebuildsImage(t *testing.T) {
	m := models.Member{Image: models.FileRef{URL: "https://x/members/a.jpg", StoragePath: "members/a.jpg"}}
	Members.AfterScan(&m)
	assert.True(t, m.Image.Uploaded)
	assert.Equal(t, "a.jpg", m.Image.Name)

	var empty models.Member
	Members.AfterScan(&empty)
	assert.False(t, empty.Image.Uploaded)
}
