package tenancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func clientConfig() Config {
	return Config{
		PrimaryKey:    "c.id",
		TenantColumn:  "c.tenant_id",
		DeletedColumn: "c.deleted_at",
		DefaultSort:   "c.created_at",
		SortColumns: map[string]string{
			"name":       "c.name",
			"created_at": "c.created_at",
		},
		SearchColumns: []string{"c.name", "c.contact_email"},
		DateColumn:    "c.created_at",
		StringFilters: map[string]string{"city": "c.city"},
		BoolFilters:   map[string]string{"active": "c.active"},
		NumberFilters: map[string]string{"tier": "c.tier"},
		EnumFilters:   map[string]string{"status": "c.status"},
	}
}

func TestBuildDefaultsToStableOrdering(t *testing.T) {
	tenant := int64(5)
	clause, err := Build(AccessFilter{TenantID: &tenant}, NewListQuery(), clientConfig(), Filters{})
	require.NoError(t, err)
	assert.Equal(t, "c.tenant_id = $1 AND c.deleted_at IS NULL", clause.Where)
	assert.Equal(t, []interface{}{int64(5)}, clause.Args)
	assert.Equal(t, "c.created_at DESC, c.id ASC", clause.OrderBy)
	assert.Equal(t, 20, clause.Limit)
	assert.Equal(t, 0, clause.Offset)
}

func TestBuildComposesSearchTypedAndDateFilters(t *testing.T) {
	tenant := int64(2)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	q := ListQuery{Page: 2, Limit: 10, SortBy: "name", SortOrder: "asc", Search: "Acme", From: &from, To: &to}
	extra := Filters{
		Bools: map[string]bool{"active": true},
		Enums: map[string]string{"status": "APPROVED"},
	}

	clause, err := Build(AccessFilter{TenantID: &tenant}, q, clientConfig(), extra)
	require.NoError(t, err)
	assert.Equal(t,
		`c.tenant_id = $1 AND c.deleted_at IS NULL AND (LOWER(c.name) LIKE $2 ESCAPE '\' OR LOWER(c.contact_email) LIKE $2 ESCAPE '\') AND c.active = $3 AND c.status = $4 AND c.created_at >= $5 AND c.created_at <= $6`,
		clause.Where)
	assert.Equal(t, []interface{}{int64(2), "%acme%", true, "APPROVED", from, to}, clause.Args)
	assert.Equal(t, "c.name ASC, c.id ASC", clause.OrderBy)
	assert.Equal(t, 10, clause.Offset)
}

func TestBuildEscapesSearchWildcards(t *testing.T) {
	cases := map[string]string{
		"100%":     `%100\%%`,
		"a_b":      `%a\_b%`,
		`back\ter`: `%back\\ter%`,
		"plain":    "%plain%",
	}
	for search, want := range cases {
		q := NewListQuery()
		q.Search = search
		clause, err := Build(AccessFilter{}, q, clientConfig(), Filters{})
		require.NoError(t, err)
		assert.Equal(t, want, clause.Args[0], "search=%q", search)
	}
}

func TestBuildIgnoresUndeclaredFilterKeys(t *testing.T) {
	tenant := int64(1)
	extra := Filters{
		Strings: map[string]string{"tenant_id": "99", "password": "x"},
		Numbers: map[string]int64{"id": 1},
	}
	clause, err := Build(AccessFilter{TenantID: &tenant}, NewListQuery(), clientConfig(), extra)
	require.NoError(t, err)
	assert.Equal(t, "c.tenant_id = $1 AND c.deleted_at IS NULL", clause.Where)
	assert.Len(t, clause.Args, 1)
}

func TestBuildUnrestrictedScope(t *testing.T) {
	clause, err := Build(AccessFilter{}, NewListQuery(), clientConfig(), Filters{})
	require.NoError(t, err)
	assert.Equal(t, "c.deleted_at IS NULL", clause.Where)
	assert.Empty(t, clause.Args)
}

func TestBuildRejectsOutOfRangeInputs(t *testing.T) {
	cfg := clientConfig()
	cases := []ListQuery{
		{Page: 0, Limit: 20},
		{Page: 1, Limit: 0},
		{Page: 1, Limit: 101},
		{Page: 1, Limit: 20, SortBy: "password_hash"},
		{Page: 1, Limit: 20, SortOrder: "sideways"},
	}
	for _, q := range cases {
		_, err := Build(AccessFilter{}, q, cfg, Filters{})
		require.Error(t, err, "query %+v", q)
		assert.Equal(t, appErrors.ErrInvalidQuery.Code, appErrors.FromError(err).Code)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	tenant := int64(4)
	extra := Filters{
		Strings: map[string]string{"city": "Nairobi"},
		Bools:   map[string]bool{"active": true},
		Enums:   map[string]string{"status": "APPROVED"},
		Numbers: map[string]int64{"tier": 2},
	}
	q := ListQuery{Page: 1, Limit: 50, Search: "a"}

	first, err := Build(AccessFilter{TenantID: &tenant}, q, clientConfig(), extra)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Build(AccessFilter{TenantID: &tenant}, q, clientConfig(), extra)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildSortingByPrimaryKeySkipsTieBreak(t *testing.T) {
	cfg := clientConfig()
	cfg.SortColumns["id"] = "c.id"
	clause, err := Build(AccessFilter{}, ListQuery{Page: 1, Limit: 20, SortBy: "id", SortOrder: "asc"}, cfg, Filters{})
	require.NoError(t, err)
	assert.Equal(t, "c.id ASC", clause.OrderBy)
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, limit, total int
		totalPages         int
		hasNext, hasPrev   bool
	}{
		{1, 20, 0, 0, false, false},
		{1, 20, 20, 1, false, false},
		{1, 20, 21, 2, true, false},
		{2, 10, 25, 3, true, true},
		{3, 10, 25, 3, false, true},
	}
	for _, tc := range cases {
		p := NewPagination(tc.page, tc.limit, tc.total)
		assert.Equal(t, tc.totalPages, p.TotalPages, "total=%d", tc.total)
		assert.Equal(t, tc.hasNext, p.HasNext, "page=%d total=%d", tc.page, tc.total)
		assert.Equal(t, tc.hasPrev, p.HasPrev, "page=%d", tc.page)
	}
}
