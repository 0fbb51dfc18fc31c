package tenancy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// Default and boundary values for list queries.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListQuery carries the caller-controlled portion of a list request. Shape
// and range validation happens upstream; Build fails fast when an invariant
// is violated anyway so upstream validation bugs surface early.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string
	From      *time.Time
	To        *time.Time
}

// NewListQuery returns a query populated with the documented defaults.
func NewListQuery() ListQuery {
	return ListQuery{Page: DefaultPage, Limit: DefaultLimit}
}

// Filters holds typed filter values keyed by the names an entity Config
// declares. Keys absent from the Config are ignored, never passed through,
// which is the defense against filter injection.
type Filters struct {
	Strings map[string]string
	Bools   map[string]bool
	Numbers map[string]int64
	Enums   map[string]string
}

// Config is the static per-entity declaration the orchestrator composes
// against: qualified column names, sortable and searchable columns, and the
// closed set of filterable fields.
type Config struct {
	PrimaryKey    string
	TenantColumn  string
	DeletedColumn string
	DefaultSort   string
	SortColumns   map[string]string
	SearchColumns []string
	DateColumn    string
	StringFilters map[string]string
	BoolFilters   map[string]string
	NumberFilters map[string]string
	EnumFilters   map[string]string
}

// Clause is the composed query fragment a repository embeds into its SELECT
// and COUNT statements.
type Clause struct {
	Where   string
	Args    []interface{}
	OrderBy string
	Limit   int
	Offset  int
}

// Build composes the access filter with the caller's query and the entity's
// typed filters, in fixed order: access ∧ search ∧ typed ∧ date range. OR is
// used only inside the multi-column search match. Ordering is stabilized by
// the primary key so page boundaries stay put across identical calls.
func Build(filter AccessFilter, q ListQuery, cfg Config, extra Filters) (Clause, error) {
	if q.Page < 1 {
		return Clause{}, appErrors.Clone(appErrors.ErrInvalidQuery, fmt.Sprintf("page must be >= 1, got %d", q.Page))
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return Clause{}, appErrors.Clone(appErrors.ErrInvalidQuery, fmt.Sprintf("limit must be within [1,%d], got %d", MaxLimit, q.Limit))
	}

	sortColumn := cfg.DefaultSort
	if q.SortBy != "" {
		column, ok := cfg.SortColumns[q.SortBy]
		if !ok {
			return Clause{}, appErrors.Clone(appErrors.ErrInvalidQuery, fmt.Sprintf("unsortable field %q", q.SortBy))
		}
		sortColumn = column
	}
	if sortColumn == "" {
		sortColumn = cfg.PrimaryKey
	}
	order := "DESC"
	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
	case "asc":
		order = "ASC"
	default:
		return Clause{}, appErrors.Clone(appErrors.ErrInvalidQuery, fmt.Sprintf("invalid sort order %q", q.SortOrder))
	}

	conds, args := filter.Predicates(cfg.TenantColumn, cfg.DeletedColumn, 0)
	if len(conds) == 0 {
		conds = append(conds, "1=1")
	}

	if q.Search != "" && len(cfg.SearchColumns) > 0 {
		matches := make([]string, 0, len(cfg.SearchColumns))
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(q.Search))+"%")
		placeholder := len(args)
		for _, column := range cfg.SearchColumns {
			matches = append(matches, fmt.Sprintf(`LOWER(%s) LIKE $%d ESCAPE '\'`, column, placeholder))
		}
		conds = append(conds, "("+strings.Join(matches, " OR ")+")")
	}

	// Filter keys are walked in sorted order so the rendered SQL is stable.
	for _, key := range sortedKeys(extra.Strings) {
		column, ok := cfg.StringFilters[key]
		if !ok {
			continue
		}
		args = append(args, extra.Strings[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	for _, key := range sortedKeys(extra.Bools) {
		column, ok := cfg.BoolFilters[key]
		if !ok {
			continue
		}
		args = append(args, extra.Bools[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	for _, key := range sortedKeys(extra.Numbers) {
		column, ok := cfg.NumberFilters[key]
		if !ok {
			continue
		}
		args = append(args, extra.Numbers[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	for _, key := range sortedKeys(extra.Enums) {
		column, ok := cfg.EnumFilters[key]
		if !ok {
			continue
		}
		args = append(args, extra.Enums[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if cfg.DateColumn != "" {
		if q.From != nil {
			args = append(args, *q.From)
			conds = append(conds, fmt.Sprintf("%s >= $%d", cfg.DateColumn, len(args)))
		}
		if q.To != nil {
			args = append(args, *q.To)
			conds = append(conds, fmt.Sprintf("%s <= $%d", cfg.DateColumn, len(args)))
		}
	}

	orderBy := fmt.Sprintf("%s %s", sortColumn, order)
	if cfg.PrimaryKey != "" && sortColumn != cfg.PrimaryKey {
		orderBy += fmt.Sprintf(", %s ASC", cfg.PrimaryKey)
	}

	return Clause{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: orderBy,
		Limit:   q.Limit,
		Offset:  (q.Page - 1) * q.Limit,
	}, nil
}

// likeEscaper neutralizes LIKE metacharacters so search terms match
// literally instead of acting as wildcards.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Pagination contains the metadata returned alongside list items.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination computes consistent pagination metadata for any total >= 0.
func NewPagination(page, limit, total int) *Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := (total + limit - 1) / limit
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
