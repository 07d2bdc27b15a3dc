package learnstream

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("learnstream: not found")

	// ErrAlreadyExists indicates the entity already exists.
	ErrAlreadyExists = errors.New("learnstream: already exists")

	// ErrInvalidQuery indicates the query is invalid.
	ErrInvalidQuery = errors.New("learnstream: invalid query")
)

// ReadModelRepository provides generic CRUD operations for read models.
// T is the read model type.
type ReadModelRepository[T any] interface {
	// Get retrieves a read model by ID.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*T, error)

	// Find queries read models with the given criteria.
	Find(ctx context.Context, query Query) ([]*T, error)

	// FindOne returns the first read model matching the query.
	// Returns ErrNotFound if no match.
	FindOne(ctx context.Context, query Query) (*T, error)

	// Count returns the number of read models matching the query filters.
	Count(ctx context.Context, query Query) (int64, error)

	// Insert creates a new read model.
	// Returns ErrAlreadyExists if ID already exists.
	Insert(ctx context.Context, model *T) error

	// Update modifies an existing read model.
	// Returns ErrNotFound if not found.
	Update(ctx context.Context, id string, updateFn func(*T)) error

	// Upsert creates or updates a read model.
	Upsert(ctx context.Context, model *T) error

	// Delete removes a read model by ID.
	// Returns ErrNotFound if not found.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes all read models matching the query filters.
	// Returns the number of deleted models.
	DeleteMany(ctx context.Context, query Query) (int64, error)

	// Clear removes all read models.
	Clear(ctx context.Context) error
}

// Query represents a query for read models.
type Query struct {
	// Filters to apply.
	Filters []Filter

	// Ordering criteria.
	OrderBy []OrderBy

	// Maximum number of results to return.
	// 0 means no limit.
	Limit int

	// Number of results to skip.
	Offset int
}

// NewQuery creates a new empty Query.
func NewQuery() *Query {
	return &Query{}
}

// Where adds a filter condition.
func (q *Query) Where(field string, op FilterOp, value interface{}) *Query {
	q.Filters = append(q.Filters, Filter{
		Field: field,
		Op:    op,
		Value: value,
	})
	return q
}

// OrderByAsc adds ascending order.
func (q *Query) OrderByAsc(field string) *Query {
	q.OrderBy = append(q.OrderBy, OrderBy{Field: field})
	return q
}

// OrderByDesc adds descending order.
func (q *Query) OrderByDesc(field string) *Query {
	q.OrderBy = append(q.OrderBy, OrderBy{Field: field, Desc: true})
	return q
}

// WithLimit sets the maximum number of results.
func (q *Query) WithLimit(limit int) *Query {
	q.Limit = limit
	return q
}

// WithOffset sets the number of results to skip.
func (q *Query) WithOffset(offset int) *Query {
	q.Offset = offset
	return q
}

// WithPagination sets limit and offset for pagination.
func (q *Query) WithPagination(page, pageSize int) *Query {
	q.Limit = pageSize
	q.Offset = (page - 1) * pageSize
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Build returns a copy of the query (useful for chaining).
func (q *Query) Build() Query {
	return *q
}

// Filter represents a query filter condition.
type Filter struct {
	// Field is the field name to filter on. Matches either the struct
	// field name or its json tag.
	Field string

	// Op is the comparison operator.
	Op FilterOp

	// Value is the value to compare against.
	Value interface{}
}

// FilterOp represents a filter operation.
type FilterOp string

const (
	// FilterOpEq matches equal values.
	FilterOpEq FilterOp = "="

	// FilterOpNe matches not equal values.
	FilterOpNe FilterOp = "!="

	// FilterOpGt matches greater than values.
	FilterOpGt FilterOp = ">"

	// FilterOpGte matches greater than or equal values.
	FilterOpGte FilterOp = ">="

	// FilterOpLt matches less than values.
	FilterOpLt FilterOp = "<"

	// FilterOpLte matches less than or equal values.
	FilterOpLte FilterOp = "<="

	// FilterOpIn matches any value in a list.
	FilterOpIn FilterOp = "IN"

	// FilterOpLike matches substrings case-insensitively.
	FilterOpLike FilterOp = "LIKE"
)

// OrderBy represents a sort order.
type OrderBy struct {
	// Field is the field name to sort by.
	Field string

	// Desc specifies descending order.
	Desc bool
}

// InMemoryRepository provides an in-memory implementation of
// ReadModelRepository with working filter and sort support. Field names
// in queries resolve against struct field names or json tags.
type InMemoryRepository[T any] struct {
	data  map[string]*T
	mu    sync.RWMutex
	getID func(*T) string
}

// NewInMemoryRepository creates a new in-memory repository.
// The getID function extracts the ID from a read model.
func NewInMemoryRepository[T any](getID func(*T) string) *InMemoryRepository[T] {
	return &InMemoryRepository[T]{
		data:  make(map[string]*T),
		getID: getID,
	}
}

// Get retrieves a read model by ID.
func (r *InMemoryRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if model, ok := r.data[id]; ok {
		return model, nil
	}
	return nil, ErrNotFound
}

// Find queries read models with the given criteria.
func (r *InMemoryRepository[T]) Find(ctx context.Context, query Query) ([]*T, error) {
	r.mu.RLock()
	matched, err := r.match(query.Filters)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if err := sortModels(matched, query.OrderBy); err != nil {
		return nil, err
	}

	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			return []*T{}, nil
		}
		matched = matched[query.Offset:]
	}

	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}

	return matched, nil
}

// FindOne returns the first read model matching the query.
func (r *InMemoryRepository[T]) FindOne(ctx context.Context, query Query) (*T, error) {
	query.Limit = 1
	results, err := r.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results[0], nil
}

// Count returns the number of read models matching the query filters.
func (r *InMemoryRepository[T]) Count(ctx context.Context, query Query) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.match(query.Filters)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Insert creates a new read model.
func (r *InMemoryRepository[T]) Insert(ctx context.Context, model *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.getID(model)
	if _, exists := r.data[id]; exists {
		return ErrAlreadyExists
	}

	r.data[id] = model
	return nil
}

// Update modifies an existing read model.
func (r *InMemoryRepository[T]) Update(ctx context.Context, id string, updateFn func(*T)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	model, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}

	updateFn(model)
	return nil
}

// Upsert creates or updates a read model.
func (r *InMemoryRepository[T]) Upsert(ctx context.Context, model *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.getID(model)] = model
	return nil
}

// Delete removes a read model by ID.
func (r *InMemoryRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[id]; !exists {
		return ErrNotFound
	}

	delete(r.data, id)
	return nil
}

// DeleteMany removes all read models matching the query filters.
func (r *InMemoryRepository[T]) DeleteMany(ctx context.Context, query Query) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched, err := r.match(query.Filters)
	if err != nil {
		return 0, err
	}

	for _, model := range matched {
		delete(r.data, r.getID(model))
	}
	return int64(len(matched)), nil
}

// Clear removes all read models.
func (r *InMemoryRepository[T]) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = make(map[string]*T)
	return nil
}

// Len returns the number of items in the repository.
func (r *InMemoryRepository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// GetAll returns all read models in the repository.
func (r *InMemoryRepository[T]) GetAll(ctx context.Context) ([]*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*T, 0, len(r.data))
	for _, model := range r.data {
		results = append(results, model)
	}
	return results, nil
}

// match returns all models passing every filter. Caller holds the lock.
func (r *InMemoryRepository[T]) match(filters []Filter) ([]*T, error) {
	results := make([]*T, 0, len(r.data))
	for _, model := range r.data {
		ok, err := matches(model, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, model)
		}
	}
	return results, nil
}

func matches[T any](model *T, filters []Filter) (bool, error) {
	for _, f := range filters {
		value, ok := fieldValue(model, f.Field)
		if !ok {
			return false, fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, f.Field)
		}

		pass, err := compare(value, f.Op, f.Value)
		if err != nil {
			return false, err
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

// fieldValue looks up a struct field by name or json tag.
func fieldValue(model interface{}, field string) (interface{}, bool) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == field {
			return v.Field(i).Interface(), true
		}
		tag := strings.Split(sf.Tag.Get("json"), ",")[0]
		if tag != "" && tag == field {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}

func compare(value interface{}, op FilterOp, target interface{}) (bool, error) {
	switch op {
	case FilterOpEq:
		return reflect.DeepEqual(value, target), nil
	case FilterOpNe:
		return !reflect.DeepEqual(value, target), nil
	case FilterOpIn:
		tv := reflect.ValueOf(target)
		if tv.Kind() != reflect.Slice {
			return false, fmt.Errorf("%w: IN requires a slice value", ErrInvalidQuery)
		}
		for i := 0; i < tv.Len(); i++ {
			if reflect.DeepEqual(value, tv.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	case FilterOpLike:
		s, ok1 := value.(string)
		sub, ok2 := target.(string)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("%w: LIKE requires string operands", ErrInvalidQuery)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
	case FilterOpGt, FilterOpGte, FilterOpLt, FilterOpLte:
		c, err := compareOrdered(value, target)
		if err != nil {
			return false, err
		}
		switch op {
		case FilterOpGt:
			return c > 0, nil
		case FilterOpGte:
			return c >= 0, nil
		case FilterOpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	default:
		return false, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, op)
	}
}

func compareOrdered(a, b interface{}) (int, error) {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)

	switch av.Kind() {
	case reflect.String:
		if bv.Kind() != reflect.String {
			break
		}
		return strings.Compare(av.String(), bv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch bv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return compareNumbers(float64(av.Int()), float64(bv.Int())), nil
		case reflect.Float32, reflect.Float64:
			return compareNumbers(float64(av.Int()), bv.Float()), nil
		}
	case reflect.Float32, reflect.Float64:
		switch bv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return compareNumbers(av.Float(), float64(bv.Int())), nil
		case reflect.Float32, reflect.Float64:
			return compareNumbers(av.Float(), bv.Float()), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrInvalidQuery, a, b)
}

func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// sortModels sorts in place by the given ordering criteria.
func sortModels[T any](models []*T, orderBy []OrderBy) error {
	if len(orderBy) == 0 {
		return nil
	}

	var sortErr error
	sort.SliceStable(models, func(i, j int) bool {
		for _, o := range orderBy {
			vi, ok1 := fieldValue(models[i], o.Field)
			vj, ok2 := fieldValue(models[j], o.Field)
			if !ok1 || !ok2 {
				if sortErr == nil {
					sortErr = fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, o.Field)
				}
				return false
			}

			c, err := compareOrderedOrTime(vi, vj)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

func compareOrderedOrTime(a, b interface{}) (int, error) {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Compare(bt), nil
	}
	return compareOrdered(a, b)
}
