package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// memIncidentRepo is an in-memory IncidentRepository with the same write
// guards as the SQL implementation.
type memIncidentRepo struct {
	mu        sync.Mutex
	nextID    int64
	incidents map[int64]*domain.Incident
}

func newMemIncidentRepo() *memIncidentRepo {
	return &memIncidentRepo{incidents: map[int64]*domain.Incident{}}
}

func (r *memIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	incident.ID = r.nextID
	incident.CreatedAt = now
	incident.UpdatedAt = now
	clone := *incident
	r.incidents[incident.ID] = &clone
	return nil
}

func (r *memIncidentRepo) GetByID(_ context.Context, id int64, _ bool) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *incident
	return &clone, nil
}

func (r *memIncidentRepo) List(_ context.Context, filter repository.IncidentFilter, _ bool) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Incident
	for _, incident := range r.incidents {
		if matchesFilter(incident, filter) {
			result = append(result, *incident)
		}
	}
	// newest first
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (r *memIncidentRepo) Update(_ context.Context, id int64, patch repository.IncidentPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return false, nil
	}
	if patch.ExpectedStatus != nil && incident.Status != *patch.ExpectedStatus {
		return false, nil
	}
	if patch.Title != nil {
		incident.Title = *patch.Title
	}
	if patch.Description != nil {
		incident.Description = *patch.Description
	}
	if patch.Status != nil {
		incident.Status = *patch.Status
	}
	if patch.CategoryID != nil {
		incident.CategoryID = *patch.CategoryID
	}
	if patch.PriorityID != nil {
		incident.PriorityID = *patch.PriorityID
	}
	incident.UpdatedAt = time.Now()
	return true, nil
}

func (r *memIncidentRepo) ChangeStatus(_ context.Context, id int64, from, to domain.IncidentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok || incident.Status != from {
		return false, nil
	}
	incident.Status = to
	incident.UpdatedAt = time.Now()
	return true, nil
}

func (r *memIncidentRepo) Assign(_ context.Context, id int64, assigneeID *int64, forceInProgress bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok || incident.Status == domain.IncidentStatusClosed {
		return false, nil
	}
	incident.AssigneeID = assigneeID
	if forceInProgress {
		incident.Status = domain.IncidentStatusInProgress
	}
	incident.UpdatedAt = time.Now()
	return true, nil
}

func (r *memIncidentRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[id]; !ok {
		return false, nil
	}
	delete(r.incidents, id)
	return true, nil
}

func (r *memIncidentRepo) Statistics(_ context.Context, filter repository.IncidentFilter) (*domain.IncidentStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.IncidentStatistics{
		ByStatus:   map[domain.IncidentStatus]int64{},
		ByCategory: map[string]int64{},
		ByPriority: map[string]int64{},
	}
	var closedHours []float64
	for _, incident := range r.incidents {
		if !matchesFilter(incident, filter) {
			continue
		}
		stats.Total++
		stats.ByStatus[incident.Status]++
		stats.ByCategory["uncategorized"]++
		stats.ByPriority["unprioritized"]++
		if incident.Status == domain.IncidentStatusClosed {
			closedHours = append(closedHours, incident.UpdatedAt.Sub(incident.CreatedAt).Hours())
		}
	}
	if len(closedHours) > 0 {
		var sum float64
		for _, h := range closedHours {
			sum += h
		}
		avg := sum / float64(len(closedHours))
		stats.AverageResolutionHours = &avg
	}
	return stats, nil
}

func matchesFilter(incident *domain.Incident, filter repository.IncidentFilter) bool {
	if filter.Status != nil && incident.Status != *filter.Status {
		return false
	}
	if filter.ReporterID != nil && incident.ReporterID != *filter.ReporterID {
		return false
	}
	if filter.AssigneeID != nil && (incident.AssigneeID == nil || *incident.AssigneeID != *filter.AssigneeID) {
		return false
	}
	if filter.CategoryID != nil && incident.CategoryID != *filter.CategoryID {
		return false
	}
	if filter.PriorityID != nil && incident.PriorityID != *filter.PriorityID {
		return false
	}
	if filter.From != nil && incident.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && incident.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

// memCategoryRepo serves active classifications for create-time checks.
type memCategoryRepo struct {
	categories map[int64]*domain.Category
}

func (r *memCategoryRepo) Create(_ context.Context, c *domain.Category) error { return nil }
func (r *memCategoryRepo) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	if c, ok := r.categories[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *memCategoryRepo) List(_ context.Context, _ bool) ([]domain.Category, error) {
	return nil, nil
}
func (r *memCategoryRepo) Update(_ context.Context, _ *domain.Category) error { return nil }
func (r *memCategoryRepo) Deactivate(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

type memPriorityRepo struct {
	priorities map[int64]*domain.Priority
}

func (r *memPriorityRepo) Create(_ context.Context, p *domain.Priority) error { return nil }
func (r *memPriorityRepo) GetByID(_ context.Context, id int64) (*domain.Priority, error) {
	if p, ok := r.priorities[id]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *memPriorityRepo) List(_ context.Context, _ bool) ([]domain.Priority, error) {
	return nil, nil
}
func (r *memPriorityRepo) Update(_ context.Context, _ *domain.Priority) error { return nil }
func (r *memPriorityRepo) Deactivate(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *recordingDispatcher) typesSeen() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		types = append(types, e.Type)
	}
	return types
}

type fixture struct {
	svc        *IncidentService
	repo       *memIncidentRepo
	dispatcher *recordingDispatcher
}

func newFixture() *fixture {
	repo := newMemIncidentRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewIncidentService(IncidentDependencies{
		IncidentRepo: repo,
		CategoryRepo: &memCategoryRepo{categories: map[int64]*domain.Category{
			1: {ID: 1, Name: "Hardware", IsActive: true},
			2: {ID: 2, Name: "Software", IsActive: true},
			3: {ID: 3, Name: "Legacy", IsActive: false},
		}},
		PriorityRepo: &memPriorityRepo{priorities: map[int64]*domain.Priority{
			1: {ID: 1, Name: "High", Level: 1, IsActive: true},
			2: {ID: 2, Name: "Low", Level: 3, IsActive: true},
		}},
		Dispatcher: dispatcher,
	})
	return &fixture{svc: svc, repo: repo, dispatcher: dispatcher}
}

func validInput() IncidentCreateInput {
	return IncidentCreateInput{
		Title:      "Printer not working",
		ReporterID: 1,
		CategoryID: 2,
		PriorityID: 1,
	}
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.Positive(t, id)

	incident, err := f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, "Printer not working", incident.Title)
	assert.Equal(t, domain.IncidentStatusOpen, incident.Status)
	assert.Nil(t, incident.AssigneeID)
	assert.Equal(t, int64(1), incident.ReporterID)
	assert.Equal(t, incident.CreatedAt, incident.UpdatedAt)
	assert.Equal(t, []events.EventType{events.EventIncidentCreated}, f.dispatcher.typesSeen())
}

func TestCreateNormalizesWhitespace(t *testing.T) {
	f := newFixture()
	input := validInput()
	input.Title = "  Printer not working  "
	input.Description = "  paper jam  "

	id, err := f.svc.Create(context.Background(), input)
	require.NoError(t, err)

	incident, err := f.svc.GetByID(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, "Printer not working", incident.Title)
	assert.Equal(t, "paper jam", incident.Description)
}

func TestCreateTitleBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		length int
		ok     bool
	}{
		{"four chars fails", 4, false},
		{"five chars succeeds", 5, true},
		{"one fifty succeeds", 150, true},
		{"one fifty one fails", 151, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			input := validInput()
			input.Title = strings.Repeat("a", tc.length)
			_, err := f.svc.Create(context.Background(), input)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsValidationError(err))
			}
		})
	}
}

func TestCreateTitleCharset(t *testing.T) {
	f := newFixture()

	input := validInput()
	input.Title = "Impresora dañada: ¿qué pasó?"
	_, err := f.svc.Create(context.Background(), input)
	assert.NoError(t, err)

	input.Title = "DROP TABLE <incidents>"
	_, err = f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCreateDescriptionTooLong(t *testing.T) {
	f := newFixture()
	input := validInput()
	input.Description = strings.Repeat("x", 5001)
	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCreateReporterCannotBeAssignee(t *testing.T) {
	f := newFixture()
	input := validInput()
	assignee := input.ReporterID
	input.AssigneeID = &assignee
	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCreateRejectsInactiveCategory(t *testing.T) {
	f := newFixture()
	input := validInput()
	input.CategoryID = 3
	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCreateRejectsUnknownPriority(t *testing.T) {
	f := newFixture()
	input := validInput()
	input.PriorityID = 99
	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCreateRejectsInvalidStatus(t *testing.T) {
	f := newFixture()
	input := validInput()
	bogus := domain.IncidentStatus("resolved")
	input.Status = &bogus
	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGetByIDValidation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetByID(context.Background(), 0, false)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = f.svc.GetByID(context.Background(), 42, false)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestChangeStatusMatrix(t *testing.T) {
	statuses := []domain.IncidentStatus{
		domain.IncidentStatusOpen,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusClosed,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			f := newFixture()
			ctx := context.Background()
			input := validInput()
			input.Status = &from
			id, err := f.svc.Create(ctx, input)
			require.NoError(t, err)

			err = f.svc.ChangeStatus(ctx, id, to)
			if domain.CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
			} else {
				assert.True(t, apperrors.IsValidationError(err), "%s -> %s should be illegal", from, to)
			}
		}
	}
}

func TestChangeStatusNotFound(t *testing.T) {
	f := newFixture()
	err := f.svc.ChangeStatus(context.Background(), 42, domain.IncidentStatusClosed)
	assert.True(t, apperrors.IsNotFound(err))
}

// stalingRepo mutates the record after the read, before the guarded write,
// mimicking a racing writer.
type stalingRepo struct {
	*memIncidentRepo
	flipTo domain.IncidentStatus
}

func (r *stalingRepo) GetByID(ctx context.Context, id int64, includeRelations bool) (*domain.Incident, error) {
	incident, err := r.memIncidentRepo.GetByID(ctx, id, includeRelations)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.incidents[id].Status = r.flipTo
	r.mu.Unlock()
	return incident, nil
}

func TestChangeStatusConcurrentConflict(t *testing.T) {
	base := newMemIncidentRepo()
	repo := &stalingRepo{memIncidentRepo: base, flipTo: domain.IncidentStatusClosed}
	svc := NewIncidentService(IncidentDependencies{
		IncidentRepo: repo,
		CategoryRepo: &memCategoryRepo{categories: map[int64]*domain.Category{
			2: {ID: 2, Name: "Software", IsActive: true},
		}},
		PriorityRepo: &memPriorityRepo{priorities: map[int64]*domain.Priority{
			1: {ID: 1, Name: "High", Level: 1, IsActive: true},
		}},
	})
	ctx := context.Background()

	id, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// Validation reads "open" and approves open -> in_progress, but the
	// stored row flips to "closed" before the conditional write lands.
	err = svc.ChangeStatus(ctx, id, domain.IncidentStatusInProgress)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestAssignConcurrentCloseConflict(t *testing.T) {
	base := newMemIncidentRepo()
	repo := &stalingRepo{memIncidentRepo: base, flipTo: domain.IncidentStatusClosed}
	svc := NewIncidentService(IncidentDependencies{
		IncidentRepo: repo,
		CategoryRepo: &memCategoryRepo{categories: map[int64]*domain.Category{
			2: {ID: 2, Name: "Software", IsActive: true},
		}},
		PriorityRepo: &memPriorityRepo{priorities: map[int64]*domain.Priority{
			1: {ID: 1, Name: "High", Level: 1, IsActive: true},
		}},
	})
	ctx := context.Background()

	id, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// The incident closes between the read and the guarded assignment.
	assignee := int64(5)
	_, err = svc.Assign(ctx, id, &assignee)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestAssignUnassignedForcesInProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	assignee := int64(5)
	ok, err := f.svc.Assign(ctx, id, &assignee)
	require.NoError(t, err)
	assert.True(t, ok)

	incident, err := f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInProgress, incident.Status)
	require.NotNil(t, incident.AssigneeID)
	assert.Equal(t, assignee, *incident.AssigneeID)
}

func TestAssignNullAlwaysUnassigns(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	assignee := int64(5)
	_, err = f.svc.Assign(ctx, id, &assignee)
	require.NoError(t, err)

	ok, err := f.svc.Assign(ctx, id, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	incident, err := f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	assert.Nil(t, incident.AssigneeID)
	// unassigning does not touch status
	assert.Equal(t, domain.IncidentStatusInProgress, incident.Status)
}

func TestAssignClosedRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	closed := domain.IncidentStatusClosed
	input := validInput()
	input.Status = &closed
	id, err := f.svc.Create(ctx, input)
	require.NoError(t, err)

	assignee := int64(5)
	_, err = f.svc.Assign(ctx, id, &assignee)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = f.svc.Assign(ctx, id, nil)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestAssignNotFound(t *testing.T) {
	f := newFixture()
	assignee := int64(5)
	_, err := f.svc.Assign(context.Background(), 42, &assignee)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteOnlyWhenClosed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	err = f.svc.Delete(ctx, id)
	assert.True(t, apperrors.IsValidationError(err))

	require.NoError(t, f.svc.ChangeStatus(ctx, id, domain.IncidentStatusClosed))
	require.NoError(t, f.svc.Delete(ctx, id))

	_, err = f.svc.GetByID(ctx, id, false)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture()
	err := f.svc.Delete(context.Background(), 42)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdatePartialFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	newTitle := "Printer still not working"
	require.NoError(t, f.svc.Update(ctx, id, IncidentUpdateInput{Title: &newTitle}))

	incident, err := f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, newTitle, incident.Title)
	assert.Equal(t, domain.IncidentStatusOpen, incident.Status)
}

func TestUpdateValidatesSuppliedFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	short := "abc"
	err = f.svc.Update(ctx, id, IncidentUpdateInput{Title: &short})
	assert.True(t, apperrors.IsValidationError(err))

	badStatus := domain.IncidentStatus("archived")
	err = f.svc.Update(ctx, id, IncidentUpdateInput{Status: &badStatus})
	assert.True(t, apperrors.IsValidationError(err))

	// open -> open is never legal
	same := domain.IncidentStatusOpen
	err = f.svc.Update(ctx, id, IncidentUpdateInput{Status: &same})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestUpdateRejectsInactiveClassification(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	inactive := int64(3)
	err = f.svc.Update(ctx, id, IncidentUpdateInput{CategoryID: &inactive})
	assert.True(t, apperrors.IsValidationError(err))

	unknown := int64(99)
	err = f.svc.Update(ctx, id, IncidentUpdateInput{PriorityID: &unknown})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture()
	title := "Valid title here"
	err := f.svc.Update(context.Background(), 42, IncidentUpdateInput{Title: &title})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListFilterValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bad := int64(-1)
	_, err := f.svc.List(ctx, IncidentListFilter{ReporterID: &bad}, false)
	assert.True(t, apperrors.IsValidationError(err))

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = f.svc.List(ctx, IncidentListFilter{From: &from, To: &to}, false)
	assert.True(t, apperrors.IsValidationError(err))

	bogus := domain.IncidentStatus("pending")
	_, err = f.svc.List(ctx, IncidentListFilter{Status: &bogus}, false)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	f.repo.mu.Lock()
	f.repo.incidents[first].CreatedAt = time.Now().Add(-time.Hour)
	f.repo.mu.Unlock()

	second, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	incidents, err := f.svc.List(ctx, IncidentListFilter{}, false)
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, second, incidents[0].ID)
	assert.Equal(t, first, incidents[1].ID)
}

// fakeStatsCache records lookups and stores entries in a plain map.
type fakeStatsCache struct {
	entries map[string]*domain.IncidentStatistics
	hits    int
	sets    int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: map[string]*domain.IncidentStatistics{}}
}

func (c *fakeStatsCache) Get(_ context.Context, key string) (*domain.IncidentStatistics, bool) {
	stats, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return stats, ok
}

func (c *fakeStatsCache) Set(_ context.Context, key string, stats *domain.IncidentStatistics) {
	c.sets++
	c.entries[key] = stats
}

func TestStatisticsAverageOverClosedOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	closedID, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.ChangeStatus(ctx, closedID, domain.IncidentStatusClosed))

	// Pin the closed incident to a three hour resolution window.
	f.repo.mu.Lock()
	created := time.Now().Add(-3 * time.Hour)
	f.repo.incidents[closedID].CreatedAt = created
	f.repo.incidents[closedID].UpdatedAt = created.Add(3 * time.Hour)
	f.repo.mu.Unlock()

	stats, err := f.svc.Statistics(ctx, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[domain.IncidentStatusOpen])
	assert.Equal(t, int64(1), stats.ByStatus[domain.IncidentStatusClosed])
	require.NotNil(t, stats.AverageResolutionHours)
	assert.InDelta(t, 3.0, *stats.AverageResolutionHours, 0.01)
}

func TestStatisticsNoClosedOmitsAverage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Nil(t, stats.AverageResolutionHours)
}

func TestStatisticsEmptySet(t *testing.T) {
	f := newFixture()
	stats, err := f.svc.Statistics(context.Background(), StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.Empty(t, stats.ByStatus)
	assert.Nil(t, stats.AverageResolutionHours)
}

func TestStatisticsServedFromCache(t *testing.T) {
	repo := newMemIncidentRepo()
	cache := newFakeStatsCache()
	svc := NewIncidentService(IncidentDependencies{
		IncidentRepo: repo,
		CategoryRepo: &memCategoryRepo{categories: map[int64]*domain.Category{
			2: {ID: 2, Name: "Software", IsActive: true},
		}},
		PriorityRepo: &memPriorityRepo{priorities: map[int64]*domain.Priority{
			1: {ID: 1, Name: "High", Level: 1, IsActive: true},
		}},
		StatsCache: cache,
	})
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	first, err := svc.Statistics(ctx, StatsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// New writes are invisible until the entry expires.
	_, err = svc.Create(ctx, validInput())
	require.NoError(t, err)

	second, err := svc.Statistics(ctx, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Total, second.Total)
}

func TestStatisticsFilterValidation(t *testing.T) {
	f := newFixture()
	from := time.Now()
	to := from.Add(-time.Minute)
	_, err := f.svc.Statistics(context.Background(), StatsFilter{From: &from, To: &to})
	assert.True(t, apperrors.IsValidationError(err))

	bad := int64(0)
	_, err = f.svc.Statistics(context.Background(), StatsFilter{ReporterID: &bad})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.svc.Create(ctx, IncidentCreateInput{
		Title:      "Printer not working",
		ReporterID: 1,
		CategoryID: 2,
		PriorityID: 1,
	})
	require.NoError(t, err)

	incident, err := f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	require.Equal(t, domain.IncidentStatusOpen, incident.Status)
	require.Nil(t, incident.AssigneeID)

	assignee := int64(5)
	_, err = f.svc.Assign(ctx, id, &assignee)
	require.NoError(t, err)

	incident, err = f.svc.GetByID(ctx, id, false)
	require.NoError(t, err)
	require.Equal(t, domain.IncidentStatusInProgress, incident.Status)
	require.Equal(t, assignee, *incident.AssigneeID)

	require.NoError(t, f.svc.ChangeStatus(ctx, id, domain.IncidentStatusClosed))
	require.NoError(t, f.svc.Delete(ctx, id))

	fresh, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.ChangeStatus(ctx, fresh, domain.IncidentStatusInProgress))

	// in_progress -> open is legal, but a second open -> open is not
	require.NoError(t, f.svc.ChangeStatus(ctx, fresh, domain.IncidentStatusOpen))
	err = f.svc.ChangeStatus(ctx, fresh, domain.IncidentStatusOpen)
	assert.True(t, apperrors.IsValidationError(err))
}
