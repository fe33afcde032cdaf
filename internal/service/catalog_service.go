package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/institutoberea/enrollment-api/internal/dto"
	"github.com/institutoberea/enrollment-api/internal/models"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
)

type courseCatalogReader interface {
	ListWithPrerequisites(ctx context.Context) ([]models.Course, error)
}

type levelReader interface {
	List(ctx context.Context) ([]models.Level, error)
}

type cycleReader interface {
	FindOpen(ctx context.Context) ([]models.Cycle, error)
}

type sectionCatalogReader interface {
	ListDetailsByCycle(ctx context.Context, cycleID string) ([]models.SectionDetail, error)
	CountConfirmedBySection(ctx context.Context, cycleID string) (map[string]int, error)
}

type rosterHistoryReader interface {
	ListCourseStatusesByLearner(ctx context.Context, learnerID string) ([]models.LearnerCourseStatus, error)
}

type requestSectionReader interface {
	ListByLearnerAndSections(ctx context.Context, learnerID string, sectionIDs []string, statuses []models.RequestStatus) ([]models.EnrollmentRequest, error)
}

// CatalogService resolves which sections a learner may request and shapes
// the result into a navigable catalog.
type CatalogService struct {
	courses  courseCatalogReader
	levels   levelReader
	cycles   cycleReader
	sections sectionCatalogReader
	roster   rosterHistoryReader
	requests requestSectionReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(courses courseCatalogReader, levels levelReader, cycles cycleReader, sections sectionCatalogReader, roster rosterHistoryReader, requests requestSectionReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &CatalogService{
		courses:  courses,
		levels:   levels,
		cycles:   cycles,
		sections: sections,
		roster:   roster,
		requests: requests,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// BuildCatalog computes the enrollment catalog for the learner, or for
// anonymous browsing when learnerID is empty. The second return value
// reports cache utilisation. The catalog is read without a transactional
// snapshot: a concurrent approval may change eligibility between steps, and
// callers re-validate at approval time rather than trust a cached catalog.
func (s *CatalogService) BuildCatalog(ctx context.Context, learnerID string) (*dto.CatalogResponse, bool, error) {
	openCycles, err := s.cycles.FindOpen(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open cycles")
	}
	cycle := selectOpenCycle(openCycles)
	if cycle == nil {
		// No open cycle is a valid empty catalog, not an error.
		return &dto.CatalogResponse{OpenCycle: nil, Levels: []dto.CatalogLevel{}}, false, nil
	}

	cacheKey := catalogCacheKey(cycle.ID, learnerID)
	var cached dto.CatalogResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	catalog, err := s.composeCatalog(ctx, cycle, learnerID)
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.Set(ctx, cacheKey, catalog, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}

	mode := "learner"
	if learnerID == "" {
		mode = "anonymous"
	}
	s.metrics.RecordCatalogBuild(mode)
	return catalog, false, nil
}

// InvalidateLearner drops the learner's cached catalogs across cycles.
func (s *CatalogService) InvalidateLearner(ctx context.Context, learnerID string) error {
	if learnerID == "" {
		return nil
	}
	return s.cache.Invalidate(ctx, fmt.Sprintf("catalog:*:learner:%s", learnerID))
}

func (s *CatalogService) composeCatalog(ctx context.Context, cycle *models.Cycle, learnerID string) (*dto.CatalogResponse, error) {
	sections, err := s.sections.ListDetailsByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle sections")
	}
	counts, err := s.sections.CountConfirmedBySection(ctx, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count confirmed memberships")
	}
	courses, err := s.courses.ListWithPrerequisites(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	levels, err := s.levels.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load levels")
	}

	graph := NewPrerequisiteGraph(courses)

	var snapshot *ProgressSnapshot
	if learnerID != "" {
		snapshot, err = s.buildSnapshot(ctx, learnerID, sections)
		if err != nil {
			return nil, err
		}
	}

	courseByID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		courseByID[course.ID] = course
	}

	admissible := make(map[string]bool)
	for _, section := range sections {
		if _, seen := admissible[section.CourseID]; seen {
			continue
		}
		course, ok := courseByID[section.CourseID]
		if !ok {
			continue
		}
		ok, reason := graph.Evaluate(snapshot, course)
		admissible[course.ID] = ok
		if !ok {
			s.metrics.RecordCourseExclusion(string(reason))
			s.logger.Debug("course excluded from catalog",
				zap.String("course_id", course.ID),
				zap.String("learner_id", learnerID),
				zap.String("reason", string(reason)))
		}
	}

	return s.groupCatalog(cycle, sections, counts, courseByID, levels, admissible), nil
}

func (s *CatalogService) buildSnapshot(ctx context.Context, learnerID string, sections []models.SectionDetail) (*ProgressSnapshot, error) {
	history, err := s.roster.ListCourseStatusesByLearner(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner history")
	}

	courseBySection := make(map[string]string, len(sections))
	sectionIDs := make([]string, 0, len(sections))
	for _, section := range sections {
		courseBySection[section.ID] = section.CourseID
		sectionIDs = append(sectionIDs, section.ID)
	}

	requests, err := s.requests.ListByLearnerAndSections(ctx, learnerID, sectionIDs,
		[]models.RequestStatus{models.RequestStatusPending, models.RequestStatusAccepted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner requests")
	}

	return NewProgressSnapshot(history, requests, courseBySection), nil
}

func (s *CatalogService) groupCatalog(cycle *models.Cycle, sections []models.SectionDetail, counts map[string]int, courseByID map[string]models.Course, levels []models.Level, admissible map[string]bool) *dto.CatalogResponse {
	sectionsByCourse := make(map[string][]dto.CatalogSection)
	for _, section := range sections {
		if !admissible[section.CourseID] {
			continue
		}
		sectionsByCourse[section.CourseID] = append(sectionsByCourse[section.CourseID], dto.CatalogSection{
			Section:        section.ClassroomSection,
			ConfirmedCount: counts[section.ID],
		})
	}

	levelByID := make(map[string]models.Level, len(levels))
	for _, level := range levels {
		levelByID[level.ID] = level
	}

	coursesByLevel := make(map[string][]dto.CatalogCourse)
	var orphanCourses []dto.CatalogCourse
	for courseID, courseSections := range sectionsByCourse {
		course := courseByID[courseID]
		entry := dto.CatalogCourse{Course: course, Sections: courseSections}
		if course.LevelID == nil {
			orphanCourses = append(orphanCourses, entry)
			continue
		}
		coursesByLevel[*course.LevelID] = append(coursesByLevel[*course.LevelID], entry)
	}

	collator := collate.New(language.Spanish, collate.Numeric)

	catalogLevels := make([]dto.CatalogLevel, 0, len(coursesByLevel)+1)
	for levelID, levelCourses := range coursesByLevel {
		level, ok := levelByID[levelID]
		if !ok {
			orphanCourses = append(orphanCourses, levelCourses...)
			continue
		}
		lvl := level
		sortCatalogCourses(collator, levelCourses)
		catalogLevels = append(catalogLevels, dto.CatalogLevel{Level: &lvl, Courses: levelCourses})
	}
	sort.Slice(catalogLevels, func(i, j int) bool {
		return collator.CompareString(catalogLevels[i].Level.Name, catalogLevels[j].Level.Name) < 0
	})
	if len(orphanCourses) > 0 {
		// Courses without a level sort after every named level.
		sortCatalogCourses(collator, orphanCourses)
		catalogLevels = append(catalogLevels, dto.CatalogLevel{Level: nil, Courses: orphanCourses})
	}

	return &dto.CatalogResponse{OpenCycle: cycle, Levels: catalogLevels}
}

func sortCatalogCourses(collator *collate.Collator, courses []dto.CatalogCourse) {
	sort.Slice(courses, func(i, j int) bool {
		return collator.CompareString(courses[i].Course.Name, courses[j].Course.Name) < 0
	})
	for _, course := range courses {
		sections := course.Sections
		sort.Slice(sections, func(i, j int) bool {
			return collator.CompareString(sections[i].Section.Name, sections[j].Section.Name) < 0
		})
	}
}

// selectOpenCycle picks the open cycle with the latest start date, breaking
// ties by id so the choice is deterministic.
func selectOpenCycle(cycles []models.Cycle) *models.Cycle {
	var selected *models.Cycle
	for i := range cycles {
		candidate := &cycles[i]
		if selected == nil {
			selected = candidate
			continue
		}
		if candidate.StartDate.After(selected.StartDate) {
			selected = candidate
			continue
		}
		if candidate.StartDate.Equal(selected.StartDate) && candidate.ID < selected.ID {
			selected = candidate
		}
	}
	return selected
}

func catalogCacheKey(cycleID, learnerID string) string {
	if learnerID == "" {
		return fmt.Sprintf("catalog:%s:anon", cycleID)
	}
	return fmt.Sprintf("catalog:%s:learner:%s", cycleID, learnerID)
}
