// Package store provides persistence for raw benchmark submissions and the
// normalized tables derived from them.
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diffbench/ingestoor/pkg/config"
)

// Store provides persistence for the ingestion pipeline.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Raw runs.
	CreateRuns(ctx context.Context, runs []*Run) error
	ListRuns(ctx context.Context) ([]Run, error)
	CountRuns(ctx context.Context) (int64, error)

	// Anti-join scans: runs present in the raw table but absent from one
	// derived table, ordered by run id ascending.
	ListRunsMissingPerformance(ctx context.Context) ([]Run, error)
	ListRunsMissingAppDetails(ctx context.Context) ([]Run, error)
	ListRunsMissingSystemInfo(ctx context.Context) ([]Run, error)
	ListRunsMissingLibraries(ctx context.Context) ([]Run, error)
	ListRunsMissingGPU(ctx context.Context) ([]Run, error)
	ListRunsMissingRunDetails(ctx context.Context) ([]Run, error)

	// Derived-table inserts. Each call commits in one transaction.
	CreatePerformanceResults(ctx context.Context, rows []*PerformanceResult) error
	CreateAppDetails(ctx context.Context, rows []*AppDetail) error
	CreateSystemInfos(ctx context.Context, rows []*SystemInfo) error
	CreateLibraries(ctx context.Context, rows []*Library) error
	CreateGPUs(ctx context.Context, rows []*GPU) error
	CreateRunDetails(ctx context.Context, rows []*RunMoreDetails) error

	// Derived-table reads.
	ListPerformanceResults(ctx context.Context) ([]PerformanceResult, error)
	ListAppDetails(ctx context.Context) ([]AppDetail, error)
	ListSystemInfos(ctx context.Context) ([]SystemInfo, error)
	ListLibraries(ctx context.Context) ([]Library, error)
	ListGPUs(ctx context.Context) ([]GPU, error)
	ListRunDetails(ctx context.Context) ([]RunMoreDetails, error)

	// GPU classification.
	UpdateGPUClassification(
		ctx context.Context, id uint, brand Brand, isLaptop bool,
	) error

	// Application-name normalization. Each returns rows affected.
	UpdateAutomatic1111Names(ctx context.Context, name string) (int64, error)
	UpdateVladmandicNames(ctx context.Context, name string) (int64, error)
	UpdateStableDiffusionNames(ctx context.Context, name string) (int64, error)
	UpdateNullAppNameNullURLNames(ctx context.Context, name string) (int64, error)

	// Model mapping.
	ListRunDetailsUnmapped(ctx context.Context) ([]RunMoreDetails, error)
	ListModelMaps(ctx context.Context) ([]ModelMap, error)
	SetRunDetailsModelMap(ctx context.Context, id, modelMapID uint) error

	// Normalization dictionaries.
	CreateModelMaps(ctx context.Context, entries []*ModelMap) error
	CreateGPUBase(ctx context.Context, base *GPUBase) error
	CreateGPUMap(ctx context.Context, m *GPUMap) error

	// Analysis.
	CountAppDetails(ctx context.Context) (int64, error)
	CountAppDetailNullness(ctx context.Context) ([]NullnessCount, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&PerformanceResult{},
		&AppDetail{},
		&SystemInfo{},
		&Library{},
		&GPU{},
		&RunMoreDetails{},
		&ModelMap{},
		&GPUBase{},
		&GPUMap{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Raw runs ---

// CreateRuns inserts a batch of raw runs in one transaction. Either all rows
// commit or none do.
func (s *store) CreateRuns(ctx context.Context, runs []*Run) error {
	if len(runs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&runs).Error
	})
	if err != nil {
		return fmt.Errorf("creating runs: %w", err)
	}

	return nil
}

func (s *store) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (s *store) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}

	return count, nil
}

// --- Anti-join scans ---

// listRunsMissing returns runs without a row in the target table, ascending
// by run id so re-invocations process pending runs deterministically.
func (s *store) listRunsMissing(
	ctx context.Context, target any, name string,
) ([]Run, error) {
	sub := s.db.Model(target).
		Select("run_id").
		Where("run_id IS NOT NULL")

	var runs []Run
	if err := s.db.WithContext(ctx).
		Where("id NOT IN (?)", sub).
		Order("id ASC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("scanning runs missing %s: %w", name, err)
	}

	return runs, nil
}

func (s *store) ListRunsMissingPerformance(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &PerformanceResult{}, "performance results")
}

func (s *store) ListRunsMissingAppDetails(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &AppDetail{}, "app details")
}

func (s *store) ListRunsMissingSystemInfo(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &SystemInfo{}, "system info")
}

func (s *store) ListRunsMissingLibraries(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &Library{}, "libraries")
}

func (s *store) ListRunsMissingGPU(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &GPU{}, "gpus")
}

func (s *store) ListRunsMissingRunDetails(ctx context.Context) ([]Run, error) {
	return s.listRunsMissing(ctx, &RunMoreDetails{}, "run details")
}

// --- Derived-table inserts ---

// createBatch inserts rows in one transaction so a storage fault leaves no
// partial batch behind.
func createBatch[T any](
	ctx context.Context, db *gorm.DB, rows []*T, name string,
) error {
	if len(rows) == 0 {
		return nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	return nil
}

func (s *store) CreatePerformanceResults(
	ctx context.Context, rows []*PerformanceResult,
) error {
	return createBatch(ctx, s.db, rows, "performance results")
}

func (s *store) CreateAppDetails(ctx context.Context, rows []*AppDetail) error {
	return createBatch(ctx, s.db, rows, "app details")
}

func (s *store) CreateSystemInfos(ctx context.Context, rows []*SystemInfo) error {
	return createBatch(ctx, s.db, rows, "system infos")
}

func (s *store) CreateLibraries(ctx context.Context, rows []*Library) error {
	return createBatch(ctx, s.db, rows, "libraries")
}

func (s *store) CreateGPUs(ctx context.Context, rows []*GPU) error {
	return createBatch(ctx, s.db, rows, "gpus")
}

func (s *store) CreateRunDetails(
	ctx context.Context, rows []*RunMoreDetails,
) error {
	return createBatch(ctx, s.db, rows, "run details")
}

// --- Derived-table reads ---

func listAll[T any](ctx context.Context, db *gorm.DB, name string) ([]T, error) {
	var rows []T
	if err := db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s: %w", name, err)
	}

	return rows, nil
}

func (s *store) ListPerformanceResults(
	ctx context.Context,
) ([]PerformanceResult, error) {
	return listAll[PerformanceResult](ctx, s.db, "performance results")
}

func (s *store) ListAppDetails(ctx context.Context) ([]AppDetail, error) {
	return listAll[AppDetail](ctx, s.db, "app details")
}

func (s *store) ListSystemInfos(ctx context.Context) ([]SystemInfo, error) {
	return listAll[SystemInfo](ctx, s.db, "system infos")
}

func (s *store) ListLibraries(ctx context.Context) ([]Library, error) {
	return listAll[Library](ctx, s.db, "libraries")
}

func (s *store) ListGPUs(ctx context.Context) ([]GPU, error) {
	return listAll[GPU](ctx, s.db, "gpus")
}

func (s *store) ListRunDetails(ctx context.Context) ([]RunMoreDetails, error) {
	return listAll[RunMoreDetails](ctx, s.db, "run details")
}

// --- GPU classification ---

// UpdateGPUClassification overwrites a GPU row's brand and laptop flag.
func (s *store) UpdateGPUClassification(
	ctx context.Context, id uint, brand Brand, isLaptop bool,
) error {
	if err := s.db.WithContext(ctx).
		Model(&GPU{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"brand":     brand,
			"is_laptop": isLaptop,
		}).Error; err != nil {
		return fmt.Errorf("updating gpu classification: %w", err)
	}

	return nil
}

// --- Application-name normalization ---

func (s *store) UpdateAutomatic1111Names(
	ctx context.Context, name string,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Where("url LIKE ?", "%AUTOMATIC1111%").
		Update("app_name", name)
	if result.Error != nil {
		return 0, fmt.Errorf("updating automatic1111 names: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *store) UpdateVladmandicNames(
	ctx context.Context, name string,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Where("url LIKE ? AND (app_name IS NULL OR app_name = '')", "%vladmandic%").
		Update("app_name", name)
	if result.Error != nil {
		return 0, fmt.Errorf("updating vladmandic names: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *store) UpdateStableDiffusionNames(
	ctx context.Context, name string,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Where("url LIKE ? AND app_name IS NULL", "%stable-diffusion-webui%").
		Update("app_name", name)
	if result.Error != nil {
		return 0, fmt.Errorf("updating stable-diffusion names: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *store) UpdateNullAppNameNullURLNames(
	ctx context.Context, name string,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Where("app_name IS NULL AND url IS NULL").
		Update("app_name", name)
	if result.Error != nil {
		return 0, fmt.Errorf("updating null-identity names: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// --- Model mapping ---

func (s *store) ListRunDetailsUnmapped(
	ctx context.Context,
) ([]RunMoreDetails, error) {
	var rows []RunMoreDetails
	if err := s.db.WithContext(ctx).
		Where("model_map_id IS NULL").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing unmapped run details: %w", err)
	}

	return rows, nil
}

func (s *store) ListModelMaps(ctx context.Context) ([]ModelMap, error) {
	return listAll[ModelMap](ctx, s.db, "model maps")
}

// SetRunDetailsModelMap links a run-details row to a model map entry. The
// null guard makes the link set-once: a row already linked is never changed.
func (s *store) SetRunDetailsModelMap(
	ctx context.Context, id, modelMapID uint,
) error {
	if err := s.db.WithContext(ctx).
		Model(&RunMoreDetails{}).
		Where("id = ? AND model_map_id IS NULL", id).
		Update("model_map_id", modelMapID).Error; err != nil {
		return fmt.Errorf("setting model map link: %w", err)
	}

	return nil
}

// --- Normalization dictionaries ---

func (s *store) CreateModelMaps(
	ctx context.Context, entries []*ModelMap,
) error {
	return createBatch(ctx, s.db, entries, "model maps")
}

func (s *store) CreateGPUBase(ctx context.Context, base *GPUBase) error {
	if err := s.db.WithContext(ctx).Create(base).Error; err != nil {
		return fmt.Errorf("creating gpu base: %w", err)
	}

	return nil
}

func (s *store) CreateGPUMap(ctx context.Context, m *GPUMap) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("creating gpu map: %w", err)
	}

	return nil
}

// --- Analysis ---

func (s *store) CountAppDetails(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting app details: %w", err)
	}

	return count, nil
}

// CountAppDetailNullness groups app-detail rows by the null-ness of the
// identity fields. Buckets with zero rows are omitted.
func (s *store) CountAppDetailNullness(
	ctx context.Context,
) ([]NullnessCount, error) {
	var counts []NullnessCount
	if err := s.db.WithContext(ctx).
		Model(&AppDetail{}).
		Select(
			"app_name IS NULL AS app_name_null, " +
				"url IS NULL AS url_null, " +
				"COUNT(*) AS count",
		).
		Group("app_name IS NULL, url IS NULL").
		Order("app_name_null ASC, url_null ASC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("counting app detail null-ness: %w", err)
	}

	return counts, nil
}
