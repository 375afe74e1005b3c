package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/pkg/crypto"
)

var (
	// ErrProjectNotFound indicates the project does not exist or is not owned
	// by the requesting user.
	ErrProjectNotFound = errors.New("services: project not found")
	// ErrSlugTaken indicates the slug is already claimed by another project.
	ErrSlugTaken = errors.New("services: slug already in use")
	// ErrInvalidMode indicates an unsupported ranking mode.
	ErrInvalidMode = errors.New("services: invalid ranking mode")
)

// CreateProjectInput carries the owner-supplied fields for a new project.
type CreateProjectInput struct {
	Name         string
	Slug         string
	Mode         string
	ShowPosition *bool
}

// UpdateProjectInput carries a partial update; nil fields are left untouched.
type UpdateProjectInput struct {
	Name           *string
	Slug           *string
	Mode           *string
	IsFrozen       *bool
	ShowPosition   *bool
	WidgetSettings datatypes.JSON
}

// ProjectService manages waitlist projects for dashboard users. Every lookup
// except GetBySlug is scoped to the owning user.
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService constructs the project service.
func NewProjectService(db *gorm.DB) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("services: db is required")
	}
	return &ProjectService{db: db}, nil
}

// Create registers a new project and mints its join credential.
func (s *ProjectService) Create(ctx context.Context, userID string, input CreateProjectInput) (*models.Project, error) {
	if input.Name == "" {
		return nil, errors.New("services: project name is required")
	}

	slug := models.NormalizeSlug(input.Slug)
	if slug == "" {
		slug = models.NormalizeSlug(input.Name)
	}
	if slug == "" {
		return nil, errors.New("services: project slug is required")
	}

	mode := input.Mode
	if mode == "" {
		mode = models.ModeFIFO
	}
	if !models.ValidMode(mode) {
		return nil, ErrInvalidMode
	}

	apiKey, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("services: generate api key: %w", err)
	}

	project := models.Project{
		UserID:       userID,
		Name:         input.Name,
		Slug:         slug,
		APIKey:       apiKey,
		Mode:         mode,
		ShowPosition: true,
	}

	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		if s.slugExists(ctx, slug, "") {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	// show_position carries a DB default of true; an explicit false needs a
	// follow-up write because the zero value is skipped at insert.
	if input.ShowPosition != nil && !*input.ShowPosition {
		if err := s.db.WithContext(ctx).Model(&project).
			UpdateColumn("show_position", false).Error; err != nil {
			return nil, err
		}
		project.ShowPosition = false
	}

	return &project, nil
}

// ListByUser returns the user's projects, newest first.
func (s *ProjectService) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// Get loads one project owned by the user.
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Take(&project, "id = ? AND user_id = ?", projectID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetBySlug resolves a project by its public slug, for the embed widget.
func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Take(&project, "slug = ?", models.NormalizeSlug(slug)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Update applies a partial update to an owned project. Freezing and thawing
// the waitlist go through here via IsFrozen.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, errors.New("services: project name is required")
		}
		updates["name"] = *input.Name
	}
	if input.Slug != nil {
		slug := models.NormalizeSlug(*input.Slug)
		if slug == "" {
			return nil, errors.New("services: project slug is required")
		}
		if slug != project.Slug && s.slugExists(ctx, slug, project.ID) {
			return nil, ErrSlugTaken
		}
		updates["slug"] = slug
	}
	if input.Mode != nil {
		if !models.ValidMode(*input.Mode) {
			return nil, ErrInvalidMode
		}
		updates["mode"] = *input.Mode
	}
	if input.IsFrozen != nil {
		updates["is_frozen"] = *input.IsFrozen
	}
	if input.ShowPosition != nil {
		updates["show_position"] = *input.ShowPosition
	}
	if input.WidgetSettings != nil {
		updates["widget_settings"] = input.WidgetSettings
	}

	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, projectID)
}

// RotateKey replaces the project's join credential. The old key stops working
// immediately.
func (s *ProjectService) RotateKey(ctx context.Context, userID, projectID string) (*models.Project, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	apiKey, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("services: generate api key: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(project).
		UpdateColumn("api_key", apiKey).Error; err != nil {
		return nil, err
	}
	project.APIKey = apiKey
	return project, nil
}

// Delete removes an owned project; entries cascade with it.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", projectID, userID).
		Delete(&models.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *ProjectService) slugExists(ctx context.Context, slug, excludeID string) bool {
	var count int64
	query := s.db.WithContext(ctx).Model(&models.Project{}).Where("slug = ?", slug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}
