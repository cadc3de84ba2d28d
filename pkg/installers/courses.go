package installers

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// activityNamespaces maps a restored module type to the registry namespace
// its old-to-new activity IDs are recorded under. Module types outside this
// map are not tracked by dependent installers.
var activityNamespaces = map[string]engine.Namespace{
	"adaptivequiz": engine.NamespaceComponents,
	"quiz":         engine.NamespaceQuizID,
}

// CoursesInstaller restores course backup archives. It skips courses whose
// shortname already exists (still recording the old-to-existing ID mapping
// so dependents resolve), maps restored activity IDs by positional
// correspondence, and rewrites embedded course links in summaries once all
// courses of the batch are in place.
type CoursesInstaller struct{}

// AssetType implements engine.Installer.
func (c *CoursesInstaller) AssetType() recipe.AssetType { return recipe.AssetCourses }

// Check implements engine.Installer.
func (c *CoursesInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	asset := string(recipe.AssetCourses)
	cfg := ec.Package.Manifest.Courses

	archives, err := listFiles(ec.Package.AssetDir(cfg.Path))
	if err != nil {
		return engine.NewEntityError("listing course backups", err).WithAsset(asset)
	}

	for _, archive := range archives {
		entity := filepath.Base(archive)

		info, err := ec.Platform.Backups.Inspect(ctx, archive)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"backup archive unreadable: %v", err)
			continue
		}
		entity = info.Shortname

		existing, err := ec.Platform.Courses.CourseByShortname(ctx, info.Shortname)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"course lookup failed: %v", err)
			continue
		}
		if existing != nil {
			// The mapping is recorded even in the dry run so sibling
			// checks can resolve references to this course.
			ec.Registry.Put(engine.NamespaceCourses,
				strconv.FormatInt(info.OriginalCourseID, 10),
				strconv.FormatInt(existing.ID, 10))
			ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
				"course %q already exists (id %d), restore will be skipped", info.Shortname, existing.ID)
			continue
		}

		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"backup ready to restore (original course id %d)", info.OriginalCourseID)
	}

	return nil
}

// Execute implements engine.Installer.
func (c *CoursesInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	asset := string(recipe.AssetCourses)
	cfg := ec.Package.Manifest.Courses

	archives, err := listFiles(ec.Package.AssetDir(cfg.Path))
	if err != nil {
		return engine.NewEntityError("listing course backups", err).WithAsset(asset)
	}

	category := cfg.Category
	if category == "" {
		category = "recipe-" + uuid.NewString()[:8]
	}

	// Course IDs whose summaries get the link-rewrite second pass.
	var restored []int64

	for _, archive := range archives {
		courseID, ok := c.installOne(ctx, ec, asset, category, archive)
		if ok {
			restored = append(restored, courseID)
		}
	}

	c.rewriteSummaries(ctx, ec, asset, restored)
	return nil
}

// installOne restores one backup archive. It returns the restored course ID
// and whether a restore actually ran (duplicates and failures return false).
func (c *CoursesInstaller) installOne(
	ctx context.Context,
	ec *engine.ExecContext,
	asset, category, archive string,
) (int64, bool) {
	entity := filepath.Base(archive)

	info, err := ec.Platform.Backups.Inspect(ctx, archive)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"backup archive unreadable: %v", err)
		return 0, false
	}
	entity = info.Shortname
	oldCourseID := strconv.FormatInt(info.OriginalCourseID, 10)

	existing, err := ec.Platform.Courses.CourseByShortname(ctx, info.Shortname)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"course lookup failed: %v", err)
		return 0, false
	}
	if existing != nil {
		// Dependents still need the mapping to the existing course.
		ec.Registry.Put(engine.NamespaceCourses, oldCourseID,
			strconv.FormatInt(existing.ID, 10))
		ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
			"course %q already exists (id %d), skipping restore", info.Shortname, existing.ID)
		return 0, false
	}

	courseID, err := ec.Platform.Courses.CreatePlaceholder(ctx, category)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"creating placeholder course: %v", err)
		return 0, false
	}

	result, err := ec.Platform.Courses.Restore(ctx, archive, courseID)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"restore failed: %v", err)
		return 0, false
	}
	for _, w := range result.Warnings {
		ec.Feedback.Report(asset, entity, engine.SeverityWarning, w)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			ec.Feedback.Report(asset, entity, engine.SeverityError, e)
		}
		return 0, false
	}

	if err := ec.Platform.Courses.Publish(ctx, courseID); err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"publishing course: %v", err)
		return 0, false
	}

	ec.Registry.Put(engine.NamespaceCourses, oldCourseID, strconv.FormatInt(courseID, 10))
	c.mapActivities(ctx, ec, asset, entity, info.Activities, courseID)

	ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
		"course restored as id %d", courseID)
	return courseID, true
}

// mapActivities builds old-to-new activity ID mappings by positional
// correspondence: original IDs in backup order zipped against restored
// instance IDs in creation order. When the counts differ no correspondence
// can be established safely, so no entries are recorded for that type and a
// warning names the mismatch.
func (c *CoursesInstaller) mapActivities(
	ctx context.Context,
	ec *engine.ExecContext,
	asset, entity string,
	originals map[string][]int64,
	courseID int64,
) {
	for modType, oldIDs := range originals {
		ns, tracked := activityNamespaces[modType]
		if !tracked {
			continue
		}

		newIDs, err := ec.Platform.Courses.ActivityInstances(ctx, courseID, modType)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"listing restored %s instances: %v", modType, err)
			continue
		}

		if len(newIDs) != len(oldIDs) {
			ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
				"backup lists %d %s activities but restore produced %d, no ID mapping recorded",
				len(oldIDs), modType, len(newIDs))
			continue
		}

		for i, oldID := range oldIDs {
			ec.Registry.Put(ns,
				strconv.FormatInt(oldID, 10),
				strconv.FormatInt(newIDs[i], 10))
		}
	}
}

// rewriteSummaries is the second pass: once every course of the batch is
// mapped, embedded "link to course X" references in restored summaries are
// rewritten against the registry and the current base URL.
func (c *CoursesInstaller) rewriteSummaries(
	ctx context.Context,
	ec *engine.ExecContext,
	asset string,
	courseIDs []int64,
) {
	for _, courseID := range courseIDs {
		entity := "course-" + strconv.FormatInt(courseID, 10)

		summary, err := ec.Platform.Courses.CourseSummary(ctx, courseID)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"reading course summary: %v", err)
			continue
		}
		if summary == "" {
			continue
		}

		rewritten := TranslateCourseLinks(summary, ec, asset, entity)
		if rewritten == summary {
			continue
		}

		if err := ec.Platform.Courses.UpdateSummary(ctx, courseID, rewritten); err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"updating course summary: %v", err)
		}
	}
}
