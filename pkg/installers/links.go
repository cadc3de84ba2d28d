package installers

import (
	"fmt"
	"regexp"

	"github.com/recipekit/recipekit/pkg/engine"
)

// courseLinkPattern matches embedded course-view links of the form
// http(s)://<host>/course/view.php?id=<n>.
var courseLinkPattern = regexp.MustCompile(`https?://[^\s"'<>]*/course/view\.php\?id=(\d+)`)

// TranslateCourseLinks rewrites every embedded course-view link whose course
// ID is present in the registry to point at the new base URL and the new
// course ID. Links with an unregistered ID are left byte-for-byte unchanged
// and produce one error feedback entry per unresolved ID.
func TranslateCourseLinks(s string, ec *engine.ExecContext, asset, entity string) string {
	reported := make(map[string]bool)

	return courseLinkPattern.ReplaceAllStringFunc(s, func(link string) string {
		oldID := courseLinkPattern.FindStringSubmatch(link)[1]

		newID, ok := ec.Registry.Get(engine.NamespaceCourses, oldID)
		if !ok {
			if !reported[oldID] {
				reported[oldID] = true
				ec.Feedback.Reportf(asset, entity, engine.SeverityError,
					"embedded link references unknown course ID %s", oldID)
			}
			return link
		}

		return fmt.Sprintf("%s/course/view.php?id=%s", ec.BaseURL, newID)
	})
}
