package telemetry

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/quack-go/internal/errors"
)

// titleCase capitalizes each word. Casers keep state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Title builds a grouping title such as "Daily Database Error Persist
// Selection" from the component, category and operation of ee.
func Title(ee *errors.EnhancedError) string {
	var parts []string

	if component := ee.GetComponent(); component != "" && component != errors.ComponentUnknown {
		parts = append(parts, titleCase(component))
	}
	if category := categoryTitle(ee.Category); category != "" {
		parts = append(parts, category)
	}
	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		parts = append(parts, titleCase(strings.ReplaceAll(operation, "_", " ")))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func categoryTitle(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryDatabase:
		return "Database Error"
	case errors.CategoryConfiguration:
		return "Configuration Error"
	case errors.CategoryState:
		return "State Error"
	case errors.CategorySelection:
		return "Selection Error"
	case errors.CategoryIntegration:
		return "Integration Error"
	case errors.CategoryFileIO:
		return "File I/O Error"
	case "":
		return ""
	default:
		return titleCase(strings.ReplaceAll(string(category), "-", " ")) + " Error"
	}
}
