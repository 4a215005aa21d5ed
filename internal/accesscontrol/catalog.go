package accesscontrol

import (
	"strings"
	"unicode"
)

// Actions applied to every registered entity when deriving the catalog.
var Actions = []string{"create", "update", "view", "delete"}

// extraEntities always get catalog permissions regardless of registration.
var extraEntities = []string{"role", "permission"}

// EntityDescriptor registers a business entity with the permission catalog.
// Name is the domain type name ("OfficePayment"); the slug is derived.
type EntityDescriptor struct {
	Name string
}

func (e EntityDescriptor) Slug() string {
	return Slug(e.Name)
}

// DefaultEntities covers the back-office domain types. Deployments can
// override the list through configuration.
func DefaultEntities() []EntityDescriptor {
	names := []string{
		"User",
		"Company",
		"Product",
		"ProductPrice",
		"Vehicle",
		"Customer",
		"Purchase",
		"Sale",
		"CreditSale",
		"OfficePayment",
		"PaymentSubType",
		"AccountGroup",
	}
	descriptors := make([]EntityDescriptor, 0, len(names))
	for _, n := range names {
		descriptors = append(descriptors, EntityDescriptor{Name: n})
	}
	return descriptors
}

// EntitiesFromNames builds descriptors from configured entity names,
// skipping blanks.
func EntitiesFromNames(names []string) []EntityDescriptor {
	descriptors := make([]EntityDescriptor, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		descriptors = append(descriptors, EntityDescriptor{Name: n})
	}
	return descriptors
}

// Slug lower-kebab-cases a type name: "PaymentSubType" -> "payment-sub-type".
// Runs of capitals stay together: "CSVExport" -> "csv-export".
func Slug(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (unicode.IsUpper(runes[i-1]) && nextLower)) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == ' ' || r == '_' {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			continue
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

// PermissionName builds the catalog-convention name for an action on a slug.
func PermissionName(action, slug string) string {
	return action + "-" + slug
}

// CatalogNames derives the full permission namespace for the given entities:
// slug x action for every entity plus the fixed role/permission extras.
func CatalogNames(entities []EntityDescriptor) []string {
	names := make([]string, 0, (len(entities)+len(extraEntities))*len(Actions))
	for _, e := range entities {
		slug := e.Slug()
		for _, action := range Actions {
			names = append(names, PermissionName(action, slug))
		}
	}
	for _, slug := range extraEntities {
		for _, action := range Actions {
			names = append(names, PermissionName(action, slug))
		}
	}
	return names
}
