package reconcile

import (
	"strconv"

	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
)

// translationsManager carries localized payloads of collection children
// across the teardown and rebuild of their collection. Saved payloads are
// keyed by (collection name, ordering key, child field name); the ordering
// keys of existing children come from the submission's bookkeeping keys.
// An ordering key absent from the rebuilt collection simply never gets its
// payloads reapplied.
type translationsManager struct {
	saved map[translationKey]map[string]any
}

type translationKey struct {
	collection string
	orderKey   string
	childName  string
}

// newTranslationsManager snapshots the non-current-locale payloads of every
// collection child on the record, before any teardown happens.
func newTranslationsManager(rec *content.Content, keys map[string]map[string]string) *translationsManager {
	tm := &translationsManager{saved: map[translationKey]map[string]any{}}
	tree := rec.Fields()

	for _, v := range tree.Root() {
		if v.Type != schema.FieldTypeCollection {
			continue
		}
		for _, child := range tree.Children(v) {
			orderKey := keys[v.Name][strconv.Itoa(child.ID)]
			if orderKey == "" {
				continue
			}

			translations := child.Translations()
			if len(translations) == 0 {
				continue
			}
			tm.saved[translationKey{v.Name, orderKey, child.Name}] = translations
		}
	}

	return tm
}

// apply restores the saved localized payloads onto a freshly rebuilt child,
// leaving the child's current locale untouched.
func (tm *translationsManager) apply(child *field.Value, collection, orderKey string) {
	saved, ok := tm.saved[translationKey{collection, orderKey, child.Name}]
	if !ok {
		return
	}
	for locale, raw := range saved {
		if locale == child.Locale {
			continue
		}
		child.SetTranslation(locale, raw)
	}
}
