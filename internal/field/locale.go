package field

// SetLocale switches the value to the given locale. The current payload is
// stashed under the previous locale and any payload previously stored for
// the new locale becomes current, so editing one locale never clobbers
// another locale's stored value.
func (v *Value) SetLocale(locale string) {
	if v.Locale == locale {
		return
	}

	if v.Locale != "" {
		if v.translations == nil {
			v.translations = map[string]any{}
		}
		v.translations[v.Locale] = v.raw
	}

	if stored, ok := v.translations[locale]; ok {
		v.raw = stored
		delete(v.translations, locale)
	} else {
		v.raw = nil
	}
	v.Locale = locale
}

// Translation returns the payload stored for the given locale.
func (v *Value) Translation(locale string) (any, bool) {
	if locale == v.Locale {
		return v.raw, v.raw != nil
	}
	raw, ok := v.translations[locale]
	return raw, ok
}

// SetTranslation stores a payload for a locale other than the current one.
// Storing under the current locale replaces the live payload instead.
func (v *Value) SetTranslation(locale string, raw any) {
	if locale == v.Locale {
		v.raw = raw
		return
	}
	if v.translations == nil {
		v.translations = map[string]any{}
	}
	v.translations[locale] = raw
}

// Translations returns the stashed payloads of non-current locales.
func (v *Value) Translations() map[string]any {
	out := make(map[string]any, len(v.translations))
	for locale, raw := range v.translations {
		out[locale] = raw
	}
	return out
}
