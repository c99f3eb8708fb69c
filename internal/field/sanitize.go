package field

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/strata-cms/strata/internal/schema"
)

// ugcPolicy keeps the user-generated-content tag subset for fields that
// allow HTML; strictPolicy strips markup entirely for plain text fields.
var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// sanitized runs string payloads of sanitising field definitions through
// the HTML sanitizer. Non-string payloads and non-sanitising definitions
// pass through untouched.
func sanitized(def *schema.FieldDefinition, raw any) any {
	if def == nil || !def.Sanitise {
		return raw
	}

	s, ok := raw.(string)
	if !ok {
		return raw
	}

	if def.AllowHTML {
		return ugcPolicy.Sanitize(s)
	}
	return strictPolicy.Sanitize(s)
}
