package plan

import (
	"fmt"
	"regexp"

	"github.com/cfa-haystack/vdifsg/internal/vdiferrors"
)

// templateVerbs matches a path template with exactly two integer
// verbs followed by one string verb, in that order, e.g.
// "/mnt/disks/%d/%d/data/%s". The original C design leaves a
// malformed template as an undefined snprintf outcome; this module
// validates up front instead.
var templateVerbs = regexp.MustCompile(`^[^%]*%d[^%]*%d[^%]*%s[^%]*$`)

// ValidateTemplate reports whether tmpl has exactly two %d verbs
// followed by one %s verb.
func ValidateTemplate(tmpl string) error {
	if !templateVerbs.MatchString(tmpl) {
		return vdiferrors.New("ValidateTemplate", vdiferrors.CodeInvalid,
			fmt.Sprintf("path template %q must contain exactly %%d, %%d, %%s in order", tmpl))
	}
	return nil
}

// FormatPath renders the candidate path for one (module, disk) pair.
func FormatPath(tmpl string, module, disk int, name string) string {
	return fmt.Sprintf(tmpl, module, disk, name)
}
