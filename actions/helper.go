package actions

import (
	"strconv"
	"strings"

	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/constants"
)

// mustReplaceInStringUsingMapKeyVals will replace in string s (by reference)
// the old and new values found in the map, where:
// the map key is the old value; and
// the map value is the replacement/new value.
func mustReplaceInStringUsingMapKeyVals(s *string, m map[string]string) {
	replacements := make([]string, 0)
	for k, v := range m { // for each key-value (old, new values)...
		replacements = append(replacements, k, v) // save them
	}
	r := strings.NewReplacer(replacements...)
	*s = r.Replace(*s)
}

// resourceEndpoint expands the template variables in the endpoint of r.
func resourceEndpoint(r config.Resource, watermark string, perPage int) string {
	e := r.Endpoint
	mustReplaceInStringUsingMapKeyVals(&e, map[string]string{
		constants.WatermarkTemplateVar: watermark,
		constants.PerPageTemplateVar:   strconv.Itoa(perPage),
	})
	return e
}
