package callback

import "regexp"

// fieldPattern matches both `<Tag><![CDATA[value]]></Tag>` and the plain
// `<Tag>value</Tag>` form in a single expression, per the design note that
// the push body is small, fixed-shape XML we'd rather scan loosely than
// pull in a full XML decoder for: upstream's schema has drifted in minor,
// undocumented ways across platform versions, and a permissive field
// extractor degrades to "field absent" instead of "failed to parse" when it
// meets one it doesn't expect.
var fieldPattern = regexp.MustCompile(`<(\w+)>(?:<!\[CDATA\[(.*?)\]\]>|([^<]*))</\w+>`)

// extractFields scans body for every <Tag>...</Tag> occurrence (CDATA or
// plain) and returns the last value seen per tag, matching how a real XML
// parser would resolve a (pathologically) repeated top-level element.
func extractFields(body []byte) map[string]string {
	out := map[string]string{}
	for _, m := range fieldPattern.FindAllSubmatch(body, -1) {
		tag := string(m[1])
		value := string(m[2])
		if value == "" {
			value = string(m[3])
		}
		out[tag] = value
	}
	return out
}
