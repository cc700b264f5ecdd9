/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package executor

import (
	"fmt"
	"strings"
	"time"
)

// RenderTagTemplate expands an operator-authored start/stop tag
// template ("key=value" pairs, comma-separated) into concrete tags.
// Values may reference {year}, {month}, {day}, {hour}, {minute},
// {scheduler}, and {timezone}, substituted from the pass's own
// timestamp. Malformed pairs (no "=") are skipped rather than failing
// the pass; a tag template is cosmetic and must never block a start
// or stop.
func RenderTagTemplate(template, scheduler string, t time.Time) map[string]string {
	if template == "" {
		return nil
	}
	replacer := strings.NewReplacer(
		"{year}", fmt.Sprintf("%04d", t.Year()),
		"{month}", fmt.Sprintf("%02d", int(t.Month())),
		"{day}", fmt.Sprintf("%02d", t.Day()),
		"{hour}", fmt.Sprintf("%02d", t.Hour()),
		"{minute}", fmt.Sprintf("%02d", t.Minute()),
		"{scheduler}", scheduler,
		"{timezone}", t.Location().String(),
	)
	out := map[string]string{}
	for _, pair := range strings.Split(template, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		out[key] = truncateTagValue(replacer.Replace(strings.TrimSpace(value)))
	}
	return out
}
