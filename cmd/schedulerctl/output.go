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

package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"unicode"

	"github.com/instancefleet/scheduler/pkg/admin"
	"github.com/spf13/cobra"
)

// openAdmin wires an admin.Stores from the --database-url persistent
// flag, the way every subcommand's RunE opens its own short-lived
// store handle rather than threading one through PersistentPreRun;
// cobra command trees in this codebase favor self-contained RunE
// bodies over shared mutable command state.
func openAdmin(cmd *cobra.Command) (*admin.Stores, error) {
	dsn, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return nil, err
	}
	return admin.OpenStores(context.Background(), dsn)
}

// printResult renders v as the CLI envelope's response shape: the
// admin-api result translated to PascalCase keys. Errors render
// as {"Error": "..."} on stdout, so a scripting caller never has to
// distinguish a transport failure from an application error by exit
// code alone.
func printResult(v any, err error) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err != nil {
		return enc.Encode(map[string]string{"Error": err.Error()})
	}
	return enc.Encode(toPascalCase(v))
}

// toPascalCase recursively converts a JSON-marshalable value's map
// keys from snake_case to PascalCase so schedulerctl's output shape
// matches what operators scripting against the admin API expect.
func toPascalCase(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return v
	}
	return pascalCaseValue(generic)
}

func pascalCaseValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[snakeToPascal(k)] = pascalCaseValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = pascalCaseValue(item)
		}
		return out
	default:
		return v
	}
}

func snakeToPascal(s string) string {
	s = strings.Trim(s, "_")
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
