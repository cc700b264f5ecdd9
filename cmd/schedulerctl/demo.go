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

	"github.com/instancefleet/scheduler/pkg/demo"
	"github.com/spf13/cobra"
)

func newDemoCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "demo",
		Short: "Seed or inspect demo data",
	}
	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Seed a handful of representative periods and schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			err = demo.Seed(context.Background(), stores.Admin.Periods, stores.Admin.Schedules)
			return printResult(map[string]int{
				"Periods":   len(demo.Periods),
				"Schedules": len(demo.Schedules),
			}, err)
		},
	})
	return root
}
