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

// Command schedulerctl is the operator CLI:
// create/update/delete/describe for periods and schedules, plus
// describe-schedule-usage, each one a thin cobra wrapper over
// pkg/admin. It runs against an in-memory store when --database-url is
// empty, or a Postgres store when --database-url is set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedulerctl",
		Short: "Manage instance scheduler periods and schedules",
	}
	cmd.PersistentFlags().String("database-url", os.Getenv("SCHEDULER_DATABASE_URL"), "Postgres DSN; empty runs against an in-memory store")
	cmd.AddCommand(
		newCreatePeriodCmd(),
		newUpdatePeriodCmd(),
		newDeletePeriodCmd(),
		newDescribePeriodsCmd(),
		newCreateScheduleCmd(),
		newUpdateScheduleCmd(),
		newDeleteScheduleCmd(),
		newDescribeSchedulesCmd(),
		newDescribeScheduleUsageCmd(),
		newDemoCmd(),
	)
	return cmd
}
