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

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/spf13/cobra"
)

func periodFromFlags(cmd *cobra.Command) (v1beta1.Period, error) {
	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	begin, _ := cmd.Flags().GetString("begintime")
	end, _ := cmd.Flags().GetString("endtime")
	weekdays, _ := cmd.Flags().GetStringSlice("weekdays")
	monthdays, _ := cmd.Flags().GetStringSlice("monthdays")
	months, _ := cmd.Flags().GetStringSlice("months")

	p := v1beta1.Period{
		Name:        name,
		Description: description,
		Weekdays:    weekdays,
		Monthdays:   monthdays,
		Months:      months,
	}
	if begin != "" {
		t, err := v1beta1.ParseTimeOfDay(begin)
		if err != nil {
			return v1beta1.Period{}, err
		}
		p.BeginTime = &t
	}
	if end != "" {
		t, err := v1beta1.ParseTimeOfDay(end)
		if err != nil {
			return v1beta1.Period{}, err
		}
		p.EndTime = &t
	}
	return p, nil
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "period name (required)")
	cmd.Flags().String("description", "", "period description")
	cmd.Flags().String("begintime", "", "begin time, HH:MM")
	cmd.Flags().String("endtime", "", "end time, HH:MM")
	cmd.Flags().StringSlice("weekdays", nil, "weekday cron expressions, e.g. mon-fri")
	cmd.Flags().StringSlice("monthdays", nil, "monthday cron expressions, e.g. 1-5")
	cmd.Flags().StringSlice("months", nil, "month cron expressions, e.g. jan,jul")
	_ = cmd.MarkFlagRequired("name")
}

func newCreatePeriodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-period",
		Short: "Create a new period",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			p, err := periodFromFlags(cmd)
			if err != nil {
				return printResult(nil, err)
			}
			created, err := stores.Admin.CreatePeriod(context.Background(), p)
			return printResult(created, err)
		},
	}
	addPeriodFlags(cmd)
	return cmd
}

func newUpdatePeriodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-period",
		Short: "Replace an existing period's definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			p, err := periodFromFlags(cmd)
			if err != nil {
				return printResult(nil, err)
			}
			updated, err := stores.Admin.UpdatePeriod(context.Background(), p)
			return printResult(updated, err)
		},
	}
	addPeriodFlags(cmd)
	return cmd
}

func newDeletePeriodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-period",
		Short: "Delete a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			name, _ := cmd.Flags().GetString("name")
			err = stores.Admin.DeletePeriod(context.Background(), name)
			return printResult(map[string]string{"Period": name}, err)
		},
	}
	cmd.Flags().String("name", "", "period name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDescribePeriodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe-periods",
		Short: "List every period, or describe one by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			name, _ := cmd.Flags().GetString("name")
			ctx := context.Background()
			if name != "" {
				p, err := stores.Admin.DescribePeriod(ctx, name)
				return printResult(map[string]any{"Periods": []v1beta1.Period{p}}, err)
			}
			periods, err := stores.Admin.DescribePeriods(ctx)
			return printResult(map[string]any{"Periods": periods}, err)
		},
	}
	cmd.Flags().String("name", "", "period name; omit to list every period")
	return cmd
}
