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
	"fmt"
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/spf13/cobra"
)

func scheduleFromFlags(cmd *cobra.Command) (v1beta1.Schedule, error) {
	name, _ := cmd.Flags().GetString("name")
	timezone, _ := cmd.Flags().GetString("timezone")
	description, _ := cmd.Flags().GetString("description")
	override, _ := cmd.Flags().GetString("override-status")
	periods, _ := cmd.Flags().GetStringSlice("periods")
	stopNew, _ := cmd.Flags().GetBool("stop-new-instances")
	enforced, _ := cmd.Flags().GetBool("enforced")
	hibernate, _ := cmd.Flags().GetBool("hibernate")
	retainRunning, _ := cmd.Flags().GetBool("retain-running")
	useMW, _ := cmd.Flags().GetBool("use-maintenance-window")
	mwNames, _ := cmd.Flags().GetStringSlice("ssm-maintenance-window")

	s := v1beta1.NewSchedule(name, timezone)
	s.Description = description
	s.StopNewInstances = stopNew
	s.Enforced = enforced
	s.Hibernate = hibernate
	s.RetainRunning = retainRunning
	s.UseMaintenanceWindow = useMW
	s.SSMMaintenanceWindows = mwNames
	if override != "" {
		s.OverrideStatus = v1beta1.OverrideStatus(override)
	}
	for _, p := range periods {
		// "period-name" or "period-name=instance-size"
		periodName, size := p, ""
		for i := 0; i < len(p); i++ {
			if p[i] == '=' {
				periodName, size = p[:i], p[i+1:]
				break
			}
		}
		sp := v1beta1.ScheduledPeriod{PeriodName: periodName}
		if size != "" {
			sp.InstanceSize = &size
		}
		s.Periods = append(s.Periods, sp)
	}
	return s, nil
}

func addScheduleFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "schedule name (required)")
	cmd.Flags().String("timezone", "UTC", "IANA timezone")
	cmd.Flags().String("description", "", "schedule description")
	cmd.Flags().String("override-status", "", "running|stopped, short-circuits period evaluation")
	cmd.Flags().StringSlice("periods", nil, "period-name or period-name=instance-size, repeatable")
	cmd.Flags().Bool("stop-new-instances", true, "stop instances newly tagged with this schedule outside any running period")
	cmd.Flags().Bool("enforced", false, "repair drift by re-issuing Start during a running period when both stored state and observed state say stopped")
	cmd.Flags().Bool("hibernate", false, "hibernate on stop, resume on start, where the resource family supports it")
	cmd.Flags().Bool("retain-running", false, "do not stop an instance a human started outside its scheduled period")
	cmd.Flags().Bool("use-maintenance-window", false, "treat active maintenance windows as an ephemeral running period")
	cmd.Flags().StringSlice("ssm-maintenance-window", nil, "maintenance window names this schedule honors")
	_ = cmd.MarkFlagRequired("name")
}

func newCreateScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-schedule",
		Short: "Create a new schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			s, err := scheduleFromFlags(cmd)
			if err != nil {
				return printResult(nil, err)
			}
			created, err := stores.Admin.CreateSchedule(context.Background(), s)
			return printResult(created, err)
		},
	}
	addScheduleFlags(cmd)
	return cmd
}

func newUpdateScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-schedule",
		Short: "Replace an existing schedule's definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			s, err := scheduleFromFlags(cmd)
			if err != nil {
				return printResult(nil, err)
			}
			updated, err := stores.Admin.UpdateSchedule(context.Background(), s)
			return printResult(updated, err)
		},
	}
	addScheduleFlags(cmd)
	return cmd
}

func newDeleteScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-schedule",
		Short: "Delete a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			name, _ := cmd.Flags().GetString("name")
			err = stores.Admin.DeleteSchedule(context.Background(), name)
			return printResult(map[string]string{"Schedule": name}, err)
		},
	}
	cmd.Flags().String("name", "", "schedule name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDescribeSchedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe-schedules",
		Short: "List every schedule, or describe one by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			name, _ := cmd.Flags().GetString("name")
			ctx := context.Background()
			if name != "" {
				s, err := stores.Admin.DescribeSchedule(ctx, name)
				return printResult(map[string]any{"Schedules": []v1beta1.Schedule{s}}, err)
			}
			schedules, err := stores.Admin.DescribeSchedules(ctx)
			return printResult(map[string]any{"Schedules": schedules}, err)
		},
	}
	cmd.Flags().String("name", "", "schedule name; omit to list every schedule")
	return cmd
}

func newDescribeScheduleUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe-schedule-usage",
		Short: "Project the Running/Stopped timeline a schedule produces over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			name, _ := cmd.Flags().GetString("name")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return printResult(nil, fmt.Errorf("describe-schedule-usage: invalid --start: %w", err))
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return printResult(nil, fmt.Errorf("describe-schedule-usage: invalid --end: %w", err))
			}
			usage, err := stores.Admin.DescribeScheduleUsage(context.Background(), name, start, end)
			return printResult(usage, err)
		},
	}
	cmd.Flags().String("name", "", "schedule name (required)")
	cmd.Flags().String("start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "end date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
