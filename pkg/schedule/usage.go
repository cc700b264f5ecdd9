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

// Package schedule implements the describe-schedule-usage CLI
// projection: given a schedule and a date range, project the
// Running/Stopped timeline it would produce without touching any real
// resource. The projection is a day-by-day timeline walk: sample every
// begin/end time-of-day that appears in any of the schedule's periods,
// plus midnight, then evaluate desired state at each sampled instant.
package schedule

import (
	"fmt"
	"sort"
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/scheduling"
)

// RunningInterval is one contiguous Running span a period produced
// within a single day, with the two billing figures operators use to
// estimate cost.
type RunningInterval struct {
	Begin          time.Time
	End            time.Time
	BillingHours   int
	BillingSeconds int
}

// DayUsage is one calendar day's projected usage.
type DayUsage struct {
	Date           string
	RunningPeriods map[string]RunningInterval
	BillingSeconds int
	BillingHours   int
}

// Usage is the full projection for one schedule over a date range.
type Usage struct {
	Schedule string
	Days     []DayUsage
}

// CalculateUsage projects s's Running/Stopped timeline across every
// day in [start, end] (inclusive), in s's own timezone. start and end
// are truncated to their calendar day; CalculateUsage returns an error
// if end precedes start.
func CalculateUsage(s v1beta1.Schedule, periods map[string]v1beta1.Period, start, end time.Time) (Usage, error) {
	if end.Before(start) {
		return Usage{}, fmt.Errorf("schedule usage: end %s precedes start %s", end, start)
	}
	loc, err := s.Location()
	if err != nil {
		return Usage{}, err
	}
	start = start.In(loc)
	end = end.In(loc)

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	var days []DayUsage
	for !dayStart.After(lastDay) {
		day, err := dayUsage(s, periods, dayStart)
		if err != nil {
			return Usage{}, err
		}
		days = append(days, day)
		dayStart = dayStart.AddDate(0, 0, 1)
	}
	return Usage{Schedule: s.Name, Days: days}, nil
}

func dayUsage(s v1beta1.Schedule, periods map[string]v1beta1.Period, dayStart time.Time) (DayUsage, error) {
	midnight := dayStart
	endOfDay := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 23, 59, 0, 0, dayStart.Location())

	timeline := map[time.Time]bool{midnight: true}
	for _, sp := range s.Periods {
		p, ok := periods[sp.PeriodName]
		if !ok {
			continue
		}
		if p.BeginTime == nil && p.EndTime == nil {
			timeline[midnight] = true
			timeline[endOfDay] = true
			continue
		}
		if p.BeginTime != nil {
			timeline[atTimeOfDay(dayStart, *p.BeginTime)] = true
		}
		if p.EndTime != nil {
			timeline[atTimeOfDay(dayStart, *p.EndTime)] = true
		}
	}

	sorted := make([]time.Time, 0, len(timeline))
	for t := range timeline {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	runningPeriods := map[string]RunningInterval{}
	currentState := scheduling.Any
	var started time.Time
	var startingPeriod string

	for _, tm := range sorted {
		result, err := scheduling.EvaluateSchedule(s, periods, tm)
		if err != nil {
			return DayUsage{}, err
		}
		if result.State == currentState {
			continue
		}
		switch result.State {
		case scheduling.Running:
			started = tm
			currentState = scheduling.Running
			if result.ActivePeriodName != nil {
				startingPeriod = *result.ActivePeriodName
			} else {
				startingPeriod = ""
			}
		case scheduling.Stopped:
			stopped := tm
			adjacent, err := scheduling.HasAdjacentRunningTransition(s, periods, tm)
			if err != nil {
				return DayUsage{}, err
			}
			if adjacent {
				stopped = stopped.Add(time.Minute)
			}
			if currentState == scheduling.Running {
				currentState = scheduling.Stopped
				runningPeriods[startingPeriod] = makeInterval(started, stopped)
			}
		}
	}
	if currentState == scheduling.Running {
		runningPeriods[startingPeriod] = makeInterval(started, endOfDay.Add(time.Minute))
	}

	var totalSeconds, totalHours int
	for _, ri := range runningPeriods {
		totalSeconds += ri.BillingSeconds
		totalHours += ri.BillingHours
	}

	return DayUsage{
		Date:           dayStart.Format("2006-01-02"),
		RunningPeriods: runningPeriods,
		BillingSeconds: totalSeconds,
		BillingHours:   totalHours,
	}, nil
}

func atTimeOfDay(day time.Time, tod v1beta1.TimeOfDay) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, day.Location())
}

func makeInterval(begin, end time.Time) RunningInterval {
	seconds := int(end.Sub(begin).Seconds())
	if seconds < 60 {
		seconds = 60
	}
	return RunningInterval{
		Begin:          begin,
		End:            end,
		BillingSeconds: seconds,
		BillingHours:   (seconds-1)/3600 + 1,
	}
}
