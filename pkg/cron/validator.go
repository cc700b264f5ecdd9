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

package cron

import "fmt"

// fieldBounds is the inclusive numeric range valid for SingleNumeric
// and Range endpoints within a field.
func fieldBounds(field Field) (min, max int) {
	switch field {
	case FieldMonths:
		return 1, 12
	case FieldMonthdays:
		return 1, 31
	case FieldWeekdays:
		return 0, 6
	default:
		panic(fmt.Sprintf("unknown field %v", field))
	}
}

// Validate enforces field-specific rules the parser itself has no way
// to know about: numeric bounds, which Kinds are legal in which
// field, and that monthday ranges don't wrap past the end of the
// field's numeric domain.
func Validate(field Field, e Expression) error {
	switch e.Kind {
	case KindAll:
		return nil
	case KindUnion:
		for _, sub := range e.Exprs {
			if err := Validate(field, sub); err != nil {
				return err
			}
		}
		return nil
	case KindSingleNumeric:
		return validateNumeric(field, e.Value)
	case KindSingleLast:
		if field == FieldMonths {
			return fmt.Errorf("'L' (last) is not valid in a months expression")
		}
		return nil
	case KindRange:
		return validateRange(field, e)
	case KindNearestWeekday:
		if field != FieldMonthdays {
			return fmt.Errorf("nearest-weekday ('%dW') is only valid in monthday expressions", e.Value)
		}
		return validateNumeric(FieldMonthdays, e.Value)
	case KindNthWeekday:
		if field != FieldWeekdays {
			return fmt.Errorf("nth-weekday is only valid in weekday expressions")
		}
		if e.N < 1 || e.N > 5 {
			return fmt.Errorf("nth-weekday occurrence %d out of range [1..5]", e.N)
		}
		return validateNumeric(FieldWeekdays, e.Day)
	case KindLastWeekday:
		if field != FieldWeekdays {
			return fmt.Errorf("last-weekday is only valid in weekday expressions")
		}
		return validateNumeric(FieldWeekdays, e.Day)
	default:
		return fmt.Errorf("unknown expression kind %v", e.Kind)
	}
}

func validateNumeric(field Field, v int) error {
	min, max := fieldBounds(field)
	if v < min || v > max {
		return fmt.Errorf("%s value %d out of range [%d..%d]", field, v, min, max)
	}
	return nil
}

func validateRange(field Field, e Expression) error {
	if err := validateNumeric(field, e.Start); err != nil {
		return err
	}
	if e.End != nil {
		if err := validateNumeric(field, *e.End); err != nil {
			return err
		}
		if field == FieldMonthdays && e.Start > *e.End {
			return fmt.Errorf("monthday range %d-%d must not wrap (start > end)", e.Start, *e.End)
		}
	}
	if e.Interval <= 0 {
		return fmt.Errorf("range interval must be positive, got %d", e.Interval)
	}
	return nil
}

// ParseAndValidate is a convenience wrapper combining Parse and
// Validate, used by callers (period construction, CLI validation) that
// always want both steps together.
func ParseAndValidate(field Field, values []string) (Expression, error) {
	e, err := Parse(values)
	if err != nil {
		return Expression{}, err
	}
	if err := Validate(field, e); err != nil {
		return Expression{}, err
	}
	return e, nil
}
