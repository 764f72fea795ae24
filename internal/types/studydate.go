package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// StudyDate is a calendar date. It accepts both bare dates and full RFC3339
// timestamps on input and always marshals as YYYY-MM-DD.
type StudyDate struct {
	time.Time
}

const studyDateLayout = "2006-01-02"

func (d StudyDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(studyDateLayout) + `"`), nil
}

func (d *StudyDate) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(studyDateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("studyDate %q is not a valid date", raw)
	}
	d.Time = t
	return nil
}

func (d StudyDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *StudyDate) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into StudyDate", value)
	}
}

func (d *StudyDate) scanString(raw string) error {
	for _, layout := range []string{
		studyDateLayout,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("cannot scan %q into StudyDate", raw)
}

// GormDataType keeps gorm from guessing a column type for the wrapper.
func (StudyDate) GormDataType() string {
	return "date"
}
