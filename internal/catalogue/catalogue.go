package catalogue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	appLog "mobcal/internal/log"
	"mobcal/internal/model"
)

// Parse decodes a YAML catalogue: a list of activities, each with a
// schedule of recurrence entries.
//
//	- id: standup
//	  name: Standup
//	  theme: {bgColor: "#fde68a", textColor: "#1f2937"}
//	  schedule:
//	    - timezone: America/New_York
//	      start: "09:00"
//	      duration: "00:30"
//	      rrule: every weekday
//
// Only the shape is checked here: required fields must be present and
// activity IDs unique. Field contents (zone, times, rule text) are
// validated per entry during expansion.
func Parse(data []byte) ([]model.Activity, error) {
	var activities []model.Activity
	if err := yaml.Unmarshal(data, &activities); err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}
	if activities == nil {
		activities = []model.Activity{}
	}

	seen := make(map[string]int, len(activities))
	for i, a := range activities {
		if strings.TrimSpace(a.ID) == "" {
			return nil, fmt.Errorf("catalogue: activity #%d: missing id", i)
		}
		if prev, ok := seen[a.ID]; ok {
			return nil, fmt.Errorf("catalogue: activity #%d: duplicate id %q (first at #%d)", i, a.ID, prev)
		}
		seen[a.ID] = i
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("catalogue: activity %q: missing name", a.ID)
		}
		for j, e := range a.Schedule {
			if missing := missingFields(e); len(missing) > 0 {
				return nil, fmt.Errorf("catalogue: activity %q: schedule entry #%d: missing %s",
					a.ID, j, strings.Join(missing, ", "))
			}
		}
	}
	return activities, nil
}

func missingFields(e model.ScheduleEntry) []string {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"timezone", e.Timezone},
		{"start", e.Start},
		{"duration", e.Duration},
		{"rrule", e.RRule},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Load reads and parses a catalogue file.
func Load(path string) ([]model.Activity, error) {
	if path == "" {
		return nil, errors.New("catalogue path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// IsRemote reports whether source names an http(s) catalogue.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Open loads the catalogue from a local path or, for http(s) sources,
// through f.
func Open(ctx context.Context, source string, f *Fetcher) ([]model.Activity, error) {
	if !IsRemote(source) {
		return Load(source)
	}
	if f == nil {
		return nil, errors.New("remote catalogue requires a fetcher")
	}
	res, err := f.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	activities, err := Parse(res.Body)
	if err != nil {
		appLog.Error("catalogue parse failed", err, "source", redactURL(source), "from_cache", res.FromCache)
		return nil, err
	}
	return activities, nil
}
