// Package render turns a finished availability index into a
// human-viewable HTML calendar, one table per facility with time
// buckets as rows and dates as columns.
package render

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tomhatch/slotscope/pkg/availability"
	"github.com/tomhatch/slotscope/pkg/directory"
	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// Config bounds the rendered day and sets the row granularity.
type Config struct {
	// Title is the page title.
	Title string

	// DayStart and DayEnd bound the rendered rows, "HH:MM".
	DayStart string
	DayEnd   string

	// BucketMinutes is the row granularity. It must match the width
	// the index was built with or rows and entries will not line up.
	BucketMinutes int
}

// DefaultConfig covers a full clinic day at the default bucket width.
func DefaultConfig() Config {
	return Config{
		Title:         "Appointment Availability",
		DayStart:      "06:00",
		DayEnd:        "20:00",
		BucketMinutes: timeslot.DefaultBucketMinutes,
	}
}

// Renderer writes availability calendars. Facility display names come
// from the directory registry.
type Renderer struct {
	registry *directory.Registry
	config   Config
	tmpl     *template.Template
}

// New creates a renderer for the registry's facilities.
func New(registry *directory.Registry, config Config) (*Renderer, error) {
	if config.BucketMinutes <= 0 || config.BucketMinutes > 60 {
		config.BucketMinutes = timeslot.DefaultBucketMinutes
	}
	if config.DayStart == "" {
		config.DayStart = "06:00"
	}
	if config.DayEnd == "" {
		config.DayEnd = "20:00"
	}
	if config.Title == "" {
		config.Title = "Appointment Availability"
	}

	tmpl, err := template.New("calendar").Parse(calendarTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar template: %w", err)
	}
	return &Renderer{
		registry: registry,
		config:   config,
		tmpl:     tmpl,
	}, nil
}

// cell is one (date, bucket) intersection in a facility table.
type cell struct {
	Count     int
	Providers []string
}

type row struct {
	Time  string
	Cells []cell
}

type facilityTable struct {
	Name string
	Rows []row
}

type page struct {
	Title      string
	Dates      []string
	Facilities []facilityTable
}

// Render writes the calendar for the given dates to w. Facilities
// appear in registry order; every configured facility gets a table
// even when it has no availability.
func (r *Renderer) Render(w io.Writer, index availability.Index, dates []string) error {
	buckets, err := r.buckets()
	if err != nil {
		return err
	}

	p := page{
		Title: r.config.Title,
		Dates: dates,
	}
	for _, facility := range r.registry.Facilities() {
		table := facilityTable{Name: facility.Name}
		for _, bucket := range buckets {
			tableRow := row{Time: bucket}
			for _, date := range dates {
				key := timeslot.SlotKey{FacilityID: facility.ID, Date: date, TimeBucket: bucket}
				providers := index[key]
				names := make([]string, len(providers))
				for i, provider := range providers {
					names[i] = provider.String()
				}
				sort.Strings(names)
				tableRow.Cells = append(tableRow.Cells, cell{Count: len(providers), Providers: names})
			}
			table.Rows = append(table.Rows, tableRow)
		}
		p.Facilities = append(p.Facilities, table)
	}

	return r.tmpl.Execute(w, p)
}

// buckets returns the row labels from DayStart to DayEnd inclusive.
func (r *Renderer) buckets() ([]string, error) {
	start, err := parseHHMM(r.config.DayStart)
	if err != nil {
		return nil, fmt.Errorf("day start: %w", err)
	}
	end, err := parseHHMM(r.config.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("day end: %w", err)
	}
	if end < start {
		return nil, fmt.Errorf("day end %q before day start %q", r.config.DayEnd, r.config.DayStart)
	}

	var out []string
	for m := start; m <= end; m += r.config.BucketMinutes {
		out = append(out, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return out, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", timeslot.ErrInvalidTimeFormat, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", timeslot.ErrInvalidTimeFormat, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", timeslot.ErrInvalidTimeFormat, s)
	}
	return hour*60 + minute, nil
}

const calendarTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>{{ .Title }}</title>
  <style>
    body {
      background-color: #2b1d1d;
      color: #ceae77;
    }
    table {
      border-collapse: collapse;
      font-size: .9em;
    }
    th, td {
      border: 1px solid #222;
      padding: 3px;
      text-align: center;
      width: 22em;
    }
    .time-slot {
      width: 5em;
    }
    th {
      background-color: #423f3e;
    }
    td {
      vertical-align: text-top;
      background-color: #412c2c;
    }
    tr:nth-child(even) td {
      background-color: #3d2626;
    }
    .appt-cnt[data-value="0"] {
      color: transparent;
    }
    .appt-cnt:not([data-value="0"]) {
      cursor: pointer;
    }
    .container {
      justify-content: center;
      margin-left: 50px;
      width: 95%;
    }
  </style>
</head>
<body>
<div class="container">
{{- range .Facilities }}
<h1>{{ .Name }}</h1>
<table>
  <tr>
    <th class="time-slot">Time</th>
    {{- range $.Dates }}
    <th>{{ . }}</th>
    {{- end }}
  </tr>
  {{- range .Rows }}
  <tr>
    <td class="time-slot">{{ .Time }}</td>
    {{- range .Cells }}
    <td class="appt-cnt" data-value="{{ .Count }}">
      {{ .Count }}
      <div style="display: none; text-align: left;">
        <ul>
          {{- range .Providers }}
          <li>{{ . }}</li>
          {{- end }}
        </ul>
      </div>
    </td>
    {{- end }}
  </tr>
  {{- end }}
</table>
<br>
{{- end }}
</div>
<script>
  const trs = document.querySelectorAll('tr');
  trs.forEach(tr => {
    if (tr.querySelector('li')) {
      tr.addEventListener('click', () => {
        tr.querySelectorAll('div').forEach(div => {
          div.style.display = div.style.display === 'none' ? 'block' : 'none';
        });
      });
    }
  });
</script>
</body>
</html>
`
