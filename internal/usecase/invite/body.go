package invite

import (
	"bytes"
	"html/template"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
)

var bodyTemplate = template.Must(template.New("invite").Parse(`<html>
<body>
  <h2>{{.Title}}</h2>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p><strong>When:</strong> {{.Starts}} &ndash; {{.Ends}}</p>
  {{if .Location}}<p><strong>Where:</strong> {{.Location}}</p>{{end}}
  {{if .Category}}<p><strong>Category:</strong> {{.Category}}</p>{{end}}
  <p><strong>Organizer:</strong> {{.Organizer}}</p>
  <p>The attached calendar file adds this meeting to your calendar.</p>
</body>
</html>`))

const bodyTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

// BuildBody renders the HTML invite body for a finalized event
func BuildBody(event *entities.CalendarEvent) string {
	data := struct {
		Title       string
		Description string
		Starts      string
		Ends        string
		Location    string
		Category    string
		Organizer   string
	}{
		Title:  event.Title,
		Starts: event.StartTime.Local().Format(bodyTimeLayout),
		Ends:   event.EndTime.Local().Format(bodyTimeLayout),
	}
	data.Description = event.Description
	data.Location = event.Location
	data.Category = event.Category
	if event.Organizer != nil {
		data.Organizer = event.Organizer.Name
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return event.Title
	}
	return buf.String()
}
