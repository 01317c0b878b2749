package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cycle-dashboard/internal/chart"
	"cycle-dashboard/internal/common"
	"cycle-dashboard/internal/features"
	"cycle-dashboard/internal/gateway"
	"cycle-dashboard/internal/present"

	"github.com/rs/zerolog/log"
)

// Form keys outside the feature catalog.
const (
	FormAction         = "action"
	FormQuestion       = "Question"
	ActionRegularity   = "regularity"
	PrivacyNoticeTitle = "Privacy and Security Notice:"
)

type fieldView struct {
	Name     string
	ID       string
	Input    string
	Min      string
	Max      string
	Step     string
	Value    string
	Optional bool
	Invalid  bool
}

type resultView struct {
	Title  string
	Result present.Result
	Chart  template.HTML
	Error  string
}

type pageView struct {
	Fields     []fieldView
	FormError  string
	Models     []gateway.ModelStatus
	Fertility  *resultView
	Regularity *resultView
	CanFertile bool
	CanRegular bool
	Advisory   bool
	Question   string
}

var pageTemplate = template.Must(template.New("dashboard").Parse(pageHTML))

// handlePage renders the form and, on submission, the fertility result and
// the regularity result when requested. It never calls the advisory service.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		Models:     s.predictor.Status(),
		CanFertile: s.predictor.Available(present.Fertility),
		CanRegular: s.predictor.Available(present.Regularity),
		Advisory:   s.advisor.Enabled(),
	}

	var values url.Values
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form submission", http.StatusBadRequest)
			s.metrics.HTTPRequestsInc("page", http.StatusBadRequest)
			return
		}
		values = r.PostForm
	}

	invalidField := ""
	if values != nil {
		obs, err := features.ParseForm(values)
		if err != nil {
			invalidField = features.FieldName(err)
			view.FormError = fmt.Sprintf("%s: %s", common.ErrMsgInvalidInput, err)
		} else {
			view.Fertility = s.predict(r.Context(), present.Fertility, obs)
			if values.Get(FormAction) == ActionRegularity {
				view.Regularity = s.predict(r.Context(), present.Regularity, obs)
			}
		}

		// A submitted question is answered by the page script through
		// /api/v1/advisory, so predictions render without waiting on it.
		view.Question = strings.TrimSpace(values.Get(FormQuestion))
	}
	view.Fields = buildFields(values, invalidField)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, view); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
	}
	s.metrics.HTTPRequestsInc("page", http.StatusOK)
}

// predict runs one purpose and turns any failure into a visible message.
func (s *Server) predict(ctx context.Context, purpose present.Purpose, obs features.Observation) *resultView {
	view := &resultView{Title: purpose.Title()}
	if !s.predictor.Available(purpose) {
		view.Error = common.ErrMsgModelUnavailable
		return view
	}

	res, err := s.predictor.Classify(ctx, purpose, obs)
	switch {
	case err == nil:
		view.Result = res
		view.Chart = renderChart(res.Chart)
	case errors.Is(err, features.ErrSchema):
		view.Error = fmt.Sprintf("%s: %s", common.ErrMsgInvalidInput, err)
	case errors.Is(err, gateway.ErrModelUnavailable):
		view.Error = common.ErrMsgModelUnavailable
	default:
		view.Error = fmt.Sprintf("%s: %s", common.ErrMsgPredictionFailed, err)
	}
	return view
}

// renderChart draws c as inline SVG. The chart package escapes all text.
func renderChart(c present.Chart) template.HTML {
	var svg string
	switch c.Kind {
	case present.ChartPie:
		svg = chart.Pie(c.Title, c.Labels, c.Values, c.Colors)
	case present.ChartBar:
		svg = chart.Bar(c.Title, c.Labels, c.Values, c.Colors)
	default:
		return ""
	}
	return template.HTML(svg)
}

func buildFields(values url.Values, invalid string) []fieldView {
	out := make([]fieldView, 0, len(features.Catalog))
	for _, f := range features.Catalog {
		v := fieldView{
			Name:     f.Name,
			ID:       fieldID(f.Name),
			Input:    f.Input,
			Value:    f.Default,
			Optional: f.Optional,
			Invalid:  f.Name == invalid,
		}
		if f.Input == features.InputNumber {
			v.Min = formatBound(f.Min)
			if f.Max != 0 {
				v.Max = formatBound(f.Max)
			}
			v.Step = formatBound(f.Step)
		}
		if values != nil {
			v.Value = values.Get(f.Name)
		}
		out = append(out, v)
	}
	return out
}

func fieldID(name string) string {
	return "f-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Cycle Prediction and Feedback</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1100px; margin: 0 auto; }
        h1 { text-align: center; color: #4C8C91; }
        .subtitle { text-align: center; font-size: 18px; color: #555; }
        .notice { background-color: #F1D0D6; padding: 15px; text-align: center; color: #333; font-size: 16px; margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .field { display: flex; justify-content: space-between; align-items: center; padding: 6px 0; }
        .field label { font-weight: 500; color: #666; }
        .field input, .field select { width: 140px; }
        .invalid input, .invalid select { border: 2px solid #dc3545; }
        .status { padding: 10px; text-align: center; color: white; font-size: 22px; font-weight: bold; }
        .error { color: #dc3545; font-weight: bold; }
        .answer { background: #e8f5e9; padding: 10px; border-radius: 6px; }
        .model { font-size: 0.9em; color: #666; }
        footer { text-align: center; padding: 20px; font-size: 14px; background-color: #A8DADC; color: white; margin-top: 20px; }
    </style>
</head>
<body>
<div class="container">
    <h1>Cycle Prediction and Feedback</h1>
    <p class="subtitle">Track and predict your menstrual cycle.</p>

    <div class="notice">
        <strong>` + PrivacyNoticeTitle + `</strong><br>
        All data entered is used only to compute the predictions shown on this page. It is not stored and is not shared with any third parties.
        Questions you ask are sent to the configured advisory service to produce an answer.
    </div>

    <form method="POST" action="/">
    <div class="grid">
        <div class="card">
            <h3>Please enter your cycle details</h3>
            {{if .FormError}}<p class="error">{{.FormError}}</p>{{end}}
            {{range .Fields}}
            <div class="field{{if .Invalid}} invalid{{end}}">
                <label for="{{.ID}}">{{.Name}}{{if .Optional}} (optional){{end}}</label>
                {{if eq .Input "flag"}}
                <select id="{{.ID}}" name="{{.Name}}">
                    <option value="1"{{if eq .Value "1"}} selected{{end}}>Yes (1)</option>
                    <option value="0"{{if eq .Value "0"}} selected{{end}}>No (0)</option>
                </select>
                {{else if eq .Input "text"}}
                <input type="text" id="{{.ID}}" name="{{.Name}}" value="{{.Value}}">
                {{else}}
                <input type="number" id="{{.ID}}" name="{{.Name}}" value="{{.Value}}"{{if .Min}} min="{{.Min}}"{{end}}{{if .Max}} max="{{.Max}}"{{end}}{{if .Step}} step="{{.Step}}"{{end}}>
                {{end}}
            </div>
            {{end}}
            <p>
                <button type="submit" name="action" value="fertility"{{if not .CanFertile}} disabled{{end}}>Predict Fertility</button>
                <button type="submit" name="action" value="regularity"{{if not .CanRegular}} disabled{{end}}>Predict Cycle Regularity</button>
            </p>
            {{range .Models}}{{if not .Available}}<p class="model">{{.Purpose}} model unavailable{{if .Error}}: {{.Error}}{{end}}</p>{{end}}{{end}}
        </div>

        <div class="card">
            <h3>Results</h3>
            {{with .Fertility}}{{template "result" .}}{{end}}
            {{with .Regularity}}{{template "result" .}}{{end}}
            {{if and (not .Fertility) (not .Regularity)}}<p class="model">Submit your details to see predictions.</p>{{end}}
        </div>

        <div class="card">
            <h3>Ask about your cycle</h3>
            <input type="text" id="question" name="Question" value="{{.Question}}" style="width: 100%"{{if not .Advisory}} disabled placeholder="Advisory service is not configured"{{end}}>
            <p><button type="button" id="ask"{{if not .Advisory}} disabled{{end}}>Ask</button></p>
            <div id="advisory-answer" data-pending="{{if .Advisory}}{{.Question}}{{end}}"></div>
        </div>
    </div>
    </form>

    <footer>Cycle prediction dashboard. Predictions are informational and are not medical advice.</footer>
</div>
<script>
    const answer = document.getElementById('advisory-answer');

    function ask(question) {
        question = question.trim();
        if (!question) {
            return;
        }
        answer.className = 'model';
        answer.textContent = 'Waiting for an answer...';
        fetch('/api/v1/advisory', {
            method: 'POST',
            headers: {'Content-Type': 'application/json'},
            body: JSON.stringify({question: question})
        })
            .then(resp => resp.json())
            .then(ex => {
                if (ex.succeeded) {
                    answer.className = 'answer';
                    answer.textContent = 'Response: ' + ex.response;
                } else {
                    answer.className = 'error';
                    answer.textContent = ex.error;
                }
            })
            .catch(err => {
                answer.className = 'error';
                answer.textContent = 'Advisory request failed: ' + err;
            });
    }

    document.getElementById('ask').addEventListener('click', () => {
        ask(document.getElementById('question').value);
    });
    document.getElementById('question').addEventListener('keydown', e => {
        if (e.key === 'Enter') {
            e.preventDefault();
            ask(e.target.value);
        }
    });
    ask(answer.dataset.pending || '');
</script>
</body>
</html>
{{define "result"}}
<div>
    {{if .Error}}
    <p><strong>{{.Title}}:</strong> <span class="error">{{.Error}}</span></p>
    {{else}}
    <div class="status" style="background-color: {{.Result.Color}}">{{.Title}}: {{.Result.Category}}</div>
    <p>{{.Result.Message}}{{if .Result.Thresholded}} (decided from probability {{printf "%.2f" .Result.Probability}}){{end}}</p>
    {{.Chart}}
    {{end}}
</div>
{{end}}`
